package constants

import "strings"

// Upload limits for a single document.
const (
	MaxUploadBytes = 10 << 20
	PDFMagic       = "%PDF"
	PDF            = "PDF"
)

// Page cap and rasterization bounds exposed as user options.
const (
	MaxPageCap      = 20
	DefaultMaxPages = 10
	MinDPI          = 200
	MaxDPI          = 400
	DefaultDPI      = 300
	DPIStep         = 50
)

// AllowedExtensions holds the file extensions accepted for batch ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the dot) can be ingested.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
