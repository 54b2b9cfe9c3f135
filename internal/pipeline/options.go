package pipeline

import (
	"fmt"

	"github.com/joseph-ayodele/contracts-extractor/constants"
)

// Options are the user-facing toggles for one extraction.
type Options struct {
	DPI      int  `json:"dpi"`
	Enhanced bool `json:"enhanced"`  // strong preprocessing for every OCR'd page
	ForceOCR bool `json:"force_ocr"` // ignore the embedded text layer
	MaxPages int  `json:"max_pages"`
}

func DefaultOptions() Options {
	return Options{DPI: constants.DefaultDPI, MaxPages: constants.DefaultMaxPages}
}

// Normalize snaps DPI to the nearest step inside [MinDPI, MaxDPI] and clamps
// MaxPages to [1, MaxPageCap]. Zero values take the defaults.
func (o Options) Normalize() Options {
	if o.DPI <= 0 {
		o.DPI = constants.DefaultDPI
	}
	o.DPI = min(max(o.DPI, constants.MinDPI), constants.MaxDPI)
	o.DPI = constants.MinDPI + ((o.DPI-constants.MinDPI+constants.DPIStep/2)/constants.DPIStep)*constants.DPIStep

	if o.MaxPages == 0 {
		o.MaxPages = constants.DefaultMaxPages
	}
	o.MaxPages = min(max(o.MaxPages, 1), constants.MaxPageCap)
	return o
}

// CacheKey identifies a result for the given content hash and options.
func (o Options) CacheKey(sha string) string {
	o = o.Normalize()
	return fmt.Sprintf("extract:v1:%s:dpi=%d:enh=%t:force=%t:pages=%d", sha, o.DPI, o.Enhanced, o.ForceOCR, o.MaxPages)
}
