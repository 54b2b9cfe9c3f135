package pipeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/internal/common"
)

// Document is one uploaded PDF for the lifetime of a request. The bytes are
// also written to a private temp dir so external rasterizers can read them.
type Document struct {
	ID         uuid.UUID
	Filename   string
	Data       []byte
	SHA256     string
	Path       string
	TotalPages int // set by TextStage.Run

	dir string
}

// NewDocument validates an upload and stages it on disk. maxBytes <= 0 means
// constants.MaxUploadBytes.
func NewDocument(filename string, data []byte, maxBytes int64) (*Document, error) {
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadBytes
	}
	if len(data) == 0 {
		return nil, common.NewAppError("INPUT_ERROR", "empty upload", common.ErrInvalidInput)
	}
	if int64(len(data)) > maxBytes {
		return nil, common.NewAppError("INPUT_ERROR",
			fmt.Sprintf("file is %d bytes, limit is %d", len(data), maxBytes), common.ErrTooLarge)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\r\n\t "), []byte(constants.PDFMagic)) {
		return nil, common.NewAppError("INPUT_ERROR", "missing %PDF header", common.ErrNotPDF)
	}

	sum := sha256.Sum256(data)
	doc := &Document{
		ID:       uuid.New(),
		Filename: cleanName(filename),
		Data:     data,
		SHA256:   hex.EncodeToString(sum[:]),
	}

	dir, err := os.MkdirTemp("", "contract-*")
	if err != nil {
		return nil, fmt.Errorf("stage document: %w", err)
	}
	doc.dir = dir
	doc.Path = filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(doc.Path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("stage document: %w", err)
	}
	return doc, nil
}

// Close removes the staged copy.
func (d *Document) Close() error {
	if d == nil || d.dir == "" {
		return nil
	}
	err := os.RemoveAll(d.dir)
	d.dir = ""
	return err
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "document.pdf"
	}
	return name
}
