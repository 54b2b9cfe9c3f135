package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Rasterizer renders one PDF page to an image.
type Rasterizer interface {
	Render(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error)
}

// PdftoppmRasterizer renders pages with poppler's pdftoppm.
type PdftoppmRasterizer struct {
	Binary string
	runner Runner
	logger *slog.Logger
}

func NewPdftoppmRasterizer(binary string, runner Runner, logger *slog.Logger) *PdftoppmRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PdftoppmRasterizer{Binary: binary, runner: runner, logger: logger}
}

// Render runs pdftoppm -r <dpi> -f <page> -l <page> -png -singlefile <pdf> <prefix>
// and decodes the resulting PNG.
func (r *PdftoppmRasterizer) Render(ctx context.Context, pdfPath string, page, dpi int) (image.Image, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	tmpDir, err := os.MkdirTemp("", "ce-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("ocr.rasterize.cleanup", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	p := strconv.Itoa(page)
	_, errb, err := r.runner.Run(ctx, r.Binary, r.logger,
		"-r", strconv.Itoa(dpi), "-f", p, "-l", p, "-png", "-singlefile", pdfPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, truncate(string(errb), 512))
	}

	f, err := os.Open(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d: %w", page, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	return img, nil
}
