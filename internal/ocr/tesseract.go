package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TesseractEngine shells out to the tesseract CLI and reads its TSV output.
type TesseractEngine struct {
	cfg    EngineConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseractEngine(cfg EngineConfig, runner Runner, logger *slog.Logger) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "rus+eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractEngine{cfg: cfg, runner: runner, logger: logger}
}

func (e *TesseractEngine) Name() string             { return "tesseract" }
func (e *TesseractEngine) Granularity() Granularity { return Word }
func (e *TesseractEngine) Close() error             { return nil }

// Recognize writes img to a temporary PNG and runs
// tesseract <png> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) ([]Fragment, error) {
	tmpDir, err := os.MkdirTemp("", "ce-tess-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("ocr.tesseract.cleanup", "dir", tmpDir, "error", err)
		}
	}()

	in := filepath.Join(tmpDir, "page.png")
	f, err := os.Create(in)
	if err != nil {
		return nil, err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	args := []string{in, "stdout", "-l", e.cfg.Lang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, e.logger, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return ParseTSV(out)
}

// ParseTSV reads word rows (level 5) from tesseract TSV output.
func ParseTSV(data []byte) ([]Fragment, error) {
	var frags []Fragment
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	first := true
	for sc.Scan() {
		ln := sc.Text()
		if first {
			first = false
			if strings.HasPrefix(ln, "level") {
				continue
			}
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], " "))
		if text == "" {
			continue
		}
		var n [4]int
		ok := true
		for i := range n {
			v, err := strconv.Atoi(cols[6+i])
			if err != nil {
				ok = false
				break
			}
			n[i] = v
		}
		if !ok {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			conf = 0
		}
		frags = append(frags, Fragment{
			Text:       text,
			Box:        image.Rect(n[0], n[1], n[0]+n[2], n[1]+n[3]),
			Confidence: conf / 100,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return frags, nil
}
