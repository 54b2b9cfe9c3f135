// Package ocr turns page rasters into reading-order text. Engines are
// constructed explicitly and owned by the caller, which must Close them.
package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Fragment is one recognized piece of text with its bounding box in pixels.
type Fragment struct {
	Text       string
	Box        image.Rectangle
	Confidence float64 // 0..1
}

// Granularity tells GroupLines how fragments within a line are joined.
type Granularity int

const (
	// Word fragments are single words and are always separated by a space.
	Word Granularity = iota
	// Segment fragments are arbitrary runs that may split words.
	Segment
)

// Engine recognizes text in a single image.
type Engine interface {
	Name() string
	Granularity() Granularity
	Recognize(ctx context.Context, img image.Image) ([]Fragment, error)
	Close() error
}

// EngineConfig is shared by all engine implementations.
type EngineConfig struct {
	Binary      string // executable for CLI engines
	Lang        string // tesseract language selector, e.g. "rus+eng"
	TessdataDir string
	PSM         int
	OEM         int
}

// Factory builds an engine.
type Factory func(cfg EngineConfig, runner Runner, logger *slog.Logger) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available to NewEngine. Registering a name twice panics.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name = strings.ToLower(name)
	if _, dup := registry[name]; dup {
		panic("ocr: engine registered twice: " + name)
	}
	registry[name] = f
}

// Engines lists registered engine names.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NewEngine constructs the engine registered under name.
func NewEngine(name string, cfg EngineConfig, runner Runner, logger *slog.Logger) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ocr: unknown engine %q (available: %s)", name, strings.Join(Engines(), ", "))
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return f(cfg, runner, logger)
}

func init() {
	Register("tesseract", func(cfg EngineConfig, runner Runner, logger *slog.Logger) (Engine, error) {
		return NewTesseractEngine(cfg, runner, logger), nil
	})
}
