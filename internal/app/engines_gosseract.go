//go:build gosseract

package app

import (
	_ "github.com/joseph-ayodele/contracts-extractor/internal/ocr/gosseract"
)
