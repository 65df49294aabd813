// Package ocr wraps the local text-recognition engine used on rasterized
// document pages. Recognition is a purely local call with no network
// dependency; accuracy varies with image quality, which is why the extractor
// treats low-yield output as a signal to fall back to vision extraction.
package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text in a single page image (PNG bytes).
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// Tesseract is the gosseract-backed Engine. A fresh client is created per
// page because gosseract clients are not safe for concurrent use and page
// recognition may run from multiple pipeline workers.
type Tesseract struct {
	language string
}

// NewTesseract returns a Tesseract engine for the given language code
// (e.g. "eng"). An empty language falls back to English.
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{language: language}
}

func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("ocr: set language %q: %w", t.language, err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("ocr: set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: recognize: %w", err)
	}
	return text, nil
}
