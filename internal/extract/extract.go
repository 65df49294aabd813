// Package extract turns a raw uploaded file into content the rest of the
// pipeline can work with: tabular rows for CSV exports, OCR text for
// readable PDFs, or rasterized page images for everything the OCR engine
// cannot handle.
package extract

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/doculedger/doculedger/internal/domain"
	"github.com/doculedger/doculedger/internal/ocr"
)

// Kind tags the payload variant of an extraction result. Downstream
// consumers switch on this closed set instead of inspecting file types.
type Kind string

const (
	KindRows  Kind = "rows"  // CSV path: already-tabular data, no AI needed
	KindText  Kind = "text"  // OCR succeeded: plain text for the AI text path
	KindImage Kind = "image" // vision path: rasterized pages for the AI vision path
)

// ImagePage is one rasterized page (or the uploaded image itself), ready to
// be attached to a vision extraction request.
type ImagePage struct {
	MIMEType string
	Data     []byte
}

// Result is the tagged output of Extract. Exactly the fields matching Kind
// are populated.
type Result struct {
	Kind    Kind
	Text    string
	Pages   []ImagePage
	Headers []string            // original column order, KindRows only
	Rows    []map[string]string // column name -> raw cell value
}

// Rasterizer renders PDF bytes into per-page PNG images.
type Rasterizer interface {
	Render(data []byte, dpi int) ([][]byte, error)
}

// Config holds the extraction tunables. MinCharsPerPage is the OCR quality
// threshold: pages yielding fewer alphanumeric characters on average are
// treated as scans and handed to the vision path instead.
type Config struct {
	MinCharsPerPage int
	RasterDPI       int
	MaxVisionPages  int
}

// Extractor routes an uploaded file to the right extraction strategy.
type Extractor struct {
	ocr    ocr.Engine
	raster Rasterizer
	cfg    Config
}

// New creates an Extractor backed by the MuPDF rasterizer.
func New(engine ocr.Engine, cfg Config) *Extractor {
	return &Extractor{ocr: engine, raster: fitzRasterizer{}, cfg: cfg}
}

// NewWithRasterizer creates an Extractor with a custom rasterizer. Used by
// tests to avoid the cgo dependency.
func NewWithRasterizer(engine ocr.Engine, raster Rasterizer, cfg Config) *Extractor {
	return &Extractor{ocr: engine, raster: raster, cfg: cfg}
}

// Extract inspects the file and returns its content as one of the three
// payload kinds. Unreadable, corrupted or unrecognized files fail with
// *domain.UnsupportedDocumentError; callers mark the document failed and
// keep processing the rest of the batch.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, &domain.UnsupportedDocumentError{Filename: filename, Reason: "file is empty"}
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return e.extractPDF(ctx, filename, data)
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return imageResult("image/png", data), nil
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return imageResult("image/jpeg", data), nil
	case isWEBP(data):
		return imageResult("image/webp", data), nil
	case strings.EqualFold(filepath.Ext(filename), ".csv"):
		return extractCSV(filename, data)
	default:
		return nil, &domain.UnsupportedDocumentError{
			Filename: filename,
			Reason:   "unrecognized file format (supported: pdf, png, jpg, webp, csv)",
		}
	}
}

func imageResult(mimeType string, data []byte) *Result {
	return &Result{
		Kind:  KindImage,
		Pages: []ImagePage{{MIMEType: mimeType, Data: data}},
	}
}

func isWEBP(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[0:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WEBP"))
}

// extractPDF rasterizes every page and runs OCR over it. When the average
// alphanumeric yield per page stays under the configured threshold the OCR
// output is considered garbled and the page images are returned for vision
// extraction instead.
func (e *Extractor) extractPDF(ctx context.Context, filename string, data []byte) (*Result, error) {
	pages, err := e.raster.Render(data, e.cfg.RasterDPI)
	if err != nil {
		return nil, &domain.UnsupportedDocumentError{
			Filename: filename,
			Reason:   "cannot render pdf: " + err.Error(),
		}
	}
	if len(pages) == 0 {
		return nil, &domain.UnsupportedDocumentError{Filename: filename, Reason: "pdf has no pages"}
	}

	var text strings.Builder
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageText, err := e.ocr.Recognize(ctx, page)
		if err != nil {
			// A page the engine chokes on counts as zero yield.
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	full := text.String()
	if countAlnum(full) >= e.cfg.MinCharsPerPage*len(pages) {
		return &Result{Kind: KindText, Text: full}, nil
	}

	// OCR came up short: scanned or low-quality document, use vision.
	limit := e.cfg.MaxVisionPages
	if limit <= 0 || limit > len(pages) {
		limit = len(pages)
	}
	imagePages := make([]ImagePage, 0, limit)
	for _, page := range pages[:limit] {
		imagePages = append(imagePages, ImagePage{MIMEType: "image/png", Data: page})
	}
	return &Result{Kind: KindImage, Pages: imagePages}, nil
}

func countAlnum(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
