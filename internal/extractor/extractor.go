package extractor

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextUnit is the text of one logical page with its provenance. Units are
// immutable once produced; the chunker is their only consumer.
type TextUnit struct {
	Content string
	Source  string
	Page    int // 1-based; 0 means unset
}

// Extractor turns a PDF file into text units, trying the digital text layer
// first and falling back to OCR for scanned documents.
type Extractor struct {
	minTextLen int
	rasterizer Rasterizer
	recognizer Recognizer
}

// New creates an extractor backed by MuPDF rasterization and tesseract OCR.
// Pages whose stripped text is minTextLen characters or shorter are dropped
// on both paths.
func New(minTextLen int) *Extractor {
	return &Extractor{
		minTextLen: minTextLen,
		rasterizer: fitzRasterizer{},
		recognizer: tesseractRecognizer{},
	}
}

// Extract returns one TextUnit per qualifying page of the document. An empty
// slice with a nil error means both paths ran but found no usable text; the
// caller decides how to surface that. An error means the file could not be
// read by either path.
func (e *Extractor) Extract(path string) ([]TextUnit, error) {
	units, digErr := e.digitalPages(path)
	if digErr == nil && len(units) > 0 {
		return units, nil
	}

	units, ocrErr := e.ocrPages(path)
	if ocrErr != nil {
		if digErr != nil {
			return nil, fmt.Errorf("extract %s: %w", path, ocrErr)
		}
		// Digital path opened the file fine but found nothing qualifying,
		// and OCR failed on top of that: treat as no content.
		return nil, nil
	}
	return units, nil
}

// digitalPages reads the PDF's text layer page by page.
func (e *Extractor) digitalPages(path string) (units []TextUnit, err error) {
	// The pdf library panics on some malformed files; fold that into the
	// error path so the OCR fallback still runs.
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = fmt.Errorf("digital extraction: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if !e.qualifies(text) {
			continue
		}
		units = append(units, TextUnit{Content: text, Source: path, Page: i})
	}
	return units, nil
}

// ocrPages rasterizes each page and runs character recognition on it.
func (e *Extractor) ocrPages(path string) ([]TextUnit, error) {
	images, err := e.rasterizer.Pages(path)
	if err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	var units []TextUnit
	for i, img := range images {
		text, err := e.recognizer.Recognize(img)
		if err != nil {
			continue
		}
		if !e.qualifies(text) {
			continue
		}
		units = append(units, TextUnit{Content: text, Source: path, Page: i + 1})
	}
	return units, nil
}

// qualifies filters pages that are technically text but effectively empty,
// such as cover pages or degraded pre-existing OCR layers.
func (e *Extractor) qualifies(text string) bool {
	return len(strings.TrimSpace(text)) > e.minTextLen
}
