package ocr

import (
	"fmt"

	"github.com/ledongthuc/pdf"

	"pravachan-index/models"
)

// TextLayerExtractor inspects a PDF for an existing text layer (common
// for born-digital or previously-OCR'd scans bundled with one) and, when
// present, skips the external OCR call entirely for that page. It never
// produces geometry as precise as the OCR engine's character-level boxes,
// so Line Classifier predicates that depend on fine-grained indentation
// are approximated from the PDF's reported text positions.
type TextLayerExtractor struct{}

// ExtractPage reads page pageNum's text layer directly, producing one
// Line per reported text row. Used as a fast path ahead of the external
// OCR call; callers fall back to Adapter.OCR when this returns no lines
// or an error.
func (TextLayerExtractor) ExtractPage(path string, pageNum int) ([]models.Line, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("text layer extract: open %s: %w", path, err)
	}
	defer f.Close()

	if pageNum < 1 || pageNum > r.NumPage() {
		return nil, fmt.Errorf("text layer extract: page %d out of range", pageNum)
	}

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return nil, nil
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("text layer extract: %w", err)
	}

	lines := make([]models.Line, 0, len(rows))
	for _, row := range rows {
		var text string
		minX, maxX := 0.0, 0.0
		first := true
		for _, word := range row.Content {
			text += word.S
			x0, x1 := float64(word.X), float64(word.X)+float64(word.W)
			if first {
				minX, maxX = x0, x1
				first = false
			}
			if x0 < minX {
				minX = x0
			}
			if x1 > maxX {
				maxX = x1
			}
		}
		if text == "" {
			continue
		}
		lines = append(lines, models.Line{
			Text:    text,
			XStart:  minX,
			XEnd:    maxX,
			YStart:  float64(row.Position),
			YEnd:    float64(row.Position),
			PageNum: pageNum,
		})
	}
	return lines, nil
}

// PageCount returns the PDF's page count, used by Discovery when
// recording Document.PageCount without a full OCR pass.
func PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("page count: open %s: %w", path, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}
