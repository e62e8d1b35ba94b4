// Package ocr implements the OCR Adapter: calls the external OCR
// engine, normalizes its line-level output into models.Line, discards
// low-confidence characters, and supports an optional text-layer
// fast-path for PDFs that don't need OCR at all.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"pravachan-index/internal/config"
	"pravachan-index/internal/pkgerrors"
	"pravachan-index/models"
)

// PageImage is one bitmap page handed to the OCR engine, transient and
// owned by this stage.
type PageImage struct {
	Bytes   []byte
	PageNum int
}

// rawChar is one OCR character hit before line clustering, as returned
// by the external engine.
type rawChar struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
}

type ocrResponse struct {
	Success bool      `json:"success"`
	Chars   []rawChar `json:"chars"`
	Error   string    `json:"error,omitempty"`
}

// Adapter is the contract: ocr(page_image, language) -> []Line.
type Adapter struct {
	cfg        *config.Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	textLayer  TextLayerExtractor
}

func NewAdapter(cfg *config.Config) *Adapter {
	return &Adapter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.OCRTimeoutSeconds) * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ocr-adapter",
			Timeout: 30 * time.Second,
		}),
	}
}

// OCRPage is the Discovery-facing entry point for one page of a PDF on
// disk: it tries the text-layer fast path first (no external OCR call,
// no rasterization) and only falls back to the external engine when the
// page has no usable text layer. Callers that already rasterized the
// page pass its bytes in page.Bytes; otherwise the whole PDF is shipped
// and the engine rasterizes the requested page itself.
func (a *Adapter) OCRPage(ctx context.Context, pdfPath string, page PageImage, language string) ([]models.Line, error) {
	if lines, err := a.textLayer.ExtractPage(pdfPath, page.PageNum); err == nil && len(lines) > 0 {
		return lines, nil
	}
	if len(page.Bytes) == 0 {
		data, err := os.ReadFile(pdfPath)
		if err != nil {
			return nil, pkgerrors.OCRError(page.PageNum, err)
		}
		page.Bytes = data
	}
	return a.OCR(ctx, page, language)
}

// OCR calls the external engine for one page image and returns the
// normalized line stream: confidence-below-threshold characters
// discarded, characters clustered into lines by y-coordinate, sorted by
// x within each line.
func (a *Adapter) OCR(ctx context.Context, page PageImage, language string) ([]models.Line, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		return a.callOnce(ctx, page, language)
	})
	if err != nil {
		return nil, pkgerrors.OCRError(page.PageNum, err)
	}

	resp := result.(*ocrResponse)
	if !resp.Success {
		return nil, pkgerrors.OCRError(page.PageNum, fmt.Errorf("%s", resp.Error))
	}

	chars := discardLowConfidence(resp.Chars, a.cfg.OCRConfidenceThreshold)
	return clusterIntoLines(chars, page.PageNum), nil
}

func (a *Adapter) callOnce(ctx context.Context, page PageImage, language string) (*ocrResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", fmt.Sprintf("page-%d", page.PageNum))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, bytes.NewReader(page.Bytes)); err != nil {
		return nil, fmt.Errorf("copy page bytes: %w", err)
	}
	writer.WriteField("language", language)
	writer.WriteField("page_num", fmt.Sprintf("%d", page.PageNum))
	writer.WriteField("crop_margin_percent", fmt.Sprintf("%.2f", a.cfg.OCRCropMarginPercent))
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.OCRServiceURL+"/ocr/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OCR request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var ocrResp ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, fmt.Errorf("decode OCR response: %w", err)
	}
	return &ocrResp, nil
}

func discardLowConfidence(chars []rawChar, threshold float64) []rawChar {
	out := make([]rawChar, 0, len(chars))
	for _, c := range chars {
		if c.Confidence >= threshold {
			out = append(out, c)
		}
	}
	return out
}

// clusterIntoLines groups characters into lines using y-coordinate
// clustering (characters within lineClusterTolerance of each other on
// the y-axis belong to the same line); within a line, characters are
// sorted by x.
const lineClusterTolerance = 4.0

func clusterIntoLines(chars []rawChar, pageNum int) []models.Line {
	if len(chars) == 0 {
		return nil
	}

	sorted := make([]rawChar, len(chars))
	copy(sorted, chars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y < sorted[j].Y })

	var clusters [][]rawChar
	clusters = append(clusters, []rawChar{sorted[0]})
	for _, c := range sorted[1:] {
		last := clusters[len(clusters)-1]
		if c.Y-last[len(last)-1].Y <= lineClusterTolerance {
			clusters[len(clusters)-1] = append(last, c)
		} else {
			clusters = append(clusters, []rawChar{c})
		}
	}

	lines := make([]models.Line, 0, len(clusters))
	for _, cluster := range clusters {
		sort.Slice(cluster, func(i, j int) bool { return cluster[i].X < cluster[j].X })

		var text string
		minX, maxX := cluster[0].X, cluster[0].X
		minY, maxY := cluster[0].Y, cluster[0].Y
		for _, c := range cluster {
			text += c.Text
			if c.X < minX {
				minX = c.X
			}
			if c.X > maxX {
				maxX = c.X
			}
			if c.Y < minY {
				minY = c.Y
			}
			if c.Y > maxY {
				maxY = c.Y
			}
		}

		lines = append(lines, models.Line{
			Text:    text,
			XStart:  minX,
			XEnd:    maxX,
			YStart:  minY,
			YEnd:    maxY,
			PageNum: pageNum,
		})
	}

	return lines
}
