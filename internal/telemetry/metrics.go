package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the ingest pipeline's and search API's application metrics.
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	DocumentsDiscovered metric.Int64Counter
	StageDuration      metric.Float64Histogram
	EmbeddingCalls     metric.Int64Counter
	IndexOperations    metric.Int64Counter
	SearchFusedResults metric.Int64Counter
}

func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("pravachan-index")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsDiscovered, err := meter.Int64Counter(
		"discovery.documents.total",
		metric.WithDescription("Documents classified by the Discovery Engine, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"ingest.stage.duration",
		metric.WithDescription("Ingest pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embedding.calls.total",
		metric.WithDescription("Embedding Adapter calls, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	indexOperations, err := meter.Int64Counter(
		"index.operations.total",
		metric.WithDescription("Indexer operations, by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	searchFusedResults, err := meter.Int64Counter(
		"search.fused_results.total",
		metric.WithDescription("Chunks returned after RRF fusion and dedup"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		DocumentsDiscovered: documentsDiscovered,
		StageDuration:       stageDuration,
		EmbeddingCalls:      embeddingCalls,
		IndexOperations:     indexOperations,
		SearchFusedResults:  searchFusedResults,
	}, nil
}

func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}
	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordDiscovery records a single Discovery Engine classification outcome
// (new, content_changed, config_changed, unchanged, deleted, failed).
func (m *Metrics) RecordDiscovery(outcome string) {
	attrs := []attribute.KeyValue{attribute.String("outcome", outcome)}
	m.DocumentsDiscovered.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordStage records the wall-clock duration of one ingest pipeline
// stage (ocr, classify, paragraph, chunk, embed, index) for one document.
func (m *Metrics) RecordStage(stage string, duration float64, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
		attribute.Bool("success", success),
	}
	m.StageDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEmbeddingCall(provider string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.Bool("success", success),
	}
	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordIndexOperation(operation string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	}
	m.IndexOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordSearchFused(count int64, degraded bool) {
	attrs := []attribute.KeyValue{attribute.Bool("degraded", degraded)}
	m.SearchFusedResults.Add(context.Background(), count, metric.WithAttributes(attrs...))
}
