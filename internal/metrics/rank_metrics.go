package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("rank-metrics")

// RankMetrics provides metrics collection for ranking requests
type RankMetrics struct {
	requestsCounter      metric.Int64Counter
	completedCounter     metric.Int64Counter
	failedCounter        metric.Int64Counter
	fallbackCounter      metric.Int64Counter
	durationHistogram    metric.Float64Histogram
	uploadBytesHistogram metric.Int64Histogram
	activeGauge          metric.Int64UpDownCounter
}

// NewRankMetrics creates a new rank metrics collector
func NewRankMetrics() (*RankMetrics, error) {
	requestsCounter, err := meter.Int64Counter(
		"warm_ranker.rank.requests",
		metric.WithDescription("Total number of rank requests received"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	completedCounter, err := meter.Int64Counter(
		"warm_ranker.rank.completed",
		metric.WithDescription("Total number of rank requests answered with scorer output"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	failedCounter, err := meter.Int64Counter(
		"warm_ranker.rank.failed",
		metric.WithDescription("Total number of rank requests that failed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	fallbackCounter, err := meter.Int64Counter(
		"warm_ranker.rank.candidate.fallbacks",
		metric.WithDescription("Candidate executables skipped because they were not installed"),
		metric.WithUnit("{candidate}"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"warm_ranker.rank.duration",
		metric.WithDescription("Duration of rank requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	uploadBytesHistogram, err := meter.Int64Histogram(
		"warm_ranker.rank.upload.bytes",
		metric.WithDescription("Size of accepted uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	activeGauge, err := meter.Int64UpDownCounter(
		"warm_ranker.rank.active",
		metric.WithDescription("Number of rank requests in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &RankMetrics{
		requestsCounter:      requestsCounter,
		completedCounter:     completedCounter,
		failedCounter:        failedCounter,
		fallbackCounter:      fallbackCounter,
		durationHistogram:    durationHistogram,
		uploadBytesHistogram: uploadBytesHistogram,
		activeGauge:          activeGauge,
	}, nil
}

// RecordStarted records a new rank request
func (rm *RankMetrics) RecordStarted(ctx context.Context) {
	rm.requestsCounter.Add(ctx, 1)
	rm.activeGauge.Add(ctx, 1)
}

// RecordUpload records the size of an accepted upload
func (rm *RankMetrics) RecordUpload(ctx context.Context, size int64) {
	rm.uploadBytesHistogram.Record(ctx, size)
}

// RecordFallbacks records candidates skipped before the scorer was found
func (rm *RankMetrics) RecordFallbacks(ctx context.Context, skipped int) {
	if skipped <= 0 {
		return
	}
	rm.fallbackCounter.Add(ctx, int64(skipped))
}

// RecordCompleted records a successful rank request
func (rm *RankMetrics) RecordCompleted(ctx context.Context, executable string, duration time.Duration) {
	rm.completedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scorer.executable", executable),
			attribute.String("status", "completed"),
		),
	)
	rm.durationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", "completed"),
		),
	)
	rm.activeGauge.Add(ctx, -1)
}

// RecordFailed records a failed rank request
func (rm *RankMetrics) RecordFailed(ctx context.Context, errorKind string, duration time.Duration) {
	rm.failedCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", "failed"),
			attribute.String("error.kind", errorKind),
		),
	)
	rm.durationHistogram.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", "failed"),
			attribute.String("error.kind", errorKind),
		),
	)
	rm.activeGauge.Add(ctx, -1)
}
