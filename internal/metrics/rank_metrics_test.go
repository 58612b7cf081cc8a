package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankMetrics_Creation(t *testing.T) {
	t.Run("successfully create rank metrics", func(t *testing.T) {
		metrics, err := NewRankMetrics()
		require.NoError(t, err)
		assert.NotNil(t, metrics)
		assert.NotNil(t, metrics.requestsCounter)
		assert.NotNil(t, metrics.completedCounter)
		assert.NotNil(t, metrics.failedCounter)
		assert.NotNil(t, metrics.fallbackCounter)
		assert.NotNil(t, metrics.durationHistogram)
		assert.NotNil(t, metrics.uploadBytesHistogram)
		assert.NotNil(t, metrics.activeGauge)
	})
}

func TestRankMetrics_Lifecycle(t *testing.T) {
	metrics, err := NewRankMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("completed request", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordStarted(ctx)
			metrics.RecordUpload(ctx, 2048)
			metrics.RecordFallbacks(ctx, 2)
			metrics.RecordCompleted(ctx, "/usr/bin/python3", 1500*time.Millisecond)
		})
	})

	t.Run("failed requests by kind", func(t *testing.T) {
		kinds := []string{
			"ValidationError",
			"PayloadTooLarge",
			"ExecutableNotFound",
			"ExecutionFailed",
			"DecodeError",
		}

		for i, kind := range kinds {
			metrics.RecordStarted(ctx)
			metrics.RecordFailed(ctx, kind, time.Duration(i+1)*time.Second)
		}
	})

	t.Run("zero fallbacks is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() {
			metrics.RecordFallbacks(ctx, 0)
			metrics.RecordFallbacks(ctx, -1)
		})
	})
}

func TestRankMetrics_ConcurrentRecording(t *testing.T) {
	metrics, err := NewRankMetrics()
	require.NoError(t, err)

	t.Run("handle concurrent metric recording", func(t *testing.T) {
		ctx := context.Background()
		done := make(chan bool)

		for i := 0; i < 10; i++ {
			go func(id int) {
				metrics.RecordStarted(ctx)

				duration := time.Duration(id) * 100 * time.Millisecond
				if id%2 == 0 {
					metrics.RecordCompleted(ctx, "python3", duration)
				} else {
					metrics.RecordFailed(ctx, "ExecutionFailed", duration)
				}

				done <- true
			}(i)
		}

		for i := 0; i < 10; i++ {
			<-done
		}
	})
}
