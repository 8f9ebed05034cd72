package o11y

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meter holds the package-level OTel meter used by metric recording functions.
var meter metric.Meter

var (
	framesPushedCounter  metric.Int64Counter
	framesDroppedCounter metric.Int64Counter
	segmentsCounter      metric.Int64Counter
	reconnectCounter     metric.Int64Counter
	endpointLatency      metric.Float64Histogram

	meterOnce sync.Once
	meterErr  error
)

func init() {
	meter = otel.Meter("github.com/teunlao/saraudio-sub000")
}

// initInstruments lazily creates the pre-defined metric instruments. This is
// deferred so callers can configure the meter provider before first use.
func initInstruments() error {
	meterOnce.Do(func() {
		var err error

		framesPushedCounter, err = meter.Int64Counter(
			"saraudio.pipeline.frames_pushed",
			metric.WithDescription("Frames admitted to the pipeline"),
			metric.WithUnit("{frame}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		framesDroppedCounter, err = meter.Int64Counter(
			"saraudio.pipeline.frames_dropped",
			metric.WithDescription("Frames dropped by pre-ready overflow or send-queue eviction"),
			metric.WithUnit("{frame}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		segmentsCounter, err = meter.Int64Counter(
			"saraudio.segmenter.segments_emitted",
			metric.WithDescription("Finalized speech segments emitted by the segmenter"),
			metric.WithUnit("{segment}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		reconnectCounter, err = meter.Int64Counter(
			"saraudio.controller.reconnect_attempts",
			metric.WithDescription("Provider reconnect attempts made by the transcription controller"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			meterErr = err
			return
		}

		endpointLatency, err = meter.Float64Histogram(
			"saraudio.controller.segment_to_first_token_ms",
			metric.WithDescription("Latency between a segment ending and the first transcript token arriving"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			meterErr = err
			return
		}
	})
	return meterErr
}

// RecordFramePushed increments the frames-pushed counter. Safe to call before
// a meter provider is configured; failures are swallowed since metrics must
// never block the pipeline's single-threaded frame loop.
func RecordFramePushed(ctx context.Context, component string) {
	if err := initInstruments(); err != nil {
		return
	}
	framesPushedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
}

// RecordFrameDropped increments the frames-dropped counter, tagged by reason
// ("pre_ready_overflow", "send_queue_budget").
func RecordFrameDropped(ctx context.Context, reason string) {
	if err := initInstruments(); err != nil {
		return
	}
	framesDroppedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSegmentEmitted increments the segments-emitted counter.
func RecordSegmentEmitted(ctx context.Context) {
	if err := initInstruments(); err != nil {
		return
	}
	segmentsCounter.Add(ctx, 1)
}

// RecordReconnectAttempt increments the controller reconnect-attempts counter.
func RecordReconnectAttempt(ctx context.Context) {
	if err := initInstruments(); err != nil {
		return
	}
	reconnectCounter.Add(ctx, 1)
}

// RecordEndpointLatency records the duration in milliseconds between a
// segment ending and the first transcript token for it arriving.
func RecordEndpointLatency(ctx context.Context, ms float64) {
	if err := initInstruments(); err != nil {
		return
	}
	endpointLatency.Record(ctx, ms)
}
