// Package metrics exposes the resequencer's Prometheus instrumentation.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ibs-source/resequencer/internal/log"
)

// Prefix is prepended to every metric name.
const Prefix = "resequencer_"

type (
	// Bucket names the destination of a classified event.
	Bucket string
	// CheckpointOutcome names how a checkpoint attempt ended.
	CheckpointOutcome string
)

const (
	BucketMature   Bucket = "mature"
	BucketImmature Bucket = "immature"

	CheckpointCommitted        CheckpointOutcome = "committed"
	CheckpointSkippedShutdown  CheckpointOutcome = "skipped_shutdown"
	CheckpointSkippedThrottled CheckpointOutcome = "skipped_throttled"
	CheckpointInvalidState     CheckpointOutcome = "invalid_state"
	CheckpointFailed           CheckpointOutcome = "failed"
	CheckpointNotAttempted     CheckpointOutcome = "not_attempted"
	CheckpointNothingToCommit  CheckpointOutcome = "nothing_to_commit"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	recordsPolled     *prometheus.CounterVec
	events            *prometheus.CounterVec
	duplicates        prometheus.Counter
	decodeErrors      *prometheus.CounterVec
	putRequests       *prometheus.CounterVec
	putFailedEntries  *prometheus.CounterVec
	checkpoints       *prometheus.CounterVec
	batches           *prometheus.CounterVec
	batchDuration     prometheus.Histogram
	bounces           prometheus.Histogram
	orderInversions   prometheus.Counter
	mirrorPublishings *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		recordsPolled: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "records_polled_total",
			Help: "Number of raw records read, grouped by partition",
		}, []string{"partition"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "events_total",
			Help: "Number of decoded events grouped by maturity bucket",
		}, []string{"bucket"}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: Prefix + "duplicates_dropped_total",
			Help: "Number of events dropped as duplicates within a batch",
		}),
		decodeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "decode_errors_total",
			Help: "Number of records that could not be decoded, grouped by reason",
		}, []string{"reason"}),
		putRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "put_requests_total",
			Help: "Number of batched write requests grouped by queue",
		}, []string{"queue"}),
		putFailedEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "put_failed_entries_total",
			Help: "Number of rejected batch entries grouped by queue",
		}, []string{"queue"}),
		checkpoints: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "checkpoints_total",
			Help: "Number of checkpoint attempts grouped by outcome",
		}, []string{"outcome"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "batches_total",
			Help: "Number of processed batches grouped by final state",
		}, []string{"state"}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    Prefix + "batch_duration_seconds",
			Help:    "Time spent processing one batch",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		bounces: f.NewHistogram(prometheus.HistogramOpts{
			Name:    Prefix + "event_bounces",
			Help:    "Number of re-injections an event went through before being emitted in order",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 50, 100},
		}),
		orderInversions: f.NewCounter(prometheus.CounterOpts{
			Name: Prefix + "order_inversions_total",
			Help: "Number of adjacent out-of-order events observed on the ordered queue",
		}),
		mirrorPublishings: f.NewCounterVec(prometheus.CounterOpts{
			Name: Prefix + "mirror_publish_total",
			Help: "Number of emitted events mirrored to MQTT grouped by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) RecordPolled(partition string, n int) {
	if m == nil {
		return
	}
	m.recordsPolled.WithLabelValues(partition).Add(float64(n))
}

func (m *Metrics) RecordEvents(bucket Bucket, n int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(bucket)).Add(float64(n))
}

func (m *Metrics) RecordDuplicates(n int) {
	if m == nil {
		return
	}
	m.duplicates.Add(float64(n))
}

func (m *Metrics) RecordDecodeError(reason string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordPut(queue string, failedEntries int) {
	if m == nil {
		return
	}
	m.putRequests.WithLabelValues(queue).Inc()
	if failedEntries > 0 {
		m.putFailedEntries.WithLabelValues(queue).Add(float64(failedEntries))
	}
}

func (m *Metrics) RecordCheckpoint(outcome CheckpointOutcome) {
	if m == nil {
		return
	}
	m.checkpoints.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) RecordBatch(state string, took time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(state).Inc()
	m.batchDuration.Observe(took.Seconds())
}

// RecordBounces observes the bounce count of an event emitted in order.
func (m *Metrics) RecordBounces(bounces int) {
	if m == nil {
		return
	}
	m.bounces.Observe(float64(bounces))
}

func (m *Metrics) RecordOrderInversions(n int) {
	if m == nil || n == 0 {
		return
	}
	m.orderInversions.Add(float64(n))
}

func (m *Metrics) RecordMirror(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.mirrorPublishings.WithLabelValues(result).Inc()
}

// Serve exposes g on addr under /metrics and returns a function that stops
// the server. An empty addr disables the endpoint.
func Serve(addr string, g prometheus.Gatherer, logger *log.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown: %v", err)
		}
	}
}
