package stackedfs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	modeAsync = "async"
	modeSync  = "sync"

	resultFile      = "file"
	resultDirectory = "directory"
	resultAbsent    = "absent"
	resultError     = "error"
)

// Metrics holds read and notification metrics for instrumented readers
type Metrics struct {
	Reads         *prometheus.CounterVec
	ReadDuration  *prometheus.HistogramVec
	Notifications *prometheus.CounterVec
}

// NewMetrics creates and registers reader metrics with the given registry
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackedfs",
			Subsystem: "reader",
			Name:      "reads_total",
			Help:      "Total read operations by reader, mode and result.",
		}, []string{"reader", "mode", "result"}),
		ReadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stackedfs",
			Subsystem: "reader",
			Name:      "read_duration_seconds",
			Help:      "Duration of read operations.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"reader", "mode"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackedfs",
			Subsystem: "reader",
			Name:      "notifications_total",
			Help:      "Change notifications emitted by a reader.",
		}, []string{"reader", "virtual"}),
	}

	reg.MustRegister(
		m.Reads,
		m.ReadDuration,
		m.Notifications,
	)

	return m
}

// Instrument wraps a reader so its reads and notifications are counted
// under the given name. The wrapper shares the wrapped reader's listeners;
// Close stops counting notifications.
func (m *Metrics) Instrument(name string, next Reader) *InstrumentedReader {
	r := &InstrumentedReader{name: name, next: next, metrics: m}
	r.counter = NewListener(nil, func(_ string, info ChangeInfo) {
		virtual := "false"
		if info.Virtual {
			virtual = "true"
		}
		m.Notifications.WithLabelValues(name, virtual).Inc()
	})
	next.Listeners().Add(r.counter)
	return r
}

// InstrumentedReader is a Reader whose reads and notifications are recorded in Metrics
type InstrumentedReader struct {
	name    string
	next    Reader
	metrics *Metrics
	counter *FuncListener
}

var _ Reader = (*InstrumentedReader)(nil)

// Read implements Reader
func (r *InstrumentedReader) Read(ctx context.Context, path string) (Entry, error) {
	defer r.observe(modeAsync)()
	entry, err := r.next.Read(ctx, path)
	r.count(modeAsync, entry, err)
	return entry, err
}

// ReadSync implements Reader
func (r *InstrumentedReader) ReadSync(path string) (EntrySync, error) {
	defer r.observe(modeSync)()
	entry, err := r.next.ReadSync(path)
	r.count(modeSync, entry, err)
	return entry, err
}

// Listeners implements Reader
func (r *InstrumentedReader) Listeners() *Listeners {
	return r.next.Listeners()
}

// ObservedPaths returns what the wrapped reader observes
func (r *InstrumentedReader) ObservedPaths() []string {
	return observedPaths(r.next)
}

// Close removes the notification counter from the wrapped reader. The
// wrapped reader itself is left open.
func (r *InstrumentedReader) Close() error {
	r.next.Listeners().Remove(r.counter)
	return nil
}

func (r *InstrumentedReader) observe(mode string) func() {
	t0 := time.Now()
	return func() {
		r.metrics.ReadDuration.WithLabelValues(r.name, mode).Observe(time.Since(t0).Seconds())
	}
}

func (r *InstrumentedReader) count(mode string, entry EntrySync, err error) {
	r.metrics.Reads.WithLabelValues(r.name, mode, resultOf(entry, err)).Inc()
}

func resultOf(entry EntrySync, err error) string {
	switch {
	case err != nil:
		return resultError
	case entry == nil:
		return resultAbsent
	}
	switch entry.(type) {
	case File, FileSync:
		return resultFile
	default:
		return resultDirectory
	}
}
