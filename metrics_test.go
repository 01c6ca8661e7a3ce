package stackedfs

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mem := memoryWith(t, map[string]string{"d/x": "1"})
	r := m.Instrument("overlay", mem)
	require.Same(t, mem.Listeners(), r.Listeners())

	_, err := r.ReadSync("d/x")
	require.NoError(t, err)
	_, err = r.ReadSync("missing")
	require.NoError(t, err)
	_, err = r.Read(context.Background(), "d")
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Reads.WithLabelValues("overlay", modeSync, resultFile)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Reads.WithLabelValues("overlay", modeSync, resultAbsent)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Reads.WithLabelValues("overlay", modeAsync, resultDirectory)))
	require.Equal(t, 2, testutil.CollectAndCount(m.ReadDuration))

	require.NoError(t, mem.WriteFile("d/y", []byte("2")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("overlay", "true")))
}

func TestMetricsInstrumentStack(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	errBoom := errors.New("boom")
	s := New(WithReaders(mustNewMemoryReader(t), &failingReader{err: errBoom}))
	defer s.Close()

	r := m.Instrument("stack", s)
	_, err := r.Read(context.Background(), "x")
	require.Equal(t, errBoom, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.Reads.WithLabelValues("stack", modeAsync, resultError)))

	// The instrumented stack can itself be stacked
	outer := New(WithReader(r))
	defer outer.Close()
	l := newRecorder()
	outer.Listeners().Add(l)
	s.Listeners().Notify("x", ChangeInfo{})
	require.Len(t, l.drain(), 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("stack", "false")))
}

func TestMetricsInstrumentClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mem := mustNewMemoryReader(t)
	before := mem.Listeners().Len()

	r := m.Instrument("overlay", mem)
	require.Equal(t, before+1, mem.Listeners().Len())

	require.NoError(t, r.Close())
	require.Equal(t, before, mem.Listeners().Len())

	require.NoError(t, mem.WriteFile("x", []byte("1")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Notifications.WithLabelValues("overlay", "true")))

	// Reads still work and are still counted
	_, err := r.ReadSync("x")
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Reads.WithLabelValues("overlay", modeSync, resultFile)))
}

func TestMetricsInstrumentNestedObservedPaths(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	bottom := mustNewMemoryReader(t)
	inner := New(WithReader(bottom))
	defer inner.Close()

	r := m.Instrument("inner", inner)
	defer r.Close()
	outer := New(WithReader(r))
	defer outer.Close()

	bottom.Listeners().Add(newRecorder("own.ts"))
	require.Equal(t, []string{"own.ts"}, outer.ObservedPaths())
}
