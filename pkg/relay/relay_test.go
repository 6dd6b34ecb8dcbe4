package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"imagehub/pkg/fakes"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueBodies(t *testing.T, ch *fakes.Channel, bodies ...string) {
	t.Helper()
	for _, b := range bodies {
		_, err := ch.Send(context.Background(), b)
		require.NoError(t, err)
	}
}

func TestTick_Empty(t *testing.T) {
	ch := fakes.NewChannel()
	r := New(ch, ch, time.Minute, nil)

	res, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, ch.PublishCalls)
	assert.Zero(t, ch.DeleteCalls)
}

func TestTick_RelaysBodiesVerbatim(t *testing.T) {
	ch := fakes.NewChannel()
	bodies := []string{"first\nline two", "  spaced  ", `{"json":true}`}
	queueBodies(t, ch, bodies...)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	r := New(ch, ch, time.Minute, m)

	res, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Received)
	assert.Equal(t, 3, res.Relayed)
	assert.Equal(t, 3, ch.PublishCalls)
	assert.Equal(t, 3, ch.DeleteCalls)
	assert.Equal(t, bodies, ch.Published)
	assert.Empty(t, ch.Queued)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.messages.WithLabelValues("relayed")))
}

func TestTick_BoundedByBatch(t *testing.T) {
	ch := fakes.NewChannel()
	ch.Batch = 2
	queueBodies(t, ch, "a", "b", "c")
	r := New(ch, ch, time.Minute, nil)

	res, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Relayed)
	assert.Len(t, ch.Queued, 1)
}

func TestTick_PublishFailureKeepsMessage(t *testing.T) {
	ch := fakes.NewChannel()
	queueBodies(t, ch, "ok", "bad")
	ch.PublishErr["bad"] = errors.New("topic throttled")
	r := New(ch, ch, time.Minute, nil)

	res, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Relayed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "publish", res.Failures[0].Stage)
	assert.Equal(t, 1, ch.DeleteCalls)
	require.Len(t, ch.Queued, 1)
	assert.Equal(t, "bad", ch.Queued[0].Body)
}

func TestTick_DeleteFailureCanRepublish(t *testing.T) {
	ch := fakes.NewChannel()
	queueBodies(t, ch, "dup")
	ch.DeleteErr[ch.Queued[0].ReceiptHandle] = errors.New("receipt expired")
	r := New(ch, ch, time.Minute, nil)

	res, err := r.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "delete", res.Failures[0].Stage)

	_, err = r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dup", "dup"}, ch.Published)
}

func TestTick_ReceiveError(t *testing.T) {
	ch := fakes.NewChannel()
	ch.ReceiveErr = errors.New("sqs unavailable")
	r := New(ch, ch, time.Minute, nil)

	_, err := r.Tick(context.Background())
	assert.ErrorContains(t, err, "sqs unavailable")
	assert.Zero(t, ch.PublishCalls)
}

func TestNew_DefaultInterval(t *testing.T) {
	r := New(fakes.NewChannel(), fakes.NewChannel(), 0, nil)
	assert.Equal(t, DefaultInterval, r.Interval())
}

type panickySink struct{ calls atomic.Int32 }

func (p *panickySink) Publish(context.Context, string) (string, error) {
	p.calls.Add(1)
	panic("publish blew up")
}

func TestRun_SurvivesPanicsAndStopsOnCancel(t *testing.T) {
	ch := fakes.NewChannel()
	queueBodies(t, ch, "poison")
	sink := &panickySink{}
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	r := New(ch, sink, 5*time.Millisecond, m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.ticks.WithLabelValues("panic")), 3.0)
}

func TestRun_KeepsGoingAfterTickErrors(t *testing.T) {
	ch := fakes.NewChannel()
	ch.ReceiveErr = errors.New("sqs unavailable")
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	r := New(ch, ch, 5*time.Millisecond, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ticks.WithLabelValues("error")) >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRun_RejectsSecondInstance(t *testing.T) {
	ch := fakes.NewChannel()
	r := New(ch, ch, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.Run(ctx) }()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.running
	}, time.Second, time.Millisecond)

	assert.Error(t, r.Run(ctx))
}
