package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAdapter struct {
	merge bool
	fail  map[string]bool // texts whose individual send fails

	mu         sync.Mutex
	individual []Message
	bundles    [][]Message
}

func (a *recordingAdapter) Capability() Capability {
	return Capability{Platform: "test", SupportsMergeForward: a.merge}
}

func (a *recordingAdapter) SendIndividual(_ context.Context, msg Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail[msg.Text] {
		return NewPermanentError(errors.New("rejected"))
	}
	a.individual = append(a.individual, msg)
	return nil
}

func (a *recordingAdapter) SendForwardBundle(_ context.Context, msgs []Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bundles = append(a.bundles, msgs)
	return nil
}

func pushN(t *testing.T, q *Queue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := q.Push(Message{Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	tests := []struct {
		name            string
		queued          int
		merge           bool
		force           bool
		wantIndividual  int
		wantBundleSizes []int
	}{
		{name: "empty queue", queued: 0, merge: true},
		{name: "below min batch size", queued: 2, merge: true, wantIndividual: 2},
		{name: "bundle on merge-capable adapter", queued: 4, merge: true, wantBundleSizes: []int{4}},
		{name: "individual without merge support", queued: 4, merge: false, wantIndividual: 4},
		{name: "force individual", queued: 4, merge: true, force: true, wantIndividual: 4},
		{name: "exactly min batch size", queued: 3, merge: true, wantBundleSizes: []int{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			adapter := &recordingAdapter{merge: tt.merge}
			s := NewScheduler(SchedulerConfig{
				Interval:        time.Hour,
				MinBatchSize:    3,
				ForceIndividual: tt.force,
			}, q, adapter)

			pushN(t, q, tt.queued)
			s.RunOnce(context.Background())

			assert.Len(t, adapter.individual, tt.wantIndividual)
			require.Len(t, adapter.bundles, len(tt.wantBundleSizes))
			for i, size := range tt.wantBundleSizes {
				assert.Len(t, adapter.bundles[i], size)
			}
			assert.Zero(t, q.Len())
		})
	}
}

func TestScheduler_IndividualOrderAndPartialFailure(t *testing.T) {
	q := NewQueue()
	adapter := &recordingAdapter{fail: map[string]bool{"m1": true}}
	s := NewScheduler(SchedulerConfig{Interval: time.Hour, MinBatchSize: 3}, q, adapter)

	pushN(t, q, 4)
	s.RunOnce(context.Background())

	require.Len(t, adapter.individual, 3)
	assert.Equal(t, "m0", adapter.individual[0].Text)
	assert.Equal(t, "m2", adapter.individual[1].Text)
	assert.Equal(t, "m3", adapter.individual[2].Text)
}

func TestScheduler_BundlePreservesOrder(t *testing.T) {
	q := NewQueue()
	adapter := &recordingAdapter{merge: true}
	s := NewScheduler(SchedulerConfig{Interval: time.Hour, MinBatchSize: 3}, q, adapter)

	pushN(t, q, 5)
	s.RunOnce(context.Background())

	require.Len(t, adapter.bundles, 1)
	for i, msg := range adapter.bundles[0] {
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Text)
	}
}

func TestScheduler_StopFlushes(t *testing.T) {
	q := NewQueue()
	adapter := &recordingAdapter{}
	s := NewScheduler(SchedulerConfig{
		Interval:        time.Hour,
		MinBatchSize:    3,
		FlushOnShutdown: true,
	}, q, adapter)

	s.Start(context.Background())
	pushN(t, q, 2)
	s.Stop()
	s.Stop()

	assert.Len(t, adapter.individual, 2)
}

func TestScheduler_StopWithoutFlush(t *testing.T) {
	q := NewQueue()
	adapter := &recordingAdapter{}
	s := NewScheduler(SchedulerConfig{Interval: time.Hour, MinBatchSize: 3}, q, adapter)

	s.Start(context.Background())
	pushN(t, q, 2)
	s.Stop()

	assert.Empty(t, adapter.individual)
	assert.Equal(t, 2, q.Len())
}

func TestNewScheduler_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"zero interval", 0, DefaultSchedulerConfig().Interval},
		{"negative interval", -time.Second, DefaultSchedulerConfig().Interval},
		{"explicit interval", time.Minute, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			adapter := &recordingAdapter{}
			s := NewScheduler(SchedulerConfig{Interval: tt.interval, FlushOnShutdown: true}, q, adapter)
			assert.Equal(t, tt.want, s.config.Interval)
			assert.Equal(t, 1, s.config.MinBatchSize)

			assert.NotPanics(t, func() {
				s.Start(context.Background())
				pushN(t, q, 1)
				s.Stop()
			})
			assert.Len(t, adapter.individual, 1)
		})
	}
}

func TestScheduler_TickerDelivers(t *testing.T) {
	q := NewQueue()
	adapter := &recordingAdapter{}
	s := NewScheduler(SchedulerConfig{Interval: 10 * time.Millisecond, MinBatchSize: 3}, q, adapter)

	pushN(t, q, 1)
	s.Start(context.Background())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		adapter.mu.Lock()
		defer adapter.mu.Unlock()
		return len(adapter.individual) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable error", NewRetryableError(errors.New("temporary error")), true},
		{"permanent error", NewPermanentError(errors.New("permanent error")), false},
		{"wrapped permanent error", fmt.Errorf("send: %w", NewPermanentError(errors.New("x"))), false},
		{"generic error defaults to retryable", errors.New("unknown error"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestRetryableError(t *testing.T) {
	originalErr := errors.New("original error")

	err := NewRetryableError(originalErr)
	assert.Equal(t, "original error", err.Error())
	assert.True(t, err.IsRetryable())
	assert.Equal(t, originalErr, errors.Unwrap(err))

	perm := NewPermanentError(originalErr)
	assert.False(t, perm.IsRetryable())
	assert.ErrorIs(t, perm, originalErr)
}
