package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/skyhaul/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeleter struct {
	mu    sync.Mutex
	calls int
	args  [][2]int
	n     int64
	err   error
}

func (f *fakeDeleter) DeleteOldTokens(_ context.Context, expired, deactivated int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.args = append(f.args, [2]int{expired, deactivated})
	return f.n, f.err
}

func (f *fakeDeleter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweep_PassesRetentionWindows(t *testing.T) {
	d := &fakeDeleter{n: 4}
	j := NewJanitor(d, 30, 7, time.Hour, logging.Nop())

	n, err := j.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, [][2]int{{30, 7}}, d.args)
}

func TestSweep_ReturnsStoreError(t *testing.T) {
	boom := errors.New("boom")
	j := NewJanitor(&fakeDeleter{err: boom}, 30, 30, time.Hour, nil)

	n, err := j.Sweep(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestRun_SweepsOnStartAndOnTick(t *testing.T) {
	d := &fakeDeleter{}
	j := NewJanitor(d, 30, 30, 10*time.Millisecond, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return d.count() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}

func TestRun_KeepsGoingAfterErrors(t *testing.T) {
	d := &fakeDeleter{err: errors.New("db down")}
	j := NewJanitor(d, 30, 30, 10*time.Millisecond, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	require.Eventually(t, func() bool { return d.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_NoIntervalSweepsOnce(t *testing.T) {
	d := &fakeDeleter{}
	j := NewJanitor(d, 30, 30, 0, logging.Nop())

	j.Run(context.Background())
	assert.Equal(t, 1, d.count())
}
