package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRetrier struct {
	calls atomic.Int32
	err   error
}

func (c *countingRetrier) RetryUnresourced(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestJobsRunImmediatelyAndOnTick(t *testing.T) {
	r := &countingRetrier{}
	j := NewJobs(r, 10*time.Millisecond, nil)
	j.Start(context.Background())

	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	j.Stop()

	after := r.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, r.calls.Load())

	// a second Stop is harmless
	j.Stop()
}

func TestJobsStopOnContextCancel(t *testing.T) {
	r := &countingRetrier{err: errors.New("db down")}
	j := NewJobs(r, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		j.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("jobs did not stop after cancel")
	}
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("production", "")
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = NewLogger("development", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))

	_, err = NewLogger("development", "loud")
	assert.Error(t, err)
}
