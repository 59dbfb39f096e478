package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	urls  []string
	limit int
	err   error
}

func (c *countingRefresher) RefreshAll(_ context.Context, urls []string, limit int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.urls = urls
	c.limit = limit
	return c.err
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRunOnce(t *testing.T) {
	r := &countingRefresher{err: errors.New("boom")}
	s := New(r, []string{"https://a.example/x"}, time.Hour, 3)

	s.RunOnce(context.Background())
	assert.Equal(t, 1, r.count())
	assert.Equal(t, []string{"https://a.example/x"}, r.urls)
	assert.Equal(t, 3, r.limit)
}

func TestStartTicksUntilStopped(t *testing.T) {
	r := &countingRefresher{}
	s := New(r, []string{"https://a.example/x"}, 5*time.Millisecond, 1)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return r.count() >= 2 }, time.Second, time.Millisecond)
	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStartReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(&countingRefresher{}, nil, time.Hour, 1)

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler ignored cancellation")
	}
}
