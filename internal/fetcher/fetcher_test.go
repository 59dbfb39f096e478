package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backyonatan-alt/restable/internal/config"
	"github.com/backyonatan-alt/restable/internal/jsonvalue"
)

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return nil
}

func newTestFetcher(rec *sleepRecorder) *Fetcher {
	return New(&config.Config{FetchCooldown: time.Second}, WithSleep(rec.sleep))
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSuccessSleepsOnce(t *testing.T) {
	srv := serve(t, http.StatusOK, `[{"id": 1, "name": "a"}]`)
	rec := &sleepRecorder{}

	v, body, err := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, jsonvalue.Array, v.Kind())
	assert.Equal(t, `[{"id":1,"name":"a"}]`, v.String())
	assert.Equal(t, `[{"id": 1, "name": "a"}]`, string(body))
	assert.Equal(t, []time.Duration{time.Second}, rec.calls)
}

func TestFetchAcceptsAny2xx(t *testing.T) {
	srv := serve(t, http.StatusAccepted, `{"ok": true}`)
	rec := &sleepRecorder{}

	_, _, err := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, rec.calls, 1)
}

func TestFetchFailureDoesNotSleep(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := serve(t, status, `{"error": "nope"}`)
			rec := &sleepRecorder{}

			_, body, err := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Nil(t, body)

			var failure *FetchFailure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, status, failure.StatusCode)
			assert.Equal(t, srv.URL, failure.URL)
			assert.Empty(t, rec.calls)
		})
	}
}

func TestFetchDecodeFailure(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html>not json</html>`)
	rec := &sleepRecorder{}

	_, _, err := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	var failure *DecodeFailure
	require.True(t, errors.As(err, &failure), "got %v", err)
	assert.Error(t, failure.Unwrap())
	assert.Len(t, rec.calls, 1, "cooldown applies to every successful response")
}

func TestFetchTransportError(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`)
	url := srv.URL
	srv.Close()
	rec := &sleepRecorder{}

	_, _, err := newTestFetcher(rec).Fetch(context.Background(), url)
	require.Error(t, err)
	var fetchFailure *FetchFailure
	assert.False(t, errors.As(err, &fetchFailure))
	assert.Empty(t, rec.calls)
}

func TestFetchCooldownHonoursCancellation(t *testing.T) {
	srv := serve(t, http.StatusOK, `{}`)
	f := New(&config.Config{FetchCooldown: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := f.Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestFetchRealCooldown(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"a": 1}`)
	f := New(&config.Config{FetchCooldown: 50 * time.Millisecond})

	start := time.Now()
	_, _, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, f.Cooldown())
}

func TestFetchWithClient(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"secure": true}`))
	}))
	t.Cleanup(srv.Close)
	rec := &sleepRecorder{}

	_, _, err := newTestFetcher(rec).Fetch(context.Background(), srv.URL)
	require.Error(t, err, "default client must reject the test certificate")

	f := New(&config.Config{}, WithClient(srv.Client()), WithSleep(rec.sleep))
	v, _, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"secure":true}`, v.String())
}
