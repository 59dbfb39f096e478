package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/backyonatan-alt/restable/internal/config"
	"github.com/backyonatan-alt/restable/internal/jsonvalue"
)

// Fetcher issues single GET requests against REST endpoints and pauses for
// a fixed cooldown after every successful response, so that repeated calls
// do not overload the remote API.
type Fetcher struct {
	client   *http.Client
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Fetcher)

// WithClient replaces the default HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithSleep replaces the function that waits out the cooldown.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) { f.sleep = sleep }
}

func New(cfg *config.Config, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		cooldown: cfg.FetchCooldown,
		sleep:    sleepContext,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Cooldown is the pause taken after each successful response.
func (f *Fetcher) Cooldown() time.Duration { return f.cooldown }

// Fetch GETs url and returns the decoded document along with the raw body.
// A non-2xx response yields a *FetchFailure without waiting; a 2xx response
// always waits out the cooldown, after the body is read and before it is
// decoded. An undecodable body yields a *DecodeFailure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (jsonvalue.Value, []byte, error) {
	slog.Info("making api call", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return jsonvalue.Value{}, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return jsonvalue.Value{}, nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("bad response", "url", url, "status", resp.StatusCode)
		return jsonvalue.Value{}, nil, &FetchFailure{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return jsonvalue.Value{}, nil, fmt.Errorf("read body %s: %w", url, err)
	}

	if err := f.sleep(ctx, f.cooldown); err != nil {
		return jsonvalue.Value{}, nil, err
	}

	v, err := jsonvalue.Parse(body)
	if err != nil {
		slog.Warn("response is not json", "url", url, "bytes", len(body), "error", err)
		return jsonvalue.Value{}, nil, &DecodeFailure{URL: url, Err: err}
	}

	slog.Info("returning response json", "url", url, "bytes", len(body), "kind", v.Kind().String())
	return v, body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
