package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/backyonatan-alt/restable/internal/activity"
	"github.com/backyonatan-alt/restable/internal/cache"
	"github.com/backyonatan-alt/restable/internal/export"
	"github.com/backyonatan-alt/restable/internal/fetcher"
	"github.com/backyonatan-alt/restable/internal/jsonvalue"
	"github.com/backyonatan-alt/restable/internal/model"
	"github.com/backyonatan-alt/restable/internal/normalize"
	"github.com/backyonatan-alt/restable/internal/store"
	"github.com/backyonatan-alt/restable/internal/table"
)

var (
	// ErrNoStore is returned by Snapshot when no database is configured.
	ErrNoStore = errors.New("no response store configured")
	// ErrNoSnapshot is returned by Snapshot when url was never fetched.
	ErrNoSnapshot = errors.New("no stored response for url")
)

// Pipeline orchestrates: fetch -> store -> normalize -> cache, and CSV
// exports of the result.
type Pipeline struct {
	store      store.Store // optional
	cache      *cache.Cache
	fetcher    *fetcher.Fetcher
	normalizer *normalize.Normalizer
	sink       export.Sink       // optional
	activity   *activity.Tracker // optional

	group singleflight.Group
	now   func() time.Time
}

// refreshTimeout bounds one shared fetch, cooldown included.
const refreshTimeout = 2 * time.Minute

type Option func(*Pipeline)

// WithSink copies every export to sink.
func WithSink(sink export.Sink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithActivity records every fetch in t.
func WithActivity(t *activity.Tracker) Option {
	return func(p *Pipeline) { p.activity = t }
}

func New(store store.Store, cache *cache.Cache, fetcher *fetcher.Fetcher, normalizer *normalize.Normalizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		cache:      cache,
		fetcher:    fetcher,
		normalizer: normalizer,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Table returns the table for url, from the cache when possible.
func (p *Pipeline) Table(ctx context.Context, url string) (*table.Table, error) {
	if t, ok := p.cache.Get(url); ok {
		slog.Debug("cache hit", "url", url)
		return t, nil
	}
	return p.Refresh(ctx, url)
}

// Refresh fetches and normalizes url, bypassing the cache. Concurrent
// refreshes of the same url share one fetch. The shared fetch outlives any
// single caller: a caller whose ctx ends gets ctx.Err() while the others keep
// waiting, bounded by refreshTimeout.
func (p *Pipeline) Refresh(ctx context.Context, url string) (*table.Table, error) {
	ch := p.group.DoChan(url, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return p.refresh(fetchCtx, url)
	})

	select {
	case <-ctx.Done():
		slog.Debug("caller left in-flight fetch", "url", url, "error", ctx.Err())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.Debug("shared in-flight fetch", "url", url)
		}
		return res.Val.(*table.Table), nil
	}
}

func (p *Pipeline) refresh(ctx context.Context, url string) (*table.Table, error) {
	slog.Info("pipeline run starting", "url", url)

	doc, body, err := p.fetcher.Fetch(ctx, url)
	if p.activity != nil {
		p.activity.Record(url, err == nil)
	}
	if err != nil {
		return nil, err
	}

	var t *table.Table
	g, gctx := errgroup.WithContext(ctx)
	if p.store != nil {
		g.Go(func() error {
			// A failed save is logged, not fatal: the table is still good.
			if err := p.store.SaveResponse(gctx, url, body); err != nil {
				slog.Warn("failed to save response", "url", url, "error", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		t, err = p.normalizer.Normalize(doc)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.cache.Set(url, t)
	slog.Info("pipeline run complete", "url", url, "rows", t.Len(), "columns", t.Width())
	return t, nil
}

// Snapshot normalizes the last stored response for url without fetching.
func (p *Pipeline) Snapshot(ctx context.Context, url string) (*table.Table, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	body, err := p.store.LatestResponse(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if body == nil {
		return nil, ErrNoSnapshot
	}
	doc, err := jsonvalue.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return p.normalizer.Normalize(doc)
}

// Export renders the table for url as CSV. When a sink is configured the
// document is copied there too and the returned key names the object;
// otherwise the key is empty.
func (p *Pipeline) Export(ctx context.Context, url string, scalarOnly bool) ([]byte, string, error) {
	t, err := p.Table(ctx, url)
	if err != nil {
		return nil, "", err
	}
	if scalarOnly {
		t = t.ScalarOnly()
	}
	data, err := t.CSV()
	if err != nil {
		return nil, "", fmt.Errorf("render csv: %w", err)
	}
	if p.sink == nil {
		return data, "", nil
	}

	now := p.now()
	key := export.ObjectKey(url, now)
	if err := p.sink.Put(ctx, key, data); err != nil {
		return nil, "", fmt.Errorf("upload export: %w", err)
	}
	if p.store != nil {
		rec := model.Export{URL: url, ObjectKey: key, Rows: t.Len(), Columns: t.Width(), Bytes: len(data), CreatedAt: now}
		if err := p.store.SaveExport(ctx, rec); err != nil {
			slog.Warn("failed to record export", "key", key, "error", err)
		}
	}
	slog.Info("export uploaded", "url", url, "key", key, "bytes", len(data))
	return data, key, nil
}

// Exports lists recent exports, newest first.
func (p *Pipeline) Exports(ctx context.Context, limit int) ([]model.Export, error) {
	if p.store == nil {
		return nil, ErrNoStore
	}
	return p.store.RecentExports(ctx, limit)
}

// RefreshAll refreshes every url with at most limit fetches in flight, and
// exports each result when a sink is configured. Failures are logged; the
// first one is returned after all urls have been tried.
func (p *Pipeline) RefreshAll(ctx context.Context, urls []string, limit int) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, url := range urls {
		g.Go(func() error {
			if _, err := p.Refresh(ctx, url); err != nil {
				slog.Error("refresh failed", "url", url, "error", err)
				return fmt.Errorf("refresh %s: %w", url, err)
			}
			if p.sink == nil {
				return nil
			}
			if _, _, err := p.Export(ctx, url, false); err != nil {
				slog.Error("export failed", "url", url, "error", err)
				return fmt.Errorf("export %s: %w", url, err)
			}
			return nil
		})
	}
	return g.Wait()
}
