package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backyonatan-alt/restable/internal/activity"
	"github.com/backyonatan-alt/restable/internal/cache"
	"github.com/backyonatan-alt/restable/internal/config"
	"github.com/backyonatan-alt/restable/internal/export"
	"github.com/backyonatan-alt/restable/internal/fetcher"
	"github.com/backyonatan-alt/restable/internal/logging"
	"github.com/backyonatan-alt/restable/internal/normalize"
	"github.com/backyonatan-alt/restable/internal/pipeline"
	"github.com/backyonatan-alt/restable/internal/scheduler"
	"github.com/backyonatan-alt/restable/internal/server"
	"github.com/backyonatan-alt/restable/internal/store"
)

func main() {
	var (
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		target      = flag.String("url", "", "Fetch url once, write its CSV to -out and exit")
		out         = flag.String("out", "data.csv", "CSV file written by -url and the TUI")
		scalarOnly  = flag.Bool("scalar-only", false, "Drop list and object columns from -url exports")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal; its logs only go to Seq.
	var logOut io.Writer = os.Stdout
	switch {
	case *interactive:
		logOut = io.Discard
	case *target != "":
		logOut = os.Stderr
	}
	logger, closeLog := logging.Setup(logOut, cfg.SeqURL, cfg.LogLevel)
	slog.SetDefault(logger)

	switch {
	case *interactive:
		err = runInteractive(cfg, *out)
	case *target != "":
		err = runOnce(cfg, *target, *out, *scalarOnly)
	default:
		err = serve(cfg)
	}
	closeLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wired dependency graph shared by every mode.
type app struct {
	pipeline *pipeline.Pipeline
	cache    *cache.Cache
	activity *activity.Tracker
	close    func()
}

func build(ctx context.Context, cfg *config.Config, withStorage bool) (*app, error) {
	c, err := cache.New(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	f := fetcher.New(cfg)
	n := normalize.New(normalize.Options{
		Separator: cfg.Separator,
		MaxRows:   cfg.MaxRows,
		Observer:  normalize.NewLoggingObserver(slog.Default()),
	})
	tracker := activity.NewTracker(time.Hour)
	opts := []pipeline.Option{pipeline.WithActivity(tracker)}
	closeFn := func() {}

	var st store.Store
	if withStorage && cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		st = pg
		closeFn = func() { db.Close() }
		slog.Info("response store enabled", "driver", cfg.DatabaseDriver)
	}

	if withStorage && cfg.Artifact.Enabled {
		sink, err := export.NewS3Sink(cfg.Artifact)
		if err != nil {
			closeFn()
			return nil, err
		}
		opts = append(opts, pipeline.WithSink(sink))
		slog.Info("export sink enabled", "endpoint", cfg.Artifact.Endpoint, "bucket", cfg.Artifact.Bucket)
	}

	p := pipeline.New(st, c, f, n, opts...)
	return &app{pipeline: p, cache: c, activity: tracker, close: closeFn}, nil
}

func runOnce(cfg *config.Config, target, out string, scalarOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	data, key, err := a.pipeline.Export(ctx, target, scalarOnly)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	slog.Info("csv written", "path", out, "bytes", len(data), "object_key", key)
	return nil
}

func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := build(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.close()

	var sched *scheduler.Scheduler
	if len(cfg.WatchURLs) > 0 {
		sched = scheduler.New(a.pipeline, cfg.WatchURLs, cfg.RefreshInterval, cfg.FetchBurst)
		// Warm the cache once before serving; failures are non-fatal.
		slog.Info("running initial refresh")
		sched.RunOnce(ctx)
		go sched.Start(ctx)
	}

	srv := server.New(cfg, a.pipeline, a.cache, a.activity)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down")

	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
