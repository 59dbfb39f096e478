package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	slogseq "github.com/sokkalf/slog-seq"
)

// fanout sends each record to every handler that accepts its level and
// reports all of their errors.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(derive func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = derive(h)
	}
	return out
}

// Setup builds the process logger: a text handler on w plus, when seqURL is
// set, a Seq sink. The returned func flushes the Seq sink.
func Setup(w io.Writer, seqURL string, level slog.Level) (*slog.Logger, func()) {
	console := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if seqURL == "" {
		return slog.New(console), func() {}
	}

	_, seqHandler := slogseq.NewLogger(
		seqURL,
		slogseq.WithBatchSize(50),
		slogseq.WithFlushInterval(time.Second),
		slogseq.WithHandlerOptions(&slog.HandlerOptions{Level: level}),
	)
	if seqHandler == nil {
		return slog.New(console), func() {}
	}

	logger := slog.New(fanout{console, seqHandler})
	return logger, func() { seqHandler.Close() }
}
