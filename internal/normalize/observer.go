package normalize

import (
	"log/slog"
	"time"
)

// EventType names a point in a normalization run.
type EventType string

const (
	EventStart        EventType = "normalize_start"
	EventShape        EventType = "shape"
	EventRowExpansion EventType = "row_expansion"
	EventEnd          EventType = "normalize_end"
)

// Event is emitted to observers during Normalize. Path is the column prefix
// of the value concerned, empty at the root.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Path      string
	Shape     Shape
	Rows      int // rows produced (EventRowExpansion, EventEnd)
	Columns   int // columns produced (EventEnd)
}

// Observer receives diagnostic events. Implementations must be safe for
// concurrent use if the Normalizer is shared between goroutines.
type Observer interface {
	OnEvent(event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver writes events at debug level, and the final table size at
// info level.
type LoggingObserver struct {
	logger *slog.Logger
}

func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

func (lo *LoggingObserver) OnEvent(e Event) {
	switch e.Type {
	case EventEnd:
		lo.logger.Info("normalized response", "rows", e.Rows, "columns", e.Columns)
	case EventRowExpansion:
		lo.logger.Debug("normalize", "event", e.Type, "path", e.Path, "rows", e.Rows)
	default:
		lo.logger.Debug("normalize", "event", e.Type, "path", e.Path, "shape", e.Shape.String())
	}
}
