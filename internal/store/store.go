package store

import (
	"context"

	"github.com/backyonatan-alt/restable/internal/model"
)

// Store is the repository interface for fetched responses and exports.
type Store interface {
	// SaveResponse stores the raw JSON body fetched from url.
	SaveResponse(ctx context.Context, url string, body []byte) error
	// LatestResponse returns the most recent body fetched from url, or nil.
	LatestResponse(ctx context.Context, url string) ([]byte, error)
	// SaveExport records a CSV export.
	SaveExport(ctx context.Context, e model.Export) error
	// RecentExports returns up to limit exports, newest first.
	RecentExports(ctx context.Context, limit int) ([]model.Export, error)
	// Migrate runs database migrations.
	Migrate(ctx context.Context) error
}
