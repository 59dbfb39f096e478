package model

import (
	"time"

	"github.com/backyonatan-alt/restable/internal/jsonvalue"
	"github.com/backyonatan-alt/restable/internal/table"
)

// PreviewRows is how many rows a preview shows.
const PreviewRows = 5

// Preview is the first rows of a normalized response, served to the UI.
type Preview struct {
	URL       string            `json:"url"`
	Columns   []string          `json:"columns"`
	Rows      []jsonvalue.Value `json:"rows"`
	TotalRows int               `json:"total_rows"`
}

// NewPreview renders the first n rows of t as records.
func NewPreview(url string, t *table.Table, n int) Preview {
	return Preview{
		URL:       url,
		Columns:   t.Columns(),
		Rows:      t.Head(n).Records(),
		TotalRows: t.Len(),
	}
}

// TargetURL is the URL assembled from the form fields.
type TargetURL struct {
	URL string `json:"url"`
}

// Export describes one CSV export copied to object storage.
type Export struct {
	URL       string    `json:"url"`
	ObjectKey string    `json:"object_key"`
	Rows      int       `json:"rows"`
	Columns   int       `json:"columns"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
