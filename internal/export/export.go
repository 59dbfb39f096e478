// Package export names and stores CSV renderings of normalized tables.
package export

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ContentType is the media type of every export.
const ContentType = "text/csv; charset=utf-8"

// Sink stores finished CSV documents.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey names the export of source taken at t:
// exports/<host>/<path>/<UTC timestamp>.csv.
func ObjectKey(source string, t time.Time) string {
	host, path := "unknown", ""
	if u, err := url.Parse(source); err == nil && u.Host != "" {
		host = u.Host
		path = u.Path
	}

	parts := []string{"exports", clean(host)}
	for _, seg := range strings.Split(path, "/") {
		if seg = clean(seg); seg != "" {
			parts = append(parts, seg)
		}
	}
	parts = append(parts, t.UTC().Format("20060102T150405.000Z")+".csv")
	return strings.Join(parts, "/")
}

// Filename suggests a download name for the export of source.
func Filename(source string) string {
	name := "data"
	if u, err := url.Parse(source); err == nil {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if last := clean(segs[len(segs)-1]); last != "" {
			name = last
		}
	}
	return name + ".csv"
}

func clean(s string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(s, "_"), "_.")
}
