package activity

import (
	"net/url"
	"sort"
	"sync"
	"time"
)

// Fetch is a single call made against a remote API.
type Fetch struct {
	Timestamp time.Time
	Host      string
	OK        bool
}

// HostStats holds the fetch counts for one host.
type HostStats struct {
	Host   string `json:"host"`
	Count  int    `json:"count"`
	Failed int    `json:"failed"`
}

// Stats is the activity summary returned by the API.
type Stats struct {
	Window string      `json:"window"`
	Total  int         `json:"total"`
	Failed int         `json:"failed"`
	Hosts  []HostStats `json:"hosts"`
}

// Tracker tracks fetches with a sliding time window.
type Tracker struct {
	mu         sync.Mutex
	fetches    []Fetch
	window     time.Duration
	maxFetches int
	now        func() time.Time
}

// NewTracker creates a tracker over the last window.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = time.Hour
	}
	return &Tracker{
		fetches:    make([]Fetch, 0, 256),
		window:     window,
		maxFetches: 10000,
		now:        time.Now,
	}
}

// Record logs one fetch of rawURL.
func (t *Tracker) Record(rawURL string, ok bool) {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.trimOld(now)
	t.fetches = append(t.fetches, Fetch{Timestamp: now, Host: host, OK: ok})
	if len(t.fetches) > t.maxFetches {
		t.fetches = t.fetches[len(t.fetches)-t.maxFetches:]
	}
}

// Stats returns counts per host within the window, busiest host first.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.trimOld(now)

	byHost := make(map[string]*HostStats)
	stats := Stats{Window: t.window.String(), Hosts: []HostStats{}}
	for _, f := range t.fetches {
		hs, ok := byHost[f.Host]
		if !ok {
			hs = &HostStats{Host: f.Host}
			byHost[f.Host] = hs
		}
		hs.Count++
		stats.Total++
		if !f.OK {
			hs.Failed++
			stats.Failed++
		}
	}
	for _, hs := range byHost {
		stats.Hosts = append(stats.Hosts, *hs)
	}
	sort.Slice(stats.Hosts, func(i, j int) bool {
		if stats.Hosts[i].Count != stats.Hosts[j].Count {
			return stats.Hosts[i].Count > stats.Hosts[j].Count
		}
		return stats.Hosts[i].Host < stats.Hosts[j].Host
	})
	return stats
}

// trimOld removes fetches outside the window.
// Must be called with lock held.
func (t *Tracker) trimOld(now time.Time) {
	cutoff := now.Add(-t.window)
	idx := sort.Search(len(t.fetches), func(i int) bool {
		return t.fetches[i].Timestamp.After(cutoff)
	})
	if idx > 0 {
		t.fetches = t.fetches[idx:]
	}
}
