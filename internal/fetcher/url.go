package fetcher

import "strings"

// Param is one key=value query parameter slot of the URL form.
type Param struct {
	Key   string
	Value string
}

// BuildURL joins base and params as base?k1=v1&k2=v2. Parameters with an
// empty key are left out, and an empty base gives an empty URL. Keys and
// values are used as typed.
func BuildURL(base string, params []Param) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(base)
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = ""
		}
	}
	for _, p := range params {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strings.TrimSpace(p.Value))
		sep = "&"
	}
	return b.String()
}
