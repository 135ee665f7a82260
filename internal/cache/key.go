package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key derives the cache key for a request: upper-cased method, the
// endpoint path without a leading slash, and the query parameters
// sorted by name and then by value. Two requests differing in any
// parameter never share a key.
func Key(method, endpoint string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}

	path, rawQuery, _ := strings.Cut(endpoint, "?")
	path = strings.TrimLeft(path, "/")

	var sb strings.Builder
	sb.WriteString(method)
	sb.WriteByte(' ')
	sb.WriteString(path)

	if rawQuery == "" {
		return sb.String()
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// keep unparseable queries verbatim so they still key distinctly
		sb.WriteByte('?')
		sb.WriteString(rawQuery)
		return sb.String()
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	sep := byte('?')
	for _, name := range names {
		vals := append([]string(nil), values[name]...)
		sort.Strings(vals)
		for _, v := range vals {
			sb.WriteByte(sep)
			sb.WriteString(url.QueryEscape(name))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
			sep = '&'
		}
	}
	return sb.String()
}
