package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key derives a deterministic cache key from an endpoint path and a
// parameter set. Parameter names are sorted lexicographically, so two
// requests with identically-valued parameters in different insertion order
// map to the same key. With no parameters the endpoint is returned
// unchanged.
//
// Format: endpoint:name=value:name=value
func Key(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+1)
	parts = append(parts, endpoint)
	for _, name := range names {
		parts = append(parts, name+"="+params.Get(name))
	}
	return strings.Join(parts, ":")
}
