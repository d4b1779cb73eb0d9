// Package pagination walks paginated StatHub collections.
//
// StatHub collection endpoints return one page per request together with a
// next_page link. The Walker follows those links lazily and strictly in
// order, because each link is a continuation token derived from the previous
// response. FetchAll drains a walker into one slice; BatchFetch partitions a
// large identifier list to respect the per-request batch ceiling.
package pagination

import (
	"context"
	"net/url"

	"github.com/nwardt/stathub-mcp/pkg/client"
)

// Walker lazily traverses the pages of one collection endpoint.
//
// A Walker is single-use and not restartable: each traversal starts from the
// first page, and no intermediate state survives across walks. Caching of
// assembled collections is the read-through cache's job, one level up.
// A Walker must not be shared between goroutines.
type Walker[T any] struct {
	c        *client.Client
	endpoint string
	params   url.Values
	next     string
	started  bool
	done     bool
}

// Walk creates a Walker over endpoint with the given initial parameters.
// No request is issued until the first call to Next.
func Walk[T any](c *client.Client, endpoint string, params url.Values) *Walker[T] {
	return &Walker[T]{c: c, endpoint: endpoint, params: params}
}

// Next returns the next non-empty batch of records in server page order.
// Record order within a batch is preserved as received. Once the traversal
// is exhausted Next returns (nil, nil).
//
// Pages are fetched strictly sequentially; the next page is never requested
// before the current envelope has arrived. Server-supplied page links are
// followed verbatim, the original params are not re-applied to them.
func (w *Walker[T]) Next(ctx context.Context) ([]T, error) {
	for !w.done {
		var env *client.Envelope[T]
		var err error
		if !w.started {
			w.started = true
			env, err = client.Get[T](ctx, w.c, w.endpoint, w.params)
		} else {
			env, err = client.GetPage[T](ctx, w.c, w.next)
		}
		if err != nil {
			w.done = true
			return nil, err
		}

		w.next = env.NextPage
		if w.next == "" {
			w.done = true
		}
		if len(env.Values) > 0 {
			return env.Values, nil
		}
	}
	return nil, nil
}

// Done reports whether the traversal is exhausted.
func (w *Walker[T]) Done() bool {
	return w.done
}
