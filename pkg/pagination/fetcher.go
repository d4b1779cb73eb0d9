package pagination

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nwardt/stathub-mcp/pkg/client"
)

// FetchAll drains a fresh page traversal and returns the complete
// collection in page order.
//
// It blocks until every page has arrived, so it is only appropriate for
// bounded collections (the StatHub catalogs run to thousands of records,
// not millions). Do not point it at unbounded data.
func FetchAll[T any](ctx context.Context, c *client.Client, endpoint string, params url.Values) ([]T, error) {
	w := Walk[T](c, endpoint, params)

	var all []T
	for {
		batch, err := w.Next(ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return all, nil
		}
		all = append(all, batch...)
	}
}

// BatchOptions configures BatchFetch.
type BatchOptions struct {
	// MaxBatchSize is the upstream per-request identifier ceiling.
	// Default 25.
	MaxBatchSize int

	// Concurrency is how many chunks may be in flight at once. Every
	// request still passes through the shared rate limiter, so raising
	// this never bypasses the global ceiling. Default 1 (sequential).
	Concurrency int
}

// DefaultBatchOptions returns the StatHub defaults.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{MaxBatchSize: 25, Concurrency: 1}
}

// BatchFetch fetches a collection for a large identifier list by
// partitioning ids into contiguous chunks of at most MaxBatchSize, issuing
// one FetchAll per chunk with the chunk joined into the idParam query
// parameter, and concatenating results in chunk order. Within a chunk,
// record order is server-determined.
func BatchFetch[T any](ctx context.Context, c *client.Client, endpoint, idParam string, ids []string, base url.Values, opts BatchOptions) ([]T, error) {
	if idParam == "" {
		return nil, fmt.Errorf("batch fetch: idParam is required")
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultBatchOptions().MaxBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := partition(ids, opts.MaxBatchSize)
	results := make([][]T, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			params := cloneValues(base)
			params.Set(idParam, strings.Join(chunk, ","))

			records, err := FetchAll[T](gctx, c, endpoint, params)
			if err != nil {
				return fmt.Errorf("batch chunk %d/%d: %w", i+1, len(chunks), err)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []T
	for _, records := range results {
		all = append(all, records...)
	}
	return all, nil
}

// partition splits ids into contiguous chunks of at most size elements.
func partition(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for key, vals := range v {
		out[key] = append([]string(nil), vals...)
	}
	return out
}
