// Package enrichment attaches best-effort context from public data sources
// to a reading.
package enrichment

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds each source independently.
const DefaultTimeout = 5 * time.Second

// ErrNoData is returned by a source that answered without usable data.
var ErrNoData = errors.New("source returned no data")

// Source is one external data provider.
type Source interface {
	// Name is the key the source's data is stored under.
	Name() string

	// Fetch returns a JSON-encodable value.
	Fetch(ctx context.Context) (any, error)
}

// Enricher queries every source concurrently and keeps what answers in time.
type Enricher struct {
	sources []Source
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an enricher. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration, logger *zap.Logger, sources ...Source) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{
		sources: sources,
		timeout: timeout,
		logger:  logger,
	}
}

// Enrich returns the data of every source that succeeded. Failures and
// timeouts are logged and dropped; the result is never nil.
func (e *Enricher) Enrich(ctx context.Context) map[string]any {
	var (
		mu  sync.Mutex
		out = make(map[string]any, len(e.sources))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range e.sources {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, e.timeout)
			defer cancel()

			data, err := src.Fetch(sctx)
			if err != nil {
				e.logger.Warn("enrichment source failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			out[src.Name()] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return out
}
