// Package cache wraps a ledger.Reader with an LRU of confirmed transactions.
// Confirmed transfers never change, so repeated verification of the same
// reference is served without a round trip.
package cache

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aona-labs/aona/pkg/ledger"
)

// DefaultSize is the number of confirmed transactions kept.
const DefaultSize = 4096

// Reader is a read-through ledger.Reader.
type Reader struct {
	next  ledger.Reader
	cache *lru.Cache[string, ledger.Transaction]
}

// New wraps next. A size of zero or less uses DefaultSize.
func New(next ledger.Reader, size int) (*Reader, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, ledger.Transaction](size)
	if err != nil {
		return nil, fmt.Errorf("creating transaction cache: %w", err)
	}
	return &Reader{next: next, cache: c}, nil
}

// Transaction implements ledger.Reader. Only confirmed results are cached.
func (r *Reader) Transaction(ctx context.Context, ref string) (*ledger.Transaction, error) {
	if tx, ok := r.cache.Get(ref); ok {
		return &tx, nil
	}

	tx, err := r.next.Transaction(ctx, ref)
	if err != nil {
		return nil, err
	}
	if tx.Confirmed {
		r.cache.Add(strings.Clone(ref), *tx)
	}
	return tx, nil
}

// Balance implements ledger.Reader. Balances are never cached.
func (r *Reader) Balance(ctx context.Context, address string) (uint64, error) {
	return r.next.Balance(ctx, address)
}

// Len reports the number of cached transactions.
func (r *Reader) Len() int {
	return r.cache.Len()
}
