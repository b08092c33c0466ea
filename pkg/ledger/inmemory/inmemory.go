// Package inmemory provides an in-process ledger for development and tests.
package inmemory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aona-labs/aona/pkg/ledger"
)

// DefaultSymbol is the token symbol transfers are recorded in.
const DefaultSymbol = "AONA"

// Option configures a Ledger.
type Option func(*Ledger)

// WithSymbol sets the token symbol recorded on transfers.
func WithSymbol(symbol string) Option {
	return func(l *Ledger) { l.symbol = symbol }
}

// WithManualConfirm leaves submitted transfers unconfirmed until Confirm is
// called for them.
func WithManualConfirm() Option {
	return func(l *Ledger) { l.manual = true }
}

// WithClock overrides the clock used for confirmation times.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Ledger is a thread-safe in-memory ledger. It implements ledger.Reader and
// ledger.Faucet; Wallet returns a ledger.Signer bound to one address.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]uint64
	txs      map[string]ledger.Transaction

	symbol string
	manual bool
	now    func() time.Time
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		balances: make(map[string]uint64),
		txs:      make(map[string]ledger.Transaction),
		symbol:   DefaultSymbol,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func key(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Transaction implements ledger.Reader.
func (l *Ledger) Transaction(_ context.Context, ref string) (*ledger.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tx, ok := l.txs[ref]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tx, nil
}

// Balance implements ledger.Reader.
func (l *Ledger) Balance(_ context.Context, address string) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[key(address)], nil
}

// RequestFunds implements ledger.Faucet.
func (l *Ledger) RequestFunds(_ context.Context, address string, amount uint64) error {
	if key(address) == "" {
		return ledger.ErrInvalidRecipient
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[key(address)] += amount
	return nil
}

// Record stores tx as-is, bypassing balances. A Ref is generated when empty.
func (l *Ledger) Record(tx ledger.Transaction) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.Ref == "" {
		tx.Ref = newRef()
	}
	if tx.Confirmed && tx.ConfirmedAt.IsZero() {
		tx.ConfirmedAt = l.now().UTC()
	}
	l.txs[tx.Ref] = tx
	return tx.Ref
}

// Confirm marks a pending transfer as confirmed.
func (l *Ledger) Confirm(ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.txs[ref]
	if !ok {
		return ledger.ErrNotFound
	}
	if !tx.Confirmed {
		tx.Confirmed = true
		tx.ConfirmedAt = l.now().UTC()
		l.txs[ref] = tx
	}
	return nil
}

// Wallet returns a signer that spends from address.
func (l *Ledger) Wallet(address string) *Wallet {
	return &Wallet{Ledger: l, address: address}
}

func (l *Ledger) transfer(from string, t ledger.Transfer) (string, error) {
	if key(t.To) == "" {
		return "", ledger.ErrInvalidRecipient
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[key(from)] < t.Amount {
		return "", fmt.Errorf("%w: %s holds %d, needs %d",
			ledger.ErrInsufficientFunds, from, l.balances[key(from)], t.Amount)
	}
	l.balances[key(from)] -= t.Amount
	l.balances[key(t.To)] += t.Amount

	tx := ledger.Transaction{
		Ref:    newRef(),
		From:   from,
		To:     t.To,
		Amount: t.Amount,
		Token:  l.symbol,
	}
	if !l.manual {
		tx.Confirmed = true
		tx.ConfirmedAt = l.now().UTC()
	}
	l.txs[tx.Ref] = tx
	return tx.Ref, nil
}

// Wallet is a ledger.Signer over an in-memory Ledger.
type Wallet struct {
	*Ledger
	address string
}

// Address implements ledger.Signer.
func (w *Wallet) Address() string {
	return w.address
}

// Submit implements ledger.Signer.
func (w *Wallet) Submit(ctx context.Context, t ledger.Transfer) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return w.transfer(w.address, t)
}

func newRef() string {
	id := uuid.New()
	return "0x" + strings.ReplaceAll(id.String(), "-", "")
}
