// Package ledger defines how aona talks to the value-transfer ledger.
//
// Read access and signing are separate capabilities: the access gate and the
// payment verifier only ever hold a Reader, while the agent holds a Signer.
// A component handed a Reader has no way to move funds.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the ledger has no record of a reference.
	ErrNotFound = errors.New("transaction not found")

	// ErrInsufficientFunds is returned when a transfer exceeds the sender balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidRecipient is returned when a transfer names no usable recipient.
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// Transaction is the ledger's view of one transfer.
type Transaction struct {
	Ref         string    `json:"ref"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      uint64    `json:"amount"`
	Token       string    `json:"token"`
	Confirmed   bool      `json:"confirmed"`
	ConfirmedAt time.Time `json:"confirmedAt,omitzero"`
}

// Reader is read-only ledger access.
type Reader interface {
	// Transaction looks up a transfer by reference. Returns ErrNotFound when
	// the ledger has never seen it. Unconfirmed transfers are returned with
	// Confirmed set to false.
	Transaction(ctx context.Context, ref string) (*Transaction, error)

	// Balance returns the spendable balance of address in minimal units.
	Balance(ctx context.Context, address string) (uint64, error)
}

// Transfer is a value transfer request.
type Transfer struct {
	To     string
	Amount uint64
}

// Signer can move funds out of a single identity.
type Signer interface {
	Reader

	// Address is the identity funds are sent from.
	Address() string

	// Submit signs and broadcasts t, returning its reference once the ledger
	// has accepted it. Acceptance does not imply confirmation.
	Submit(ctx context.Context, t Transfer) (string, error)
}

// Faucet is implemented by development ledgers that can mint funds.
type Faucet interface {
	RequestFunds(ctx context.Context, address string, amount uint64) error
}

// SameAddress compares two addresses the way ledgers print them: hex
// addresses are case-insensitive.
func SameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// WaitConfirmed polls r until ref is confirmed or ctx is done.
func WaitConfirmed(ctx context.Context, r Reader, ref string, interval time.Duration) (*Transaction, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tx, err := r.Transaction(ctx, ref)
		switch {
		case err == nil && tx.Confirmed:
			return tx, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for confirmation of %s: %w", ref, ctx.Err())
		case <-ticker.C:
		}
	}
}
