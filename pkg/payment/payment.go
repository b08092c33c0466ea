// Package payment verifies that a ledger reference proves a payment.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/ledger"
)

// DefaultTimeout bounds a single ledger lookup.
const DefaultTimeout = 10 * time.Second

// Reason explains why a proof was refused.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotFound          Reason = "not_found"
	ReasonUnconfirmed       Reason = "unconfirmed"
	ReasonTokenMismatch     Reason = "token_mismatch"
	ReasonRecipientMismatch Reason = "recipient_mismatch"
	ReasonAmountTooLow      Reason = "amount_too_low"
)

// Message is a short human readable description of r.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return "payment verified"
	case ReasonNotFound:
		return "transaction not found on the ledger"
	case ReasonUnconfirmed:
		return "transaction is not confirmed yet"
	case ReasonTokenMismatch:
		return "transaction paid in the wrong token"
	case ReasonRecipientMismatch:
		return "transaction paid a different recipient"
	case ReasonAmountTooLow:
		return "transaction amount is below the price"
	default:
		return string(r)
	}
}

// Expected is what a valid payment must satisfy.
type Expected struct {
	Amount    uint64
	Recipient string

	// Token is compared case-insensitively; empty accepts any token.
	Token string
}

// Result is the outcome of a verification. Fields other than Valid and
// Reason are populated whenever the transaction was found.
type Result struct {
	Valid       bool      `json:"valid"`
	Reason      Reason    `json:"reason,omitempty"`
	Ref         string    `json:"signature"`
	Amount      uint64    `json:"amount"`
	Excess      uint64    `json:"excess,omitempty"`
	Recipient   string    `json:"recipient,omitempty"`
	Payer       string    `json:"payer,omitempty"`
	Token       string    `json:"token,omitempty"`
	ConfirmedAt time.Time `json:"confirmedAt,omitzero"`
}

// Verifier checks payment proofs against a read-only ledger. It holds no
// state between calls and is safe for concurrent use.
type Verifier struct {
	ledger  ledger.Reader
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTimeout bounds each ledger lookup.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// NewVerifier creates a Verifier over r.
func NewVerifier(r ledger.Reader, opts ...Option) *Verifier {
	v := &Verifier{
		ledger:  r,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks ref against want. Checks run in order: lookup,
// confirmation, token, recipient, amount; the first failure is reported.
// Lookup errors of any kind, including a timeout, fail closed as NotFound.
func (v *Verifier) Verify(ctx context.Context, ref string, want Expected) Result {
	ref = strings.TrimSpace(ref)
	res := Result{Ref: ref}
	if ref == "" {
		res.Reason = ReasonNotFound
		return res
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tx, err := v.ledger.Transaction(lookupCtx, ref)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			v.logger.Warn("ledger lookup failed",
				zap.String("ref", ref),
				zap.Error(err),
			)
		}
		res.Reason = ReasonNotFound
		return res
	}

	res.Amount = tx.Amount
	res.Recipient = tx.To
	res.Payer = tx.From
	res.Token = tx.Token
	res.ConfirmedAt = tx.ConfirmedAt

	switch {
	case !tx.Confirmed:
		res.Reason = ReasonUnconfirmed
	case want.Token != "" && !strings.EqualFold(want.Token, tx.Token):
		res.Reason = ReasonTokenMismatch
	case !ledger.SameAddress(want.Recipient, tx.To):
		res.Reason = ReasonRecipientMismatch
	case tx.Amount < want.Amount:
		res.Reason = ReasonAmountTooLow
	default:
		res.Valid = true
		res.Excess = tx.Amount - want.Amount
	}

	if res.Valid && res.Excess > 0 {
		v.logger.Info("payment exceeds price",
			zap.String("ref", ref),
			zap.String("payer", tx.From),
			zap.Uint64("expected", want.Amount),
			zap.Uint64("paid", tx.Amount),
			zap.Uint64("excess", res.Excess),
		)
	}
	if !res.Valid {
		v.logger.Debug("payment rejected",
			zap.String("ref", ref),
			zap.String("reason", string(res.Reason)),
		)
	}
	return res
}
