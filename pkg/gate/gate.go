// Package gate implements the payment-required exchange for node readings.
//
// The gate answers a request for a reading with a price challenge, checks a
// presented payment proof with the verifier and releases the reading once
// the proof holds. It keeps no state between requests.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/enrichment"
	"github.com/aona-labs/aona/pkg/payment"
	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/reputation"
	"github.com/aona-labs/aona/pkg/storage"
)

// DefaultProofHeader carries the payment reference on a retried request.
const DefaultProofHeader = "X-Payment-Signature"

var (
	// ErrNotFound is returned for an unknown resource.
	ErrNotFound = errors.New("node not found")

	// ErrNoReadings is returned for a known node that has never reported.
	ErrNoReadings = errors.New("no readings available for this node")
)

// Status is the outcome of a gated request.
type Status int

const (
	// StatusPaymentRequired means no proof was presented.
	StatusPaymentRequired Status = iota
	// StatusPaymentRejected means a proof was presented and failed verification.
	StatusPaymentRejected
	// StatusGranted means the proof held and the reading is released.
	StatusGranted
)

func (s Status) String() string {
	switch s {
	case StatusPaymentRequired:
		return "payment_required"
	case StatusPaymentRejected:
		return "payment_rejected"
	case StatusGranted:
		return "granted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Challenge tells a client what to pay and how to prove it.
type Challenge struct {
	Error        string          `json:"error"`
	Message      string          `json:"message"`
	Resource     string          `json:"resource"`
	Price        pricing.Quote   `json:"price"`
	Recipient    string          `json:"recipient"`
	Token        string          `json:"token"`
	Network      string          `json:"network"`
	Header       string          `json:"header"`
	Instructions []string        `json:"instructions"`
	Reason       payment.Reason  `json:"reason,omitempty"`
	Details      *payment.Result `json:"details,omitempty"`
}

// Receipt echoes the verified payment.
type Receipt struct {
	Verified  bool          `json:"verified"`
	Signature string        `json:"signature"`
	Amount    pricing.Quote `json:"amount"`
	Excess    uint64        `json:"excess,omitempty"`
	Recipient string        `json:"recipient"`
	Payer     string        `json:"payer"`
	Timestamp time.Time     `json:"timestamp"`
}

// Metadata describes how the price was derived.
type Metadata struct {
	Reputation reputation.Reputation `json:"reputation"`
	PricePaid  pricing.Quote         `json:"pricePaid"`
}

// Granted is the released resource.
type Granted struct {
	NodeID     string          `json:"nodeId"`
	NodeName   string          `json:"nodeName"`
	Reading    reading.Reading `json:"reading"`
	Enrichment map[string]any  `json:"enrichment"`
	Payment    Receipt         `json:"payment"`
	Metadata   Metadata        `json:"metadata"`
}

// Response is exactly one of a challenge or a grant.
type Response struct {
	Status    Status
	Challenge *Challenge
	Granted   *Granted
}

// Config holds the gate's static settings.
type Config struct {
	// Recipient is paid for nodes that do not name their own.
	Recipient   string
	Token       string
	Network     string
	ProofHeader string
}

// Gate guards node readings behind payment.
type Gate struct {
	nodes    storage.NodeStore
	catalog  *registry.Catalog
	verifier *payment.Verifier
	enricher *enrichment.Enricher
	cfg      Config
	logger   *zap.Logger
}

// New creates a gate. enricher may be nil.
func New(
	nodes storage.NodeStore,
	catalog *registry.Catalog,
	verifier *payment.Verifier,
	enricher *enrichment.Enricher,
	cfg Config,
	logger *zap.Logger,
) *Gate {
	if cfg.ProofHeader == "" {
		cfg.ProofHeader = DefaultProofHeader
	}
	return &Gate{
		nodes:    nodes,
		catalog:  catalog,
		verifier: verifier,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProofHeader is the request header the gate reads the proof from.
func (g *Gate) ProofHeader() string {
	return g.cfg.ProofHeader
}

// Handle runs the exchange for resourceID. proof is the payment reference
// presented by the caller, empty when none was sent. Lookup failures are
// returned as ErrNotFound or ErrNoReadings before any challenge is issued.
func (g *Gate) Handle(ctx context.Context, resourceID, proof string) (*Response, error) {
	node, err := g.nodes.GetNode(ctx, resourceID)
	if storage.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading node %s: %w", resourceID, err)
	}

	latest, err := g.nodes.LatestReading(ctx, resourceID)
	if storage.IsNotFound(err) {
		return nil, ErrNoReadings
	}
	if err != nil {
		return nil, fmt.Errorf("loading reading of %s: %w", resourceID, err)
	}

	rep, price := g.catalog.Price(node)
	recipient := node.Recipient
	if recipient == "" {
		recipient = g.cfg.Recipient
	}

	if proof == "" {
		return &Response{
			Status:    StatusPaymentRequired,
			Challenge: g.challenge(resourceID, price, recipient),
		}, nil
	}

	res := g.verifier.Verify(ctx, proof, payment.Expected{
		Amount:    price.Minimal,
		Recipient: recipient,
		Token:     g.cfg.Token,
	})
	if !res.Valid {
		g.logger.Info("payment proof rejected",
			zap.String("node", resourceID),
			zap.String("ref", proof),
			zap.String("reason", string(res.Reason)),
		)
		c := g.challenge(resourceID, price, recipient)
		c.Error = "Invalid payment"
		c.Message = res.Reason.Message()
		c.Reason = res.Reason
		c.Details = &res
		return &Response{Status: StatusPaymentRejected, Challenge: c}, nil
	}

	enriched := map[string]any{}
	if g.enricher != nil {
		enriched = g.enricher.Enrich(ctx)
	}

	denom := g.catalog.Denomination()
	return &Response{
		Status: StatusGranted,
		Granted: &Granted{
			NodeID:     node.ID,
			NodeName:   node.Name,
			Reading:    *latest,
			Enrichment: enriched,
			Payment: Receipt{
				Verified:  true,
				Signature: res.Ref,
				Amount:    denom.Quote(res.Amount),
				Excess:    res.Excess,
				Recipient: res.Recipient,
				Payer:     res.Payer,
				Timestamp: res.ConfirmedAt,
			},
			Metadata: Metadata{
				Reputation: rep,
				PricePaid:  price,
			},
		},
	}, nil
}

func (g *Gate) challenge(resourceID string, price pricing.Quote, recipient string) *Challenge {
	return &Challenge{
		Error:     "Payment required",
		Message:   fmt.Sprintf("Send payment and include the transaction reference in the %s header", g.cfg.ProofHeader),
		Resource:  resourceID,
		Price:     price,
		Recipient: recipient,
		Token:     g.cfg.Token,
		Network:   g.cfg.Network,
		Header:    g.cfg.ProofHeader,
		Instructions: []string{
			"1. Create a transaction sending the required amount to the recipient",
			"2. Submit the transaction and wait for confirmation",
			fmt.Sprintf("3. Retry this request with %s: <transaction-reference>", g.cfg.ProofHeader),
		},
	}
}
