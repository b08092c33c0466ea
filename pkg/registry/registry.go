// Package registry lists the data providers an agent can buy readings from.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/reputation"
	"github.com/aona-labs/aona/pkg/storage"
)

// Listing sources.
const (
	SourceCatalog  = "catalog"
	SourceFallback = "fallback"
)

// Provider is a node as seen by a buyer: identity, reputation and the
// current price. It is materialized per query and never mutated.
type Provider struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Location    string                `json:"location,omitempty"`
	Recipient   string                `json:"recipient"`
	Reputation  reputation.Reputation `json:"reputation"`
	Price       pricing.Quote         `json:"price"`
	LastReading *reading.Reading      `json:"lastReading,omitempty"`
}

// Registry returns the known providers.
type Registry interface {
	Providers(ctx context.Context) ([]Provider, error)
}

// Listing is the discovery response body.
type Listing struct {
	Providers []Provider `json:"providers"`
	Count     int        `json:"count"`
	Network   string     `json:"network"`
	Source    string     `json:"source"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Catalog is the server side registry, backed by the node store.
type Catalog struct {
	nodes  storage.NodeStore
	curve  pricing.Curve
	denom  pricing.Denomination
	logger *zap.Logger
}

// NewCatalog creates a catalog over nodes.
func NewCatalog(nodes storage.NodeStore, curve pricing.Curve, denom pricing.Denomination, logger *zap.Logger) *Catalog {
	return &Catalog{
		nodes:  nodes,
		curve:  curve,
		denom:  denom,
		logger: logger,
	}
}

// Price returns the reputation and price for a node.
func (c *Catalog) Price(node *storage.Node) (reputation.Reputation, pricing.Quote) {
	rep := reputation.FromReadings(node.TotalReadings)
	return rep, c.denom.Quote(c.curve.Price(rep.Score))
}

// Providers lists every node, highest score first.
func (c *Catalog) Providers(ctx context.Context) ([]Provider, error) {
	nodes, err := c.nodes.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}

	providers := make([]Provider, 0, len(nodes))
	for _, n := range nodes {
		p := c.provider(n)

		last, err := c.nodes.LatestReading(ctx, n.ID)
		switch {
		case err == nil:
			p.LastReading = last
		case !storage.IsNotFound(err):
			return nil, fmt.Errorf("loading last reading of %s: %w", n.ID, err)
		}
		providers = append(providers, p)
	}

	SortByScore(providers)
	return providers, nil
}

// Listing returns the discovery listing. It never fails: an empty or
// failing catalog is replaced by fallback.
func (c *Catalog) Listing(ctx context.Context, network string, fallback []Provider) Listing {
	providers, err := c.Providers(ctx)
	switch {
	case err != nil:
		c.logger.Warn("node catalog unavailable, serving fallback providers", zap.Error(err))
		return Listing{
			Providers: fallback,
			Count:     len(fallback),
			Network:   network,
			Source:    SourceFallback,
			Message:   "Catalog temporarily unavailable - showing demo providers",
			Error:     err.Error(),
		}
	case len(providers) == 0:
		return Listing{
			Providers: fallback,
			Count:     len(fallback),
			Network:   network,
			Source:    SourceFallback,
			Message:   "No nodes registered yet - showing demo providers",
		}
	}

	return Listing{
		Providers: providers,
		Count:     len(providers),
		Network:   network,
		Source:    SourceCatalog,
	}
}

func (c *Catalog) provider(n *storage.Node) Provider {
	rep, quote := c.Price(n)
	return Provider{
		ID:         n.ID,
		Name:       n.Name,
		Location:   n.Location,
		Recipient:  n.Recipient,
		Reputation: rep,
		Price:      quote,
	}
}

// SortByScore orders providers by reputation score, highest first, keeping
// the incoming order among equals.
func SortByScore(providers []Provider) {
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Reputation.Score > providers[j].Reputation.Score
	})
}

// Static is a fixed Registry.
type Static []Provider

// Providers returns a copy of s.
func (s Static) Providers(context.Context) ([]Provider, error) {
	return append([]Provider(nil), s...), nil
}

// ErrUnavailable is returned by a registry that cannot be reached.
var ErrUnavailable = errors.New("registry unavailable")

// Denomination is the unit prices are quoted in.
func (c *Catalog) Denomination() pricing.Denomination {
	return c.denom
}
