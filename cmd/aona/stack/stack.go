// Package stack builds the shared components of the aona commands from the
// resolved viper configuration.
package stack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/enrichment"
	"github.com/aona-labs/aona/pkg/enrichment/openmeteo"
	"github.com/aona-labs/aona/pkg/enrichment/usgs"
	"github.com/aona-labs/aona/pkg/eventstream"
	"github.com/aona-labs/aona/pkg/eventstream/kafka"
	"github.com/aona-labs/aona/pkg/eventstream/nats"
	"github.com/aona-labs/aona/pkg/eventstream/nop"
	"github.com/aona-labs/aona/pkg/gate"
	"github.com/aona-labs/aona/pkg/ledger"
	"github.com/aona-labs/aona/pkg/ledger/cache"
	"github.com/aona-labs/aona/pkg/ledger/evm"
	"github.com/aona-labs/aona/pkg/ledger/inmemory"
	"github.com/aona-labs/aona/pkg/payment"
	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/storage"
	storagemem "github.com/aona-labs/aona/pkg/storage/inmemory"
	"github.com/aona-labs/aona/pkg/storage/postgres"
	"github.com/aona-labs/aona/pkg/storage/sqlite"
	"github.com/aona-labs/aona/pkg/wallet"
)

// Ledger providers.
const (
	LedgerMemory = "memory"
	LedgerEVM    = "evm"
)

// LoadDotEnv loads ./.env into the process environment when present so
// AONA_* variables (notably the agent key) can live there.
func LoadDotEnv(logger *zap.Logger) {
	err := godotenv.Load()
	switch {
	case err == nil:
		logger.Debug("loaded .env")
	case errors.Is(err, fs.ErrNotExist):
	default:
		logger.Warn("could not load .env", zap.Error(err))
	}
}

// Denomination is the configured display unit of the ledger.
func Denomination(v *viper.Viper) pricing.Denomination {
	return pricing.Denomination{
		Symbol:   v.GetString("ledger.symbol"),
		Decimals: uint8(min(v.GetUint("pricing.decimals"), 77)),
		USDRate:  v.GetFloat64("pricing.usd_rate"),
	}
}

// Curve is the configured price curve.
func Curve(v *viper.Viper) (pricing.Curve, error) {
	c := pricing.Curve{
		Floor:   v.GetUint64("pricing.floor"),
		Ceiling: v.GetUint64("pricing.ceiling"),
	}
	if err := c.Validate(); err != nil {
		return pricing.Curve{}, err
	}
	return c, nil
}

// OpenStorage opens the configured driver: postgres when a DSN is set,
// then sqlite when a path is set, otherwise memory.
func OpenStorage(ctx context.Context, v *viper.Viper, logger *zap.Logger) (storage.Driver, error) {
	if dsn := v.GetString("storage.postgres_dsn"); dsn != "" {
		driver, err := postgres.NewDriver(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil
	}

	if path := v.GetString("storage.sqlite_path"); path != "" {
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil
	}

	logger.Info("using in-memory storage")
	return storagemem.NewDriver(), nil
}

// Ledger is the opened ledger backend. Exactly one of Memory and EVM is set.
type Ledger struct {
	Memory *inmemory.Ledger
	EVM    *evm.Reader
}

// OpenLedger connects to the configured ledger. For evm, a configured
// chain id must match the node.
func OpenLedger(ctx context.Context, v *viper.Viper, logger *zap.Logger) (*Ledger, error) {
	symbol := v.GetString("ledger.symbol")

	switch provider := strings.ToLower(v.GetString("ledger.provider")); provider {
	case LedgerMemory, "":
		logger.Info("using in-memory ledger", zap.String("symbol", symbol))
		return &Ledger{Memory: inmemory.New(inmemory.WithSymbol(symbol))}, nil

	case LedgerEVM:
		rpcURL := v.GetString("ledger.rpc_url")
		if rpcURL == "" {
			return nil, errors.New("ledger.rpc_url is required for the evm ledger")
		}
		reader, err := evm.Dial(ctx, rpcURL, symbol)
		if err != nil {
			return nil, err
		}

		got, err := reader.ChainID(ctx)
		if err != nil {
			reader.Close()
			return nil, err
		}
		if want := v.GetUint64("ledger.chain_id"); want != 0 && want != got {
			reader.Close()
			return nil, fmt.Errorf("ledger at %s is chain %d, configured for %d", rpcURL, got, want)
		}

		logger.Info("using evm ledger",
			zap.String("rpc_url", rpcURL),
			zap.Uint64("chain_id", got),
			zap.String("symbol", symbol),
		)
		return &Ledger{EVM: reader}, nil

	default:
		return nil, fmt.Errorf("unknown ledger provider %q (available: memory, evm)", provider)
	}
}

// Reader is the read-only view handed to the verifier.
func (l *Ledger) Reader() ledger.Reader {
	if l.EVM != nil {
		return l.EVM
	}
	return l.Memory
}

// Signer spends from id's address.
func (l *Ledger) Signer(id *wallet.Identity) ledger.Signer {
	if l.EVM != nil {
		return evm.NewWallet(l.EVM, id.Key)
	}
	return l.Memory.Wallet(id.Address)
}

// Close releases the RPC connection, if any.
func (l *Ledger) Close() {
	if l.EVM != nil {
		l.EVM.Close()
	}
}

// NewVerifier builds a verifier over a confirmed-transaction cache of r.
func NewVerifier(v *viper.Viper, r ledger.Reader, logger *zap.Logger) (*payment.Verifier, error) {
	reader := r
	if size := v.GetInt("payment.cache_size"); size > 0 {
		cached, err := cache.New(r, size)
		if err != nil {
			return nil, err
		}
		reader = cached
	}
	return payment.NewVerifier(reader,
		payment.WithTimeout(v.GetDuration("payment.timeout")),
		payment.WithLogger(logger),
	), nil
}

// NewEnricher returns the public data enricher, or nil when disabled.
func NewEnricher(v *viper.Viper, logger *zap.Logger) *enrichment.Enricher {
	if !v.GetBool("enrichment.enabled") {
		return nil
	}
	return enrichment.New(v.GetDuration("enrichment.timeout"), logger,
		usgs.NewSource(usgs.Config{
			BaseURL: v.GetString("enrichment.usgs_url"),
			Site:    v.GetString("enrichment.usgs_site"),
		}),
		openmeteo.NewSource(openmeteo.Config{
			BaseURL:   v.GetString("enrichment.meteo_url"),
			Latitude:  v.GetFloat64("enrichment.latitude"),
			Longitude: v.GetFloat64("enrichment.longitude"),
		}),
	)
}

// NewGate assembles the gate over nodes.
func NewGate(
	v *viper.Viper,
	nodes storage.NodeStore,
	catalog *registry.Catalog,
	verifier *payment.Verifier,
	enricher *enrichment.Enricher,
	logger *zap.Logger,
) *gate.Gate {
	return gate.New(nodes, catalog, verifier, enricher, gate.Config{
		Recipient:   v.GetString("gate.recipient"),
		Token:       v.GetString("gate.token"),
		Network:     v.GetString("gate.network"),
		ProofHeader: v.GetString("gate.proof_header"),
	}, logger)
}

// NewPublisher opens the configured alert event stream.
func NewPublisher(v *viper.Viper, logger *zap.Logger) (eventstream.Publisher, error) {
	target := v.GetString("events.target")
	topic := v.GetString("events.topic")

	switch provider := strings.ToLower(v.GetString("events.provider")); provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		brokers := splitList(target)
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: brokers, Topic: topic})
		if err != nil {
			return nil, err
		}
		logger.Info("publishing events to kafka", zap.Strings("brokers", brokers), zap.String("topic", pub.Topic()))
		return pub, nil

	case "nats":
		pub, err := nats.NewPublisher(nats.Config{URL: target, Subject: topic, Name: "aona"})
		if err != nil {
			return nil, err
		}
		logger.Info("publishing events to nats", zap.String("url", target), zap.String("subject", topic))
		return pub, nil

	default:
		return nil, fmt.Errorf("unknown events provider %q (available: nop, kafka, nats)", provider)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
