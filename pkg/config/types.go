package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent aona configuration stored as config.toml
// in the .aona/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	Gate       GateConfig       `toml:"gate"`
	Pricing    PricingConfig    `toml:"pricing"`
	Payment    PaymentConfig    `toml:"payment"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Agent      AgentConfig      `toml:"agent"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Storage    StorageConfig    `toml:"storage"`
	Events     EventsConfig     `toml:"events"`
	Report     ReportConfig     `toml:"report"`
}

// GateConfig holds settings for the payment-gated HTTP server.
type GateConfig struct {
	Listen      string `toml:"listen,omitempty"`
	Network     string `toml:"network,omitempty"`
	Token       string `toml:"token,omitempty"`
	ProofHeader string `toml:"proof_header,omitempty"`

	// Recipient is paid for nodes that do not name their own.
	Recipient string `toml:"recipient,omitempty"`
}

// PricingConfig is the price curve, in minimal ledger units.
type PricingConfig struct {
	Floor    uint64  `toml:"floor,omitempty"`
	Ceiling  uint64  `toml:"ceiling,omitempty"`
	Decimals uint    `toml:"decimals,omitempty"`
	USDRate  float64 `toml:"usd_rate,omitempty"`
}

// PaymentConfig holds verifier settings.
type PaymentConfig struct {
	Timeout   string `toml:"timeout,omitempty"`
	CacheSize uint   `toml:"cache_size,omitempty"`
}

// LedgerConfig selects the ledger backend.
type LedgerConfig struct {
	// Provider is "memory" or "evm".
	Provider string `toml:"provider,omitempty"`
	RPCURL   string `toml:"rpc_url,omitempty"`

	// ChainID, when set, must match the chain behind RPCURL.
	ChainID uint64 `toml:"chain_id,omitempty"`
	Symbol  string `toml:"symbol,omitempty"`
}

// AgentConfig holds settings for `aona agent`.
type AgentConfig struct {
	GateTarget     string `toml:"gate_target,omitempty"`
	PrivateKey     string `toml:"private_key,omitempty"`
	MaxProviders   uint   `toml:"max_providers,omitempty"`
	MinScore       uint   `toml:"min_score,omitempty"`
	Pace           string `toml:"pace,omitempty"`
	RequestTimeout string `toml:"request_timeout,omitempty"`
	ConfirmTimeout string `toml:"confirm_timeout,omitempty"`
	PollInterval   string `toml:"poll_interval,omitempty"`
	MinBalance     uint64 `toml:"min_balance,omitempty"`
	FundAmount     uint64 `toml:"fund_amount,omitempty"`
	OutputPath     string `toml:"output_path,omitempty"`
}

// EnrichmentConfig holds public data source settings.
type EnrichmentConfig struct {
	Enabled   bool    `toml:"enabled"`
	Timeout   string  `toml:"timeout,omitempty"`
	USGSURL   string  `toml:"usgs_url,omitempty"`
	USGSSite  string  `toml:"usgs_site,omitempty"`
	MeteoURL  string  `toml:"meteo_url,omitempty"`
	Latitude  float64 `toml:"latitude,omitempty"`
	Longitude float64 `toml:"longitude,omitempty"`
}

// StorageConfig selects where nodes, readings and runs live. An empty
// config keeps everything in memory.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig selects the alert event stream.
type EventsConfig struct {
	// Provider is "nop", "kafka" or "nats".
	Provider string `toml:"provider,omitempty"`

	// Target is a comma separated broker list for kafka or a server URL
	// for nats.
	Target string `toml:"target,omitempty"`

	// Topic is the kafka topic or the nats subject prefix.
	Topic string `toml:"topic,omitempty"`
}

// ReportConfig holds summary settings.
type ReportConfig struct {
	ImpactRate float64 `toml:"impact_rate,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func uint64Key(name string, field func(c *Config) *uint64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(*field(c), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"gate.listen":       stringKey(func(c *Config) *string { return &c.Gate.Listen }),
	"gate.network":      stringKey(func(c *Config) *string { return &c.Gate.Network }),
	"gate.token":        stringKey(func(c *Config) *string { return &c.Gate.Token }),
	"gate.proof_header": stringKey(func(c *Config) *string { return &c.Gate.ProofHeader }),
	"gate.recipient":    stringKey(func(c *Config) *string { return &c.Gate.Recipient }),

	"pricing.floor":    uint64Key("pricing.floor", func(c *Config) *uint64 { return &c.Pricing.Floor }),
	"pricing.ceiling":  uint64Key("pricing.ceiling", func(c *Config) *uint64 { return &c.Pricing.Ceiling }),
	"pricing.decimals": uintKey("pricing.decimals", func(c *Config) *uint { return &c.Pricing.Decimals }),
	"pricing.usd_rate": floatKey("pricing.usd_rate", func(c *Config) *float64 { return &c.Pricing.USDRate }),

	"payment.timeout":    stringKey(func(c *Config) *string { return &c.Payment.Timeout }),
	"payment.cache_size": uintKey("payment.cache_size", func(c *Config) *uint { return &c.Payment.CacheSize }),

	"ledger.provider": stringKey(func(c *Config) *string { return &c.Ledger.Provider }),
	"ledger.rpc_url":  stringKey(func(c *Config) *string { return &c.Ledger.RPCURL }),
	"ledger.chain_id": uint64Key("ledger.chain_id", func(c *Config) *uint64 { return &c.Ledger.ChainID }),
	"ledger.symbol":   stringKey(func(c *Config) *string { return &c.Ledger.Symbol }),

	"agent.gate_target":     stringKey(func(c *Config) *string { return &c.Agent.GateTarget }),
	"agent.private_key":     stringKey(func(c *Config) *string { return &c.Agent.PrivateKey }),
	"agent.max_providers":   uintKey("agent.max_providers", func(c *Config) *uint { return &c.Agent.MaxProviders }),
	"agent.min_score":       uintKey("agent.min_score", func(c *Config) *uint { return &c.Agent.MinScore }),
	"agent.pace":            stringKey(func(c *Config) *string { return &c.Agent.Pace }),
	"agent.request_timeout": stringKey(func(c *Config) *string { return &c.Agent.RequestTimeout }),
	"agent.confirm_timeout": stringKey(func(c *Config) *string { return &c.Agent.ConfirmTimeout }),
	"agent.poll_interval":   stringKey(func(c *Config) *string { return &c.Agent.PollInterval }),
	"agent.min_balance":     uint64Key("agent.min_balance", func(c *Config) *uint64 { return &c.Agent.MinBalance }),
	"agent.fund_amount":     uint64Key("agent.fund_amount", func(c *Config) *uint64 { return &c.Agent.FundAmount }),
	"agent.output_path":     stringKey(func(c *Config) *string { return &c.Agent.OutputPath }),

	"enrichment.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Enrichment.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for enrichment.enabled: %w", err)
			}
			c.Enrichment.Enabled = b
			return nil
		},
	},
	"enrichment.timeout":   stringKey(func(c *Config) *string { return &c.Enrichment.Timeout }),
	"enrichment.usgs_url":  stringKey(func(c *Config) *string { return &c.Enrichment.USGSURL }),
	"enrichment.usgs_site": stringKey(func(c *Config) *string { return &c.Enrichment.USGSSite }),
	"enrichment.meteo_url": stringKey(func(c *Config) *string { return &c.Enrichment.MeteoURL }),
	"enrichment.latitude":  floatKey("enrichment.latitude", func(c *Config) *float64 { return &c.Enrichment.Latitude }),
	"enrichment.longitude": floatKey("enrichment.longitude", func(c *Config) *float64 { return &c.Enrichment.Longitude }),

	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.target":   stringKey(func(c *Config) *string { return &c.Events.Target }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"report.impact_rate": floatKey("report.impact_rate", func(c *Config) *float64 { return &c.Report.ImpactRate }),
}
