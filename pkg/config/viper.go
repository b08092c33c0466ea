package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/aona-labs/aona/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the AONA_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (AONA_GATE_LISTEN, AONA_AGENT_PRIVATE_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: AONA_GATE_LISTEN, AONA_STORAGE_SQLITE_PATH, etc.
	v.SetEnvPrefix("AONA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Gate
	v.SetDefault("gate.listen", d.Gate.Listen)
	v.SetDefault("gate.network", d.Gate.Network)
	v.SetDefault("gate.token", d.Gate.Token)
	v.SetDefault("gate.proof_header", d.Gate.ProofHeader)
	v.SetDefault("gate.recipient", d.Gate.Recipient)

	// Pricing
	v.SetDefault("pricing.floor", d.Pricing.Floor)
	v.SetDefault("pricing.ceiling", d.Pricing.Ceiling)
	v.SetDefault("pricing.decimals", d.Pricing.Decimals)
	v.SetDefault("pricing.usd_rate", d.Pricing.USDRate)

	// Payment
	v.SetDefault("payment.timeout", d.Payment.Timeout)
	v.SetDefault("payment.cache_size", d.Payment.CacheSize)

	// Ledger
	v.SetDefault("ledger.provider", d.Ledger.Provider)
	v.SetDefault("ledger.rpc_url", d.Ledger.RPCURL)
	v.SetDefault("ledger.chain_id", d.Ledger.ChainID)
	v.SetDefault("ledger.symbol", d.Ledger.Symbol)

	// Agent
	v.SetDefault("agent.gate_target", d.Agent.GateTarget)
	v.SetDefault("agent.private_key", d.Agent.PrivateKey)
	v.SetDefault("agent.max_providers", d.Agent.MaxProviders)
	v.SetDefault("agent.min_score", d.Agent.MinScore)
	v.SetDefault("agent.pace", d.Agent.Pace)
	v.SetDefault("agent.request_timeout", d.Agent.RequestTimeout)
	v.SetDefault("agent.confirm_timeout", d.Agent.ConfirmTimeout)
	v.SetDefault("agent.poll_interval", d.Agent.PollInterval)
	v.SetDefault("agent.min_balance", d.Agent.MinBalance)
	v.SetDefault("agent.fund_amount", d.Agent.FundAmount)
	v.SetDefault("agent.output_path", d.Agent.OutputPath)

	// Enrichment
	v.SetDefault("enrichment.enabled", d.Enrichment.Enabled)
	v.SetDefault("enrichment.timeout", d.Enrichment.Timeout)
	v.SetDefault("enrichment.usgs_url", d.Enrichment.USGSURL)
	v.SetDefault("enrichment.usgs_site", d.Enrichment.USGSSite)
	v.SetDefault("enrichment.meteo_url", d.Enrichment.MeteoURL)
	v.SetDefault("enrichment.latitude", d.Enrichment.Latitude)
	v.SetDefault("enrichment.longitude", d.Enrichment.Longitude)

	// Storage
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.target", d.Events.Target)
	v.SetDefault("events.topic", d.Events.Topic)

	// Report
	v.SetDefault("report.impact_rate", d.Report.ImpactRate)
}
