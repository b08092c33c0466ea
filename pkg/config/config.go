package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aona-labs/aona/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .aona/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Always set targetPath when the directory exists so SaveConfig
	// can create or overwrite the file.
	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns the sorted list of all supported configuration key names.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}

	// Return in a stable, logical order matching the TOML section layout.
	ordered := []string{
		"gate.listen",
		"gate.network",
		"gate.token",
		"gate.proof_header",
		"gate.recipient",
		"pricing.floor",
		"pricing.ceiling",
		"pricing.decimals",
		"pricing.usd_rate",
		"payment.timeout",
		"payment.cache_size",
		"ledger.provider",
		"ledger.rpc_url",
		"ledger.chain_id",
		"ledger.symbol",
		"agent.gate_target",
		"agent.private_key",
		"agent.max_providers",
		"agent.min_score",
		"agent.pace",
		"agent.request_timeout",
		"agent.confirm_timeout",
		"agent.poll_interval",
		"agent.min_balance",
		"agent.fund_amount",
		"agent.output_path",
		"enrichment.enabled",
		"enrichment.timeout",
		"enrichment.usgs_url",
		"enrichment.usgs_site",
		"enrichment.meteo_url",
		"enrichment.latitude",
		"enrichment.longitude",
		"storage.sqlite_path",
		"storage.postgres_dsn",
		"events.provider",
		"events.target",
		"events.topic",
		"report.impact_rate",
	}

	// Sanity: only return keys that actually exist in the map.
	result := make([]string, 0, len(ordered))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok {
			result = append(result, k)
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	seen := make(map[string]bool, len(result))
	for _, k := range result {
		seen[k] = true
	}
	missed := make([]string, 0)
	for _, k := range keys {
		if !seen[k] {
			missed = append(missed, k)
		}
	}
	sort.Strings(missed)
	result = append(result, missed...)

	return result
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .aona/ directory.
// If the file does not exist, returns DefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
// If overrideDir is non-empty, it is used instead of the default .aona/ location.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	// Merge in defaults: fill in any zero-value fields from the loaded config
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from DefaultConfig().
// Booleans are left alone since false is a meaningful setting.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	fillString(&cfg.Gate.Listen, d.Gate.Listen)
	fillString(&cfg.Gate.Network, d.Gate.Network)
	fillString(&cfg.Gate.Token, d.Gate.Token)
	fillString(&cfg.Gate.ProofHeader, d.Gate.ProofHeader)

	if cfg.Pricing.Floor == 0 {
		cfg.Pricing.Floor = d.Pricing.Floor
	}
	if cfg.Pricing.Ceiling == 0 {
		cfg.Pricing.Ceiling = d.Pricing.Ceiling
	}
	if cfg.Pricing.Decimals == 0 {
		cfg.Pricing.Decimals = d.Pricing.Decimals
	}

	fillString(&cfg.Payment.Timeout, d.Payment.Timeout)
	if cfg.Payment.CacheSize == 0 {
		cfg.Payment.CacheSize = d.Payment.CacheSize
	}

	fillString(&cfg.Ledger.Provider, d.Ledger.Provider)
	fillString(&cfg.Ledger.Symbol, d.Ledger.Symbol)

	fillString(&cfg.Agent.GateTarget, d.Agent.GateTarget)
	if cfg.Agent.MaxProviders == 0 {
		cfg.Agent.MaxProviders = d.Agent.MaxProviders
	}
	fillString(&cfg.Agent.Pace, d.Agent.Pace)
	fillString(&cfg.Agent.RequestTimeout, d.Agent.RequestTimeout)
	fillString(&cfg.Agent.ConfirmTimeout, d.Agent.ConfirmTimeout)
	fillString(&cfg.Agent.PollInterval, d.Agent.PollInterval)
	fillString(&cfg.Agent.OutputPath, d.Agent.OutputPath)

	fillString(&cfg.Enrichment.Timeout, d.Enrichment.Timeout)
	fillString(&cfg.Enrichment.USGSURL, d.Enrichment.USGSURL)
	fillString(&cfg.Enrichment.USGSSite, d.Enrichment.USGSSite)
	fillString(&cfg.Enrichment.MeteoURL, d.Enrichment.MeteoURL)
	if cfg.Enrichment.Latitude == 0 && cfg.Enrichment.Longitude == 0 {
		cfg.Enrichment.Latitude = d.Enrichment.Latitude
		cfg.Enrichment.Longitude = d.Enrichment.Longitude
	}

	fillString(&cfg.Events.Provider, d.Events.Provider)
	fillString(&cfg.Events.Topic, d.Events.Topic)

	if cfg.Report.ImpactRate == 0 {
		cfg.Report.ImpactRate = d.Report.ImpactRate
	}
}

func fillString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// SaveConfig persists the configuration to config.toml in the target .aona/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named ledger preset.
// Supported presets: "memory", "localnet", "sepolia".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "memory":
		return cfg, nil

	case "localnet":
		cfg.Gate.Network = "localnet"
		cfg.Gate.Token = "ETH"
		cfg.Ledger = LedgerConfig{
			Provider: "evm",
			RPCURL:   "http://localhost:8545",
			ChainID:  31337,
			Symbol:   "ETH",
		}
		cfg.Pricing.Decimals = 18
		return cfg, nil

	case "sepolia":
		cfg.Gate.Network = "sepolia"
		cfg.Gate.Token = "ETH"
		cfg.Ledger = LedgerConfig{
			Provider: "evm",
			RPCURL:   "https://rpc.sepolia.org",
			ChainID:  11155111,
			Symbol:   "ETH",
		}
		cfg.Pricing.Decimals = 18
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: memory, localnet, sepolia)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"memory", "localnet", "sepolia"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
