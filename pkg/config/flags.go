package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --sqlite
// on "aona serve", "aona seed" and "aona providers").
type Flag struct {
	// Name is the long flag name (e.g. "sqlite").
	Name string

	// Shorthand is the one-letter short flag (e.g. "s"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "storage.sqlite_path").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen         = "listen"
	FlagNetwork        = "network"
	FlagRecipient      = "recipient"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagLedger         = "ledger"
	FlagRPCURL         = "rpc-url"
	FlagGateTarget     = "gate-target"
	FlagMaxProviders   = "max-providers"
	FlagMinScore       = "min-score"
	FlagPace           = "pace"
	FlagOutput         = "output"
	FlagEventsProvider = "events-provider"
	FlagEventsTarget   = "events-target"
)

// Flags is the registry shared by every aona command.
var Flags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "gate.listen",
		Description: "Address for the gate server to listen on",
	},
	FlagNetwork: {
		Name:        "network",
		ViperKey:    "gate.network",
		Description: "Network name advertised in listings and challenges",
	},
	FlagRecipient: {
		Name:        "recipient",
		ViperKey:    "gate.recipient",
		Description: "Default payment recipient for nodes without their own",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to SQLite database (default: in-memory)",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string (takes precedence over --sqlite)",
	},
	FlagLedger: {
		Name:        "ledger",
		ViperKey:    "ledger.provider",
		Description: "Ledger backend (memory, evm)",
	},
	FlagRPCURL: {
		Name:        "rpc-url",
		ViperKey:    "ledger.rpc_url",
		Description: "JSON-RPC endpoint of the evm ledger",
	},
	FlagGateTarget: {
		Name:        "gate-target",
		Shorthand:   "g",
		ViperKey:    "agent.gate_target",
		Description: "Base URL of the gate server",
	},
	FlagMaxProviders: {
		Name:        "max-providers",
		Shorthand:   "n",
		ViperKey:    "agent.max_providers",
		Description: "Maximum number of providers consulted per run",
	},
	FlagMinScore: {
		Name:        "min-score",
		ViperKey:    "agent.min_score",
		Description: "Minimum reputation score of a consulted provider",
	},
	FlagPace: {
		Name:        "pace",
		ViperKey:    "agent.pace",
		Description: "Minimum delay between provider consultations (e.g. 1s)",
	},
	FlagOutput: {
		Name:        "output",
		Shorthand:   "o",
		ViperKey:    "agent.output_path",
		Description: "File the finished run is written to",
	},
	FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Alert event stream (nop, kafka, nats)",
	},
	FlagEventsTarget: {
		Name:        "events-target",
		ViperKey:    "events.target",
		Description: "Kafka brokers (comma separated) or NATS server URL",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
