// Package configcmder provides the config command for managing persistent
// aona configuration stored in the .aona/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aona-labs/aona/pkg/config"
)

const configLongDesc string = `Manage persistent aona configuration.

Configuration is stored as config.toml in the .aona/ directory and provides
default values for command flags. CLI flags and AONA_* environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  gate.listen, gate.recipient, pricing.floor, pricing.ceiling,
  ledger.provider, ledger.rpc_url, agent.max_providers, agent.pace,
  storage.sqlite_path, events.provider

Use subcommands to get, set, or list configuration values:
  aona config set <key> <value>    Set a configuration value
  aona config get <key>            Get a configuration value
  aona config list                 List all configuration values

Examples:
  aona config set ledger.provider evm
  aona config set agent.max_providers 3
  aona config get pricing.ceiling
  aona config list`

const configShortDesc string = "Manage persistent aona configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
