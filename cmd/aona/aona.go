// Package aonacmder is the root of the aona command tree.
package aonacmder

import (
	"github.com/spf13/cobra"

	agentcmder "github.com/aona-labs/aona/cmd/aona/agent"
	configcmder "github.com/aona-labs/aona/cmd/aona/config"
	initcmder "github.com/aona-labs/aona/cmd/aona/init"
	providerscmder "github.com/aona-labs/aona/cmd/aona/providers"
	seedcmder "github.com/aona-labs/aona/cmd/aona/seed"
	servecmder "github.com/aona-labs/aona/cmd/aona/serve"
	verifycmder "github.com/aona-labs/aona/cmd/aona/verify"
	versioncmder "github.com/aona-labs/aona/cmd/version"
)

const aonaLongDesc string = `aona sells water sensor readings for on-ledger micropayments and
runs an autonomous analyst that buys, analyzes and reports on them.

Run services using:
  aona init         Create a local .aona/ config directory
  aona serve        Run the payment-gated reading server
  aona seed --demo  Register the demo sensor nodes
  aona agent        Run one water analyst pass
  aona providers    List providers and their prices`

const aonaShortDesc string = "aona - paid water data and its analyst"

func NewAonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "aona",
		Short:        aonaShortDesc,
		Long:         aonaLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.aona or ~/.aona)")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(agentcmder.NewAgentCmd())
	cmd.AddCommand(providerscmder.NewProvidersCmd())
	cmd.AddCommand(verifycmder.NewVerifyCmd())
	cmd.AddCommand(seedcmder.NewSeedCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
