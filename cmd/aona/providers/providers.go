// Package providerscmder provides the providers command listing sensor nodes
// and their prices.
package providerscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/cmd/aona/stack"
	"github.com/aona-labs/aona/pkg/cliui"
	"github.com/aona-labs/aona/pkg/config"
	"github.com/aona-labs/aona/pkg/logger"
	"github.com/aona-labs/aona/pkg/registry"
)

type providersCommander struct {
	gateTarget string
	sqlite     string
	postgres   string
	local      bool
	jsonOut    bool

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

const providersLongDesc string = `List providers with their reputation and price.

By default the listing is fetched from the gate at --gate-target. With --local
it is computed from the configured storage instead, without a running server.`

const providersShortDesc string = "List providers and their prices"

var providersFlags = []string{
	config.FlagGateTarget,
	config.FlagSQLite,
	config.FlagPostgres,
}

func NewProvidersCmd() *cobra.Command {
	cmder := &providersCommander{}

	cmd := &cobra.Command{
		Use:   "providers",
		Short: providersShortDesc,
		Long:  providersLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(cmder.debug)

			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, providersFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer cmder.logger.Sync()

			listing, err := cmder.listing(cmd.Context())
			if err != nil {
				return err
			}
			return cmder.render(cmd.OutOrStdout(), listing)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagGateTarget, &cmder.gateTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgres)
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Compute the listing from local storage")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the listing as JSON")

	return cmd
}

func (c *providersCommander) listing(ctx context.Context) (registry.Listing, error) {
	v := c.viper

	if !c.local {
		target := v.GetString("agent.gate_target")
		listing, err := registry.NewClient(target, v.GetDuration("agent.request_timeout")).Listing(ctx)
		if err != nil {
			return registry.Listing{}, fmt.Errorf("fetching providers from %s: %w", target, err)
		}
		return *listing, nil
	}

	curve, err := stack.Curve(v)
	if err != nil {
		return registry.Listing{}, err
	}
	denom := stack.Denomination(v)

	store, err := stack.OpenStorage(ctx, v, c.logger)
	if err != nil {
		return registry.Listing{}, err
	}
	defer store.Close()

	recipient := v.GetString("gate.recipient")
	if recipient == "" {
		recipient = registry.DemoRecipient
	}
	catalog := registry.NewCatalog(store, curve, denom, c.logger)
	return catalog.Listing(ctx, v.GetString("gate.network"),
		registry.DemoProviders(recipient, curve, denom, time.Now())), nil
}

func (c *providersCommander) render(w io.Writer, listing registry.Listing) error {
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}
	cliui.RenderProviders(w, listing)
	return nil
}
