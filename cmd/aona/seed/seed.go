// Package seedcmder provides the seed command registering the demo sensor
// nodes in storage.
package seedcmder

import (
	"context"
	"errors"
	"fmt"
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

type seedCommander struct {
	demo      bool
	history   uint
	recipient string
	sqlite    string
	postgres  string

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

const seedLongDesc string = `Register the demo sensor nodes and their reading history.

Each node is (re)registered and receives a synthetic history, one reading
every 15 minutes ending now. By default every node gets its full demo reading
count so reputations match the demo listing; --history caps that per node.

Seeding targets persistent storage; use --sqlite or --postgres (or the
storage section of config.toml).`

const seedShortDesc string = "Register the demo sensor nodes"

var seedFlags = []string{
	config.FlagRecipient,
	config.FlagSQLite,
	config.FlagPostgres,
}

func NewSeedCmd() *cobra.Command {
	cmder := &seedCommander{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: seedShortDesc,
		Long:  seedLongDesc,
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
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, seedFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer cmder.logger.Sync()

			if !cmder.demo {
				return errors.New("nothing to seed: pass --demo")
			}
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.demo, "demo", false, "Seed the demo sensor nodes")
	cmd.Flags().UintVar(&cmder.history, "history", 0, "Readings per node (default: the node's full demo count)")
	config.AddStringFlag(cmd, config.Flags, config.FlagRecipient, &cmder.recipient)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgres)

	return cmd
}

func (c *seedCommander) run(ctx context.Context, cmd *cobra.Command) error {
	v := c.viper
	if v.GetString("storage.sqlite_path") == "" && v.GetString("storage.postgres_dsn") == "" {
		c.logger.Warn("seeding in-memory storage; the nodes are discarded when seed exits")
	}

	store, err := stack.OpenStorage(ctx, v, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	w := cmd.OutOrStdout()
	var seeded int
	err = cliui.Step(w, "Seeding demo nodes", func() error {
		var err error
		seeded, err = registry.SeedDemo(ctx, store, v.GetString("gate.recipient"), int(c.history), time.Now())
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render(fmt.Sprintf("%d", len(registry.DemoNodes(""))))+" nodes,",
		cliui.ValueStyle.Render(fmt.Sprintf("%d readings", seeded)),
	)
	return nil
}
