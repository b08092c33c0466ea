// Package servecmder provides the serve command running the payment-gated
// reading server.
package servecmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aona-labs/aona/api"
	"github.com/aona-labs/aona/cmd/aona/stack"
	"github.com/aona-labs/aona/pkg/config"
	"github.com/aona-labs/aona/pkg/logger"
	"github.com/aona-labs/aona/pkg/registry"
)

type serveCommander struct {
	listen    string
	network   string
	recipient string
	sqlite    string
	postgres  string
	ledger    string
	rpcURL    string

	debug  bool
	viper  *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the aona gate server.

The server lists sensor nodes with reputation-based prices, answers reading
requests with an HTTP 402 payment challenge and releases the latest reading
once a confirmed ledger payment is presented in the X-Payment-Signature
header.

Endpoints:
  GET  /providers         Discovery listing
  GET  /readings/:id      Payment-gated latest reading
  POST /payments/verify   Check a payment reference
  GET  /runs/latest       Latest persisted agent run
  GET  /metrics           Prometheus metrics`

const serveShortDesc string = "Run the aona gate server"

var serveFlags = []string{
	config.FlagListen,
	config.FlagNetwork,
	config.FlagRecipient,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagLedger,
	config.FlagRPCURL,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(cmder.debug)
			stack.LoadDotEnv(cmder.logger)

			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, serveFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer cmder.logger.Sync()
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagNetwork, &cmder.network)
	config.AddStringFlag(cmd, config.Flags, config.FlagRecipient, &cmder.recipient)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagLedger, &cmder.ledger)
	config.AddStringFlag(cmd, config.Flags, config.FlagRPCURL, &cmder.rpcURL)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	v := c.viper
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	curve, err := stack.Curve(v)
	if err != nil {
		return err
	}
	denom := stack.Denomination(v)

	store, err := stack.OpenStorage(ctx, v, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	chain, err := stack.OpenLedger(ctx, v, c.logger)
	if err != nil {
		return err
	}
	defer chain.Close()
	if chain.Memory != nil {
		c.logger.Warn("in-memory ledger: only payments made inside this process can be verified")
	}

	verifier, err := stack.NewVerifier(v, chain.Reader(), c.logger)
	if err != nil {
		return err
	}

	catalog := registry.NewCatalog(store, curve, denom, c.logger)
	g := stack.NewGate(v, store, catalog, verifier, stack.NewEnricher(v, c.logger), c.logger)

	recipient := v.GetString("gate.recipient")
	if recipient == "" {
		recipient = registry.DemoRecipient
	}

	server := api.NewServer(api.Config{
		ListenAddr: v.GetString("gate.listen"),
		Network:    v.GetString("gate.network"),
		Token:      v.GetString("gate.token"),
		Fallback:   registry.DemoProviders(recipient, curve, denom, time.Now()),
	}, g, catalog, verifier, store, c.logger)

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("gate server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down gate server")
		return server.Shutdown()
	})

	return eg.Wait()
}
