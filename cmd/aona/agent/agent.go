// Package agentcmder provides the agent command running one water analyst pass.
package agentcmder

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/cmd/aona/stack"
	"github.com/aona-labs/aona/pkg/agent"
	"github.com/aona-labs/aona/pkg/cliui"
	"github.com/aona-labs/aona/pkg/config"
	"github.com/aona-labs/aona/pkg/dotdir"
	"github.com/aona-labs/aona/pkg/logger"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/storage"
	"github.com/aona-labs/aona/pkg/wallet"
	"github.com/aona-labs/aona/pkg/worker"
)

type agentCommander struct {
	gateTarget     string
	maxProviders   uint
	minScore       uint
	pace           string
	output         string
	sqlite         string
	postgres       string
	ledger         string
	rpcURL         string
	eventsProvider string
	eventsTarget   string

	configDir string
	debug     bool
	viper     *viper.Viper
	logger    *zap.Logger
}

const agentLongDesc string = `Run one pass of the water analyst agent.

The agent discovers providers, pays each selected provider for its latest
reading, analyzes the readings and prints a water quality report. The run is
also written to --output and saved to the configured storage.

With the memory ledger the agent is self-contained: it seeds the demo nodes
when storage is empty and pays an in-process gate. With the evm ledger it
talks to the gate at --gate-target.

The signing key comes from agent.private_key (AONA_AGENT_PRIVATE_KEY). When
none is configured a key is generated and kept in .aona/agent.key.`

const agentShortDesc string = "Run one water analyst pass"

var agentFlags = []string{
	config.FlagGateTarget,
	config.FlagMaxProviders,
	config.FlagMinScore,
	config.FlagPace,
	config.FlagOutput,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagLedger,
	config.FlagRPCURL,
	config.FlagEventsProvider,
	config.FlagEventsTarget,
}

func NewAgentCmd() *cobra.Command {
	cmder := &agentCommander{}

	cmd := &cobra.Command{
		Use:   "agent",
		Short: agentShortDesc,
		Long:  agentLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.logger = logger.NewLogger(cmder.debug)
			stack.LoadDotEnv(cmder.logger)

			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.viper, err = config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(cmder.viper, cmd, config.Flags, agentFlags)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer cmder.logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			run, err := cmder.run(ctx)
			if run != nil {
				cliui.RenderRun(cmd.OutOrStdout(), run)
			}
			return err
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagGateTarget, &cmder.gateTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagMaxProviders, &cmder.maxProviders)
	config.AddUintFlag(cmd, config.Flags, config.FlagMinScore, &cmder.minScore)
	config.AddStringFlag(cmd, config.Flags, config.FlagPace, &cmder.pace)
	config.AddStringFlag(cmd, config.Flags, config.FlagOutput, &cmder.output)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagLedger, &cmder.ledger)
	config.AddStringFlag(cmd, config.Flags, config.FlagRPCURL, &cmder.rpcURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTarget, &cmder.eventsTarget)

	return cmd
}

func (c *agentCommander) run(ctx context.Context) (*report.Run, error) {
	v := c.viper

	id, err := c.identity()
	if err != nil {
		return nil, err
	}

	curve, err := stack.Curve(v)
	if err != nil {
		return nil, err
	}
	denom := stack.Denomination(v)

	chain, err := stack.OpenLedger(ctx, v, c.logger)
	if err != nil {
		return nil, err
	}
	defer chain.Close()

	store, err := stack.OpenStorage(ctx, v, c.logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var (
		reg  registry.Registry
		gate agent.GateClient
	)
	if chain.Memory != nil {
		if err := c.ensureDemoNodes(ctx, store); err != nil {
			return nil, err
		}
		verifier, err := stack.NewVerifier(v, chain.Reader(), c.logger)
		if err != nil {
			return nil, err
		}
		catalog := registry.NewCatalog(store, curve, denom, c.logger)
		reg = catalog
		gate = agent.LocalGate{
			Gate: stack.NewGate(v, store, catalog, verifier, stack.NewEnricher(v, c.logger), c.logger),
		}
	} else {
		target := v.GetString("agent.gate_target")
		reg = registry.NewClient(target, v.GetDuration("agent.request_timeout"))
		gate = agent.NewHTTPGate(target, v.GetString("gate.proof_header"))
	}

	publisher, err := stack.NewPublisher(v, c.logger)
	if err != nil {
		return nil, err
	}
	pool, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: 2,
		Logger:     c.logger,
	})
	if err != nil {
		publisher.Close()
		return nil, err
	}
	defer publisher.Close()
	defer pool.Close()

	c.logger.Info("starting agent run",
		zap.String("address", id.Address),
		zap.Bool("ephemeral", id.Generated),
	)

	orchestrator := agent.New(chain.Signer(id), reg, gate, agent.Config{
		MaxProviders:   v.GetInt("agent.max_providers"),
		MinScore:       v.GetInt("agent.min_score"),
		Pace:           v.GetDuration("agent.pace"),
		RequestTimeout: v.GetDuration("agent.request_timeout"),
		ConfirmTimeout: v.GetDuration("agent.confirm_timeout"),
		PollInterval:   v.GetDuration("agent.poll_interval"),
		MinBalance:     v.GetUint64("agent.min_balance"),
		FundAmount:     v.GetUint64("agent.fund_amount"),
		OutputPath:     v.GetString("agent.output_path"),
		Denomination:   denom,
		ImpactRate:     v.GetFloat64("report.impact_rate"),
	},
		agent.WithRunStore(store),
		agent.WithEvents(pool),
		agent.WithLogger(c.logger),
	)

	return orchestrator.Run(ctx)
}

// identity loads the configured key, falling back to the saved one. When
// neither parses a key is generated, and it is saved only if no key is stored
// yet so a bad configuration never replaces a funded identity.
func (c *agentCommander) identity() (*wallet.Identity, error) {
	manager := dotdir.NewManager()

	saved, loadErr := manager.LoadAgentKey(c.configDir)
	if loadErr != nil {
		c.logger.Warn("could not read saved agent key", zap.Error(loadErr))
	}

	if key := c.viper.GetString("agent.private_key"); strings.TrimSpace(key) != "" {
		id, err := wallet.Load(key)
		if err == nil {
			return id, nil
		}
		c.logger.Warn("configured agent key is invalid, trying the saved key", zap.Error(err))
	}

	id, err := wallet.LoadOrGenerate(saved, c.logger)
	if err != nil {
		return nil, err
	}
	if !id.Generated {
		return id, nil
	}

	if saved != "" || loadErr != nil {
		c.logger.Warn("keeping the saved agent key, this run uses an ephemeral identity")
		return id, nil
	}

	path, err := manager.SaveAgentKey(id.HexKey(), c.configDir)
	if err != nil {
		c.logger.Warn("could not save agent key", zap.Error(err))
	} else {
		c.logger.Info("saved agent key", zap.String("path", path))
	}
	return id, nil
}

func (c *agentCommander) ensureDemoNodes(ctx context.Context, nodes storage.NodeStore) error {
	existing, err := nodes.ListNodes(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	n, err := registry.SeedDemo(ctx, nodes, c.viper.GetString("gate.recipient"), 0, time.Now())
	if err != nil {
		return fmt.Errorf("seeding demo nodes: %w", err)
	}
	c.logger.Info("seeded demo nodes", zap.Int("readings", n))
	return nil
}
