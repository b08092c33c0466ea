package agent_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/agent"
	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/eventstream"
	"github.com/aona-labs/aona/pkg/gate"
	ledgermem "github.com/aona-labs/aona/pkg/ledger/inmemory"
	"github.com/aona-labs/aona/pkg/payment"
	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/reputation"
	"github.com/aona-labs/aona/pkg/storage"
	"github.com/aona-labs/aona/pkg/storage/inmemory"
	"github.com/aona-labs/aona/pkg/worker"
)

type failingRegistry struct{}

func (failingRegistry) Providers(context.Context) ([]registry.Provider, error) {
	return nil, errors.New("registry offline")
}

type collectingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.Event
}

func (c *collectingPublisher) Publish(_ context.Context, e *eventstream.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collectingPublisher) Close() error { return nil }

func (c *collectingPublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx      context.Context
		chain    *ledgermem.Ledger
		wallet   *ledgermem.Wallet
		store    *inmemory.Driver
		catalog  *registry.Catalog
		local    agent.LocalGate
		gateOver func(*ledgermem.Ledger) agent.LocalGate
		cfg      agent.Config
		denom    = pricing.Denomination{Symbol: ledgermem.DefaultSymbol, Decimals: 9}
	)

	addNode := func(id string, readings int, r reading.Reading) {
		Expect(store.PutNode(ctx, &storage.Node{ID: id, Name: "Node " + id, Recipient: "0x" + id})).To(Succeed())
		for range readings {
			_, err := store.AppendReading(ctx, id, r)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	gateOver = func(l *ledgermem.Ledger) agent.LocalGate {
		g := gate.New(store, catalog, payment.NewVerifier(l), nil,
			gate.Config{Token: ledgermem.DefaultSymbol}, zap.NewNop())
		return agent.LocalGate{Gate: g}
	}

	providers := func() registry.Static {
		ps, err := catalog.Providers(ctx)
		Expect(err).NotTo(HaveOccurred())
		return registry.Static(ps)
	}

	BeforeEach(func() {
		ctx = context.Background()
		chain = ledgermem.New()
		wallet = chain.Wallet("0xAgent")
		Expect(chain.RequestFunds(ctx, "0xAgent", 100_000_000)).To(Succeed())

		store = inmemory.NewDriver()
		catalog = registry.NewCatalog(store, pricing.DefaultCurve(), denom, zap.NewNop())
		local = gateOver(chain)

		cfg = agent.Config{
			Pace:         time.Millisecond,
			PollInterval: time.Millisecond,
			Denomination: denom,
			OutputPath:   filepath.Join(GinkgoT().TempDir(), "agent-output.json"),
		}

		addNode("a", 120, reading.Reading{PH: reading.Value(5.5)})
		addNode("b", 60, reading.Reading{PH: reading.Value(7.2), Turbidity: reading.Value(0.7)})
		addNode("c", 20, reading.Reading{PH: reading.Value(7.0)})
	})

	It("consults every provider and summarizes", func() {
		runs := inmemory.NewDriver()
		o := agent.New(wallet, providers(), local, cfg, agent.WithRunStore(runs))

		run, err := o.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(o.State()).To(Equal(agent.StateDone))

		Expect(run.Agent).To(Equal("0xAgent"))
		Expect(run.Outcomes).To(HaveLen(3))
		Expect(run.Outcomes[0].NodeID).To(Equal("a"))
		Expect(run.Failures).To(BeEmpty())
		Expect(run.Payments).To(HaveLen(3))
		Expect(run.Summary.OverallWaterQuality).To(Equal(analysis.QualityFair))
		Expect(run.Summary.AlertsBySeverity).To(Equal(report.SeverityCounts{High: 1, Medium: 1}))

		var spent uint64
		for _, p := range run.Payments {
			spent += p.Amount
		}
		Expect(run.Summary.TotalSpent).To(Equal(spent))
		Expect(chain.Balance(ctx, "0xAgent")).To(Equal(100_000_000 - spent))

		saved, err := runs.GetRun(ctx, run.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Summary).NotTo(BeNil())

		written, err := report.ReadFile(cfg.OutputPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(written.ID).To(Equal(run.ID))
	})

	It("records a failed submission and continues", func() {
		ps := providers()
		ps[1].Recipient = ""

		run, err := agent.New(wallet, ps, local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(run.Outcomes).To(HaveLen(2))
		Expect(run.Summary.TotalNodes).To(Equal(2))
		Expect(run.Failures).To(ConsistOf(HaveField("Stage", report.StagePayment)))
		Expect(run.Failures[0].NodeID).To(Equal(ps[1].ID))
		Expect(run.Summary.FailedNodes).To(Equal(1))
		Expect(run.Payments).To(HaveLen(2))
	})

	It("records a rejected proof as a failure but counts the spend", func() {
		ps := providers()
		ps[0].Price.Minimal = 1

		run, err := agent.New(wallet, ps, local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(run.Outcomes).To(HaveLen(2))
		Expect(run.Failures).To(ConsistOf(HaveField("Stage", report.StageRejected)))
		Expect(run.Payments).To(HaveLen(3))
		Expect(run.Summary.TotalSpent).To(Equal(ps[1].Price.Minimal + ps[2].Price.Minimal + 1))
	})

	It("records an unconfirmed payment", func() {
		chain = ledgermem.New(ledgermem.WithManualConfirm())
		Expect(chain.RequestFunds(ctx, "0xAgent", 100_000_000)).To(Succeed())
		cfg.ConfirmTimeout = 20 * time.Millisecond

		run, err := agent.New(chain.Wallet("0xAgent"), providers()[:1], local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Outcomes).To(BeEmpty())
		Expect(run.Failures).To(ConsistOf(HaveField("Stage", report.StageConfirmation)))
		Expect(run.Payments).To(ConsistOf(HaveField("Confirmed", false)))
		Expect(run.Summary.TotalSpent).To(BeZero())
	})

	It("filters by minimum score and caps the provider count", func() {
		cfg.MinScore = 50

		run, err := agent.New(wallet, providers(), local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Outcomes).To(HaveLen(2))
		Expect(run.Outcomes[1].NodeID).To(Equal("b"))

		cfg.MinScore = 0
		cfg.MaxProviders = 1
		run, err = agent.New(wallet, providers(), local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Outcomes).To(HaveLen(1))
		Expect(run.Outcomes[0].NodeID).To(Equal("a"))
	})

	It("persists an empty run when discovery finds nothing", func() {
		runs := inmemory.NewDriver()
		run, err := agent.New(wallet, registry.Static{}, local, cfg, agent.WithRunStore(runs)).Run(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(run.Outcomes).To(BeEmpty())
		Expect(run.Summary.TotalNodes).To(BeZero())
		Expect(run.Summary.TotalSpent).To(BeZero())
		Expect(run.Summary.AlertsGenerated).To(BeZero())
		Expect(run.Summary.OverallWaterQuality).To(Equal(analysis.QualityGood))

		latest, err := runs.LatestRun(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.ID).To(Equal(run.ID))

		written, err := report.ReadFile(cfg.OutputPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(written.Outcomes).To(BeEmpty())
	})

	It("treats a failing registry as empty", func() {
		run, err := agent.New(wallet, failingRegistry{}, local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Summary.TotalNodes).To(BeZero())
	})

	It("summarizes partial results when cancelled", func() {
		cfg.Pace = time.Hour
		cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()

		run, err := agent.New(wallet, providers(), local, cfg).Run(cctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Cancelled).To(BeTrue())
		Expect(run.Outcomes).To(HaveLen(1))
		Expect(run.Summary).NotTo(BeNil())
	})

	It("fails setup without a signer", func() {
		o := agent.New(nil, registry.Static{}, local, cfg)
		_, err := o.Run(ctx)
		Expect(err).To(MatchError(agent.ErrNoSigner))
		Expect(o.State()).To(Equal(agent.StateFailed))
	})

	It("tops up from the faucet when below the minimum balance", func() {
		chain = ledgermem.New()
		local = gateOver(chain)
		cfg.MinBalance = 1
		cfg.FundAmount = 50_000_000

		run, err := agent.New(chain.Wallet("0xPoor"), providers(), local, cfg).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Outcomes).To(HaveLen(3))
	})

	It("publishes alerts and the completed run", func() {
		pub := &collectingPublisher{}
		pool, err := worker.NewPool(&worker.Config{Publisher: pub})
		Expect(err).NotTo(HaveOccurred())

		_, err = agent.New(wallet, providers(), local, cfg, agent.WithEvents(pool)).Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		pool.Close()

		Expect(pub.types()).To(ConsistOf(
			eventstream.EventTypeAlertRaised,
			eventstream.EventTypeAlertRaised,
			eventstream.EventTypeRunCompleted,
		))
	})
})

var _ = Describe("Select", func() {
	p := func(id string, score int) registry.Provider {
		return registry.Provider{ID: id, Reputation: reputation.Reputation{Score: score}}
	}

	It("filters, orders and truncates", func() {
		in := []registry.Provider{p("low", 0), p("mid", 50), p("top", 90), p("mid2", 50)}
		out := agent.Select(in, 1, 2)
		Expect(out).To(HaveLen(2))
		Expect(out[0].ID).To(Equal("top"))
		Expect(out[1].ID).To(Equal("mid"))
		Expect(in[0].ID).To(Equal("low"))
	})
})
