// Package agent runs the autonomous water analyst: discover providers, pay
// each one, fetch and analyze its reading, raise alerts and summarize.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/eventstream"
	"github.com/aona-labs/aona/pkg/ledger"
	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/storage"
	"github.com/aona-labs/aona/pkg/worker"
)

// ErrNoSigner is returned when the agent has no way to pay.
var ErrNoSigner = errors.New("agent has no signing identity")

// State is the orchestrator lifecycle.
type State int32

const (
	StateInit State = iota
	StateDiscovering
	StateConsuming
	StateSummarizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDiscovering:
		return "discovering"
	case StateConsuming:
		return "consuming"
	case StateSummarizing:
		return "summarizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Defaults.
const (
	DefaultMaxProviders   = 5
	DefaultPace           = time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultConfirmTimeout = 60 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
)

// Config tunes an Orchestrator.
type Config struct {
	MaxProviders int
	MinScore     int

	// Pace is the minimum spacing between provider consultations.
	Pace time.Duration

	RequestTimeout time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	// MinBalance triggers a faucet request of FundAmount when the balance is
	// below it and the ledger offers a faucet.
	MinBalance uint64
	FundAmount uint64

	// OutputPath receives the finalized run as JSON when set.
	OutputPath string

	Denomination pricing.Denomination
	ImpactRate   float64
}

func (c *Config) applyDefaults() {
	if c.MaxProviders <= 0 {
		c.MaxProviders = DefaultMaxProviders
	}
	if c.Pace < 0 {
		c.Pace = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ImpactRate <= 0 {
		c.ImpactRate = report.DefaultImpactRate
	}
}

// Orchestrator drives one agent run at a time.
type Orchestrator struct {
	signer   ledger.Signer
	registry registry.Registry
	gate     GateClient

	runs   storage.RunStore
	events *worker.Pool

	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	state atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRunStore persists finalized runs to store.
func WithRunStore(store storage.RunStore) Option {
	return func(o *Orchestrator) { o.runs = store }
}

// WithEvents publishes alerts and run completion through pool.
func WithEvents(pool *worker.Pool) Option {
	return func(o *Orchestrator) { o.events = pool }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. signer may be nil, in which case Run fails
// during setup.
func New(signer ledger.Signer, reg registry.Registry, gate GateClient, cfg Config, opts ...Option) *Orchestrator {
	cfg.applyDefaults()
	o := &Orchestrator{
		signer:   signer,
		registry: reg,
		gate:     gate,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.logger.Debug("agent state", zap.Stringer("state", s))
}

// Run executes one full pass. Per-provider failures are recorded on the run;
// only setup and persistence failures are returned as errors. When ctx is
// cancelled mid-loop the run is summarized with what was completed.
func (o *Orchestrator) Run(ctx context.Context) (*report.Run, error) {
	o.setState(StateInit)
	if o.signer == nil {
		o.setState(StateFailed)
		return nil, ErrNoSigner
	}

	o.ensureFunds(ctx)
	run := report.NewRun(o.signer.Address(), o.now().UTC())

	o.setState(StateDiscovering)
	providers := o.discover(ctx)

	o.setState(StateConsuming)
	interrupted := o.consume(ctx, run, providers)

	o.setState(StateSummarizing)
	run.Cancelled = interrupted || ctx.Err() != nil
	summary, err := run.Finalize(o.now().UTC(), report.Options{
		Denomination: o.cfg.Denomination,
		ImpactRate:   o.cfg.ImpactRate,
	})
	if err != nil {
		o.setState(StateFailed)
		return nil, err
	}

	o.logger.Info("agent run summarized",
		zap.String("run_id", run.ID),
		zap.Int("nodes", summary.TotalNodes),
		zap.Int("failed", summary.FailedNodes),
		zap.Uint64("spent", summary.TotalSpent),
		zap.Int("alerts", summary.AlertsGenerated),
		zap.String("quality", string(summary.OverallWaterQuality)),
		zap.Bool("cancelled", run.Cancelled),
	)

	if o.events != nil {
		o.events.Enqueue(worker.Job{Event: eventstream.NewRunCompletedEvent(run, o.now().UTC())})
	}

	if err := o.persist(ctx, run); err != nil {
		o.setState(StateFailed)
		return run, err
	}

	o.setState(StateDone)
	return run, nil
}

func (o *Orchestrator) ensureFunds(ctx context.Context) {
	balance, err := o.signer.Balance(ctx, o.signer.Address())
	if err != nil {
		o.logger.Warn("could not read agent balance", zap.Error(err))
		return
	}
	o.logger.Info("agent identity",
		zap.String("address", o.signer.Address()),
		zap.Uint64("balance", balance),
	)

	if balance >= o.cfg.MinBalance {
		return
	}

	faucet, ok := o.signer.(ledger.Faucet)
	if !ok || o.cfg.FundAmount == 0 {
		o.logger.Warn("agent balance below minimum, continuing",
			zap.Uint64("balance", balance),
			zap.Uint64("min_balance", o.cfg.MinBalance),
		)
		return
	}

	if err := faucet.RequestFunds(ctx, o.signer.Address(), o.cfg.FundAmount); err != nil {
		o.logger.Warn("faucet request failed, proceeding with current balance", zap.Error(err))
		return
	}
	o.logger.Info("agent funded from faucet", zap.Uint64("amount", o.cfg.FundAmount))
}

func (o *Orchestrator) discover(ctx context.Context) []registry.Provider {
	dctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	all, err := o.registry.Providers(dctx)
	if err != nil {
		o.logger.Warn("provider discovery failed, treating as empty", zap.Error(err))
		return nil
	}

	selected := Select(all, o.cfg.MinScore, o.cfg.MaxProviders)
	o.logger.Info("providers discovered",
		zap.Int("available", len(all)),
		zap.Int("selected", len(selected)),
	)
	return selected
}

// Select keeps providers scoring at least minScore, orders them by score
// (highest first, stable) and keeps at most limit.
func Select(providers []registry.Provider, minScore, limit int) []registry.Provider {
	out := make([]registry.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Reputation.Score >= minScore {
			out = append(out, p)
		}
	}
	registry.SortByScore(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// consume consults providers in order and reports whether it stopped early.
func (o *Orchestrator) consume(ctx context.Context, run *report.Run, providers []registry.Provider) bool {
	limit := rate.Inf
	if o.cfg.Pace > 0 {
		limit = rate.Every(o.cfg.Pace)
	}
	limiter := rate.NewLimiter(limit, 1)

	for _, p := range providers {
		if err := limiter.Wait(ctx); err != nil {
			o.logger.Warn("agent run interrupted", zap.Error(err))
			return true
		}
		o.consult(ctx, run, p)
	}
	return false
}

func (o *Orchestrator) consult(ctx context.Context, run *report.Run, p registry.Provider) {
	log := o.logger.With(zap.String("node", p.ID), zap.String("name", p.Name))
	fail := func(stage string, err error) {
		log.Warn("provider consultation failed", zap.String("stage", stage), zap.Error(err))
		record(log, "failure", run.AddFailure(report.Failure{
			NodeID:    p.ID,
			NodeName:  p.Name,
			Stage:     stage,
			Error:     err.Error(),
			Timestamp: o.now().UTC(),
		}))
	}

	amount := p.Price.Minimal
	cctx, cancel := context.WithTimeout(ctx, o.cfg.ConfirmTimeout)
	defer cancel()

	log.Info("paying provider", zap.Uint64("amount", amount), zap.String("recipient", p.Recipient))
	ref, err := o.signer.Submit(cctx, ledger.Transfer{To: p.Recipient, Amount: amount})
	if err != nil {
		fail(report.StagePayment, err)
		return
	}

	payment := report.PaymentRecord{
		NodeID:    p.ID,
		Ref:       ref,
		Recipient: p.Recipient,
		Amount:    amount,
	}

	tx, err := ledger.WaitConfirmed(cctx, o.signer, ref, o.cfg.PollInterval)
	if err != nil {
		payment.Timestamp = o.now().UTC()
		record(log, "payment", run.AddPayment(payment))
		fail(report.StageConfirmation, err)
		return
	}
	payment.Confirmed = true
	payment.Timestamp = tx.ConfirmedAt
	record(log, "payment", run.AddPayment(payment))

	rctx, rcancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer rcancel()

	granted, err := o.gate.Fetch(rctx, p.ID, ref)
	if err != nil {
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			fail(report.StageRejected, err)
		} else {
			fail(report.StageFetch, err)
		}
		return
	}

	now := o.now().UTC()
	result := analysis.Analyze(granted.Reading)
	alerts := report.AlertsFor(p.ID, p.Name, result, now)

	record(log, "outcome", run.AddOutcome(report.Outcome{
		NodeID:      p.ID,
		NodeName:    p.Name,
		Reading:     granted.Reading,
		Enrichment:  granted.Enrichment,
		Analysis:    result,
		Alerts:      alerts,
		Payment:     payment,
		ConsultedAt: now,
	}))

	log.Info("reading analyzed",
		zap.String("quality", string(result.Overall)),
		zap.Int("alerts", len(alerts)),
	)

	if o.events != nil {
		for _, a := range alerts {
			o.events.Enqueue(worker.Job{Event: eventstream.NewAlertEvent(run, a, now)})
		}
	}
}

// record logs a run update the run refused, such as one made after Finalize.
func record(log *zap.Logger, what string, err error) {
	if err != nil {
		log.Error("could not record "+what, zap.Error(err))
	}
}

func (o *Orchestrator) persist(ctx context.Context, run *report.Run) error {
	var errs []error

	if o.cfg.OutputPath != "" {
		if err := report.WriteFile(o.cfg.OutputPath, run); err != nil {
			errs = append(errs, err)
		} else {
			o.logger.Info("run written", zap.String("path", o.cfg.OutputPath))
		}
	}

	if o.runs != nil {
		// The run is saved even when the caller's context was cancelled.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RequestTimeout)
		defer cancel()
		if err := o.runs.SaveRun(sctx, run); err != nil {
			errs = append(errs, fmt.Errorf("saving run: %w", err))
		}
	}

	return errors.Join(errs...)
}
