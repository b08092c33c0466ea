// Package report holds the agent run record and its summary.
package report

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/reading"
)

// AlertTypeWaterQuality is the only alert type produced today.
const AlertTypeWaterQuality = "water_quality"

// Failure stages.
const (
	StagePayment      = "payment"
	StageConfirmation = "confirmation"
	StageRejected     = "rejected"
	StageFetch        = "fetch"
)

// ErrFinalized is returned when a finalized run is modified.
var ErrFinalized = errors.New("run already finalized")

// Alert is one actionable signal derived from an issue.
type Alert struct {
	ID             string            `json:"id"`
	NodeID         string            `json:"nodeId"`
	NodeName       string            `json:"nodeName"`
	Type           string            `json:"type"`
	Metric         string            `json:"metric"`
	Value          float64           `json:"value"`
	Severity       analysis.Severity `json:"severity"`
	Message        string            `json:"message"`
	Recommendation string            `json:"recommendation"`
	Timestamp      time.Time         `json:"timestamp"`
}

// AlertsFor turns every issue in res into an alert.
func AlertsFor(nodeID, nodeName string, res analysis.Result, now time.Time) []Alert {
	alerts := make([]Alert, 0, len(res.Issues))
	for _, issue := range res.Issues {
		alerts = append(alerts, Alert{
			ID:             uuid.NewString(),
			NodeID:         nodeID,
			NodeName:       nodeName,
			Type:           AlertTypeWaterQuality,
			Metric:         issue.Metric,
			Value:          issue.Value,
			Severity:       issue.Severity,
			Message:        issue.Message,
			Recommendation: analysis.Recommend(issue.Metric, issue.Severity),
			Timestamp:      now,
		})
	}
	return alerts
}

// PaymentRecord is one transfer the agent made.
type PaymentRecord struct {
	NodeID    string    `json:"nodeId"`
	Ref       string    `json:"signature"`
	Recipient string    `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Confirmed bool      `json:"confirmed"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome is a successful consultation of one provider.
type Outcome struct {
	NodeID      string          `json:"nodeId"`
	NodeName    string          `json:"nodeName"`
	Reading     reading.Reading `json:"reading"`
	Enrichment  map[string]any  `json:"enrichment,omitempty"`
	Analysis    analysis.Result `json:"analysis"`
	Alerts      []Alert         `json:"alerts"`
	Payment     PaymentRecord   `json:"payment"`
	ConsultedAt time.Time       `json:"consultedAt"`
}

// Failure records a provider the agent could not consult.
type Failure struct {
	NodeID    string    `json:"nodeId"`
	NodeName  string    `json:"nodeName"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Run is the record of one agent execution. It has a single writer and is
// finalized exactly once.
type Run struct {
	ID              string          `json:"id"`
	Agent           string          `json:"agent"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt,omitzero"`
	NodesConsulted  int             `json:"nodesConsulted"`
	TotalSpent      uint64          `json:"totalSpent"`
	AlertsGenerated int             `json:"alertsGenerated"`
	Outcomes        []Outcome       `json:"nodes"`
	Payments        []PaymentRecord `json:"payments"`
	Failures        []Failure       `json:"failures"`
	Cancelled       bool            `json:"cancelled,omitempty"`
	Summary         *Summary        `json:"summary,omitempty"`
}

// NewRun starts an empty run for agent.
func NewRun(agent string, now time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Agent:     agent,
		StartedAt: now,
		Outcomes:  []Outcome{},
		Payments:  []PaymentRecord{},
		Failures:  []Failure{},
	}
}

// Finalized reports whether Finalize has been called.
func (r *Run) Finalized() bool {
	return r.Summary != nil
}

// AddPayment records a transfer. Confirmed transfers count toward the total
// spend even when the subsequent fetch fails.
func (r *Run) AddPayment(p PaymentRecord) error {
	if r.Finalized() {
		return ErrFinalized
	}
	r.Payments = append(r.Payments, p)
	if p.Confirmed {
		r.TotalSpent += p.Amount
	}
	return nil
}

// AddOutcome records a successful consultation.
func (r *Run) AddOutcome(o Outcome) error {
	if r.Finalized() {
		return ErrFinalized
	}
	r.Outcomes = append(r.Outcomes, o)
	r.NodesConsulted++
	r.AlertsGenerated += len(o.Alerts)
	return nil
}

// AddFailure records a provider that could not be consulted.
func (r *Run) AddFailure(f Failure) error {
	if r.Finalized() {
		return ErrFinalized
	}
	r.Failures = append(r.Failures, f)
	return nil
}

// Finalize computes the summary and closes the run.
func (r *Run) Finalize(now time.Time, opts Options) (*Summary, error) {
	if r.Finalized() {
		return nil, ErrFinalized
	}
	s := Summarize(r.Outcomes, r.Payments, r.Failures, opts)
	r.FinishedAt = now
	r.Summary = &s
	return r.Summary, nil
}
