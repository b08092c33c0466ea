package report

import (
	"math"

	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/pricing"
)

// DefaultImpactRate is the share of alerts counted as prevented incidents.
const DefaultImpactRate = 0.3

// Options tune Summarize.
type Options struct {
	Denomination pricing.Denomination
	ImpactRate   float64
}

// SeverityCounts tallies alerts by severity.
type SeverityCounts struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Impact is the estimated effect of the alerts raised.
type Impact struct {
	Rate          float64 `json:"rate"`
	CrisesAvoided int     `json:"crisesAvoided"`
}

// Summary is the rollup of a run.
type Summary struct {
	TotalNodes          int              `json:"totalNodes"`
	TotalSpent          uint64           `json:"totalSpent"`
	TotalSpentDisplay   float64          `json:"totalSpentDisplay"`
	Symbol              string           `json:"symbol,omitempty"`
	TotalSpentUSD       *float64         `json:"totalSpentUsd,omitempty"`
	AlertsGenerated     int              `json:"alertsGenerated"`
	AlertsBySeverity    SeverityCounts   `json:"alertsBySeverity"`
	OverallWaterQuality analysis.Quality `json:"overallWaterQuality"`
	FailedNodes         int              `json:"failedNodes"`
	Impact              Impact           `json:"impact"`
}

// Summarize rolls up a run. Empty input yields zeros and a "good" verdict.
func Summarize(outcomes []Outcome, payments []PaymentRecord, failures []Failure, opts Options) Summary {
	rate := opts.ImpactRate
	if rate <= 0 {
		rate = DefaultImpactRate
	}

	s := Summary{
		TotalNodes:  len(outcomes),
		FailedNodes: len(failures),
		Symbol:      opts.Denomination.Symbol,
	}

	for _, p := range payments {
		if p.Confirmed {
			s.TotalSpent += p.Amount
		}
	}
	q := opts.Denomination.Quote(s.TotalSpent)
	s.TotalSpentDisplay = q.Display
	s.TotalSpentUSD = q.USD

	qualities := make([]analysis.Quality, 0, len(outcomes))
	for _, o := range outcomes {
		qualities = append(qualities, o.Analysis.Overall)
		for _, a := range o.Alerts {
			s.AlertsGenerated++
			switch a.Severity {
			case analysis.SeverityHigh:
				s.AlertsBySeverity.High++
			case analysis.SeverityMedium:
				s.AlertsBySeverity.Medium++
			case analysis.SeverityLow:
				s.AlertsBySeverity.Low++
			}
		}
	}
	s.OverallWaterQuality = Rollup(qualities)
	s.Impact = Impact{
		Rate:          rate,
		CrisesAvoided: int(math.Floor(float64(s.AlertsGenerated) * rate)),
	}
	return s
}

// Rollup combines per-reading verdicts: poor when strictly more than half
// are poor, fair when strictly more than half are fair or poor, else good.
func Rollup(qualities []analysis.Quality) analysis.Quality {
	var poor, fair int
	for _, q := range qualities {
		switch q {
		case analysis.QualityPoor:
			poor++
		case analysis.QualityFair:
			fair++
		}
	}

	n := len(qualities)
	switch {
	case 2*poor > n:
		return analysis.QualityPoor
	case 2*(poor+fair) > n:
		return analysis.QualityFair
	default:
		return analysis.QualityGood
	}
}
