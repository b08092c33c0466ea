// Package analysis derives water-quality issues and alerts from a reading.
package analysis

import (
	"fmt"

	"github.com/aona-labs/aona/pkg/reading"
)

// Quality is the overall verdict for one reading. It only escalates.
type Quality string

const (
	QualityGood Quality = "good"
	QualityFair Quality = "fair"
	QualityPoor Quality = "poor"
)

func (q Quality) rank() int {
	switch q {
	case QualityPoor:
		return 2
	case QualityFair:
		return 1
	default:
		return 0
	}
}

// Severity of an issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Metric names, as reported on issues and alerts.
const (
	MetricPH          = "pH"
	MetricTurbidity   = "turbidity"
	MetricTemperature = "temperature"
)

// Metric statuses.
const (
	StatusNormal   = "normal"
	StatusAbnormal = "abnormal"
	StatusElevated = "elevated"
	StatusWarm     = "warm"
)

// FieldPH keys pH in Result.Metrics, matching the reading's field name.
const FieldPH = "ph"

// Issue is a single threshold violation.
type Issue struct {
	Metric   string   `json:"metric"`
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// MetricStatus is the classified value of one present field.
type MetricStatus struct {
	Value  float64 `json:"value"`
	Status string  `json:"status"`
}

// Result is the analysis of one reading.
type Result struct {
	Overall Quality                 `json:"overall"`
	Issues  []Issue                 `json:"issues"`
	Metrics map[string]MetricStatus `json:"metrics"`
}

// Thresholds are the limits a reading is checked against.
type Thresholds struct {
	PHMin, PHMax       float64
	TurbidityMax       float64
	TurbidityWarning   float64
	TemperatureMax     float64
	TemperatureWarning float64
}

// DefaultThresholds are drinking-water limits: pH in [6.5, 8.5], turbidity
// in NTU, temperature in °C.
var DefaultThresholds = Thresholds{
	PHMin:              6.5,
	PHMax:              8.5,
	TurbidityMax:       1.0,
	TurbidityWarning:   0.5,
	TemperatureMax:     30,
	TemperatureWarning: 25,
}

// Analyze checks r against DefaultThresholds.
func Analyze(r reading.Reading) Result {
	return DefaultThresholds.Analyze(r)
}

// Analyze checks r against t. Absent fields produce neither issues nor
// metrics entries.
func (t Thresholds) Analyze(r reading.Reading) Result {
	res := Result{
		Overall: QualityGood,
		Issues:  []Issue{},
		Metrics: map[string]MetricStatus{},
	}

	if r.PH != nil {
		ph := *r.PH
		status := StatusNormal
		if ph < t.PHMin || ph > t.PHMax {
			status = StatusAbnormal
			res.add(Issue{
				Metric:   MetricPH,
				Value:    ph,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("pH out of safe range (%g-%g)", t.PHMin, t.PHMax),
			}, QualityPoor)
		}
		res.Metrics[FieldPH] = MetricStatus{Value: ph, Status: status}
	}

	if r.Turbidity != nil {
		tb := *r.Turbidity
		switch {
		case tb > t.TurbidityMax:
			res.add(Issue{
				Metric:   MetricTurbidity,
				Value:    tb,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("High turbidity exceeds %g NTU", t.TurbidityMax),
			}, QualityPoor)
		case tb > t.TurbidityWarning:
			res.add(Issue{
				Metric:   MetricTurbidity,
				Value:    tb,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("Elevated turbidity (>%g NTU)", t.TurbidityWarning),
			}, QualityFair)
		}
		status := StatusNormal
		if tb > t.TurbidityWarning {
			status = StatusElevated
		}
		res.Metrics[MetricTurbidity] = MetricStatus{Value: tb, Status: status}
	}

	if r.Temperature != nil {
		temp := *r.Temperature
		if temp > t.TemperatureMax {
			res.add(Issue{
				Metric:   MetricTemperature,
				Value:    temp,
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("High temperature (>%g°C)", t.TemperatureMax),
			}, QualityFair)
		}
		status := StatusNormal
		if temp > t.TemperatureWarning {
			status = StatusWarm
		}
		res.Metrics[MetricTemperature] = MetricStatus{Value: temp, Status: status}
	}

	return res
}

func (r *Result) add(issue Issue, raiseTo Quality) {
	r.Issues = append(r.Issues, issue)
	if raiseTo.rank() > r.Overall.rank() {
		r.Overall = raiseTo
	}
}
