// Package reading holds the sensor reading shape shared by the gate and the agent.
package reading

import "time"

// Reading is one sample from a water-quality node. Any measurement may be
// absent; consumers skip nil fields.
type Reading struct {
	Timestamp    time.Time `json:"timestamp"`
	PH           *float64  `json:"ph"`
	Turbidity    *float64  `json:"turbidity"`
	Conductivity *float64  `json:"conductivity"`
	Temperature  *float64  `json:"temperature"`
	Level        *float64  `json:"level"`
	Sequence     uint64    `json:"seq"`
}

// Value returns a pointer to v for building readings.
func Value(v float64) *float64 {
	return &v
}

// Empty reports whether r carries no measurement at all.
func (r Reading) Empty() bool {
	return r.PH == nil && r.Turbidity == nil && r.Conductivity == nil &&
		r.Temperature == nil && r.Level == nil
}
