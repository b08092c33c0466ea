package registry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/storage"
)

// DemoRecipient receives payments for demo nodes when no recipient is
// configured.
const DemoRecipient = "0x00000000000000000000000000000000000A0A0A"

// DemoInterval spaces seeded demo readings.
const DemoInterval = 15 * time.Minute

// DemoNode is a sample node with its most recent reading.
type DemoNode struct {
	Node    storage.Node
	Reading reading.Reading

	// Age is how long before now the reading was taken.
	Age time.Duration
}

// DemoNodes returns the sample nodes, paying recipient.
func DemoNodes(recipient string) []DemoNode {
	v := reading.Value
	return []DemoNode{
		{
			Node: storage.Node{
				ID:            "node-0001",
				Name:          "Colorado River - Grand County",
				Location:      "Colorado River",
				Recipient:     recipient,
				TotalReadings: 1547,
			},
			Reading: reading.Reading{PH: v(7.2), Turbidity: v(1.8), Conductivity: v(250), Temperature: v(18.5), Level: v(2.1)},
			Age:     3 * time.Minute,
		},
		{
			Node: storage.Node{
				ID:            "node-0002",
				Name:          "Mississippi Delta - Plaquemines",
				Location:      "Mississippi Delta",
				Recipient:     recipient,
				TotalReadings: 1423,
			},
			Reading: reading.Reading{PH: v(7.4), Turbidity: v(2.3), Conductivity: v(280), Temperature: v(22.1), Level: v(1.8)},
			Age:     4 * time.Minute,
		},
		{
			Node: storage.Node{
				ID:            "node-0003",
				Name:          "Great Lakes - Lake Michigan",
				Location:      "Great Lakes",
				Recipient:     recipient,
				TotalReadings: 1689,
			},
			Reading: reading.Reading{PH: v(7.8), Turbidity: v(1.2), Conductivity: v(220), Temperature: v(16.3), Level: v(2.5)},
			Age:     2 * time.Minute,
		},
	}
}

// DemoProviders prices the demo nodes with the given curve.
func DemoProviders(recipient string, curve pricing.Curve, denom pricing.Denomination, now time.Time) []Provider {
	c := &Catalog{curve: curve, denom: denom}

	demo := DemoNodes(recipient)
	providers := make([]Provider, 0, len(demo))
	for _, d := range demo {
		node := d.Node
		p := c.provider(&node)

		r := d.Reading
		r.Timestamp = now.Add(-d.Age).UTC()
		r.Sequence = node.TotalReadings
		p.LastReading = &r

		providers = append(providers, p)
	}
	SortByScore(providers)
	return providers
}

// DemoHistory returns n readings leading up to d's latest reading, spaced
// one interval apart. Values drift slightly so the series is not flat.
func DemoHistory(d DemoNode, n int, interval time.Duration, now time.Time) []reading.Reading {
	if n <= 0 {
		return nil
	}

	end := now.Add(-d.Age)
	out := make([]reading.Reading, 0, n)
	for i := n - 1; i >= 0; i-- {
		drift := 0.02 * math.Sin(float64(i))
		r := reading.Reading{
			Timestamp:    end.Add(-time.Duration(i) * interval).UTC(),
			PH:           jitter(d.Reading.PH, drift),
			Turbidity:    jitter(d.Reading.Turbidity, drift),
			Conductivity: jitter(d.Reading.Conductivity, drift),
			Temperature:  jitter(d.Reading.Temperature, drift),
			Level:        jitter(d.Reading.Level, drift),
		}
		out = append(out, r)
	}
	return out
}

func jitter(v *float64, drift float64) *float64 {
	if v == nil {
		return nil
	}
	return reading.Value(math.Round(*v*(1+drift)*100) / 100)
}

// SeedDemo registers the demo nodes in nodes and appends their history.
// history caps the readings appended per node; zero appends each node's
// full reading count so seeded reputations match the demo listing. It
// returns the number of readings appended.
func SeedDemo(ctx context.Context, nodes storage.NodeStore, recipient string, history int, now time.Time) (int, error) {
	if recipient == "" {
		recipient = DemoRecipient
	}

	total := 0
	for _, d := range DemoNodes(recipient) {
		node := d.Node
		if err := nodes.PutNode(ctx, &node); err != nil {
			return total, fmt.Errorf("registering %s: %w", node.ID, err)
		}

		n := int(d.Node.TotalReadings)
		if history > 0 && history < n {
			n = history
		}
		for _, r := range DemoHistory(d, n, DemoInterval, now) {
			if _, err := nodes.AppendReading(ctx, node.ID, r); err != nil {
				return total, fmt.Errorf("appending reading to %s: %w", node.ID, err)
			}
			total++
		}
	}
	return total, nil
}
