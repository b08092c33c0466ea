package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/cliui"
	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/report"
)

var _ = Describe("Step", func() {
	It("returns the wrapped error and prints a mark", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "working", func() error { return errors.New("nope") })
		Expect(err).To(MatchError("nope"))
		Expect(buf.String()).To(ContainSubstring("working"))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("RenderRun", func() {
	It("prints nodes, failures, alerts and the summary", func() {
		now := time.Now().UTC()
		run := report.NewRun("0xAgent", now)
		res := analysis.Analyze(reading.Reading{PH: reading.Value(5.0)})
		Expect(run.AddOutcome(report.Outcome{
			NodeID:   "n1",
			NodeName: "River Intake",
			Analysis: res,
			Alerts:   report.AlertsFor("n1", "River Intake", res, now),
			Payment:  report.PaymentRecord{Ref: "0x0123456789abcdef0123", Amount: 500, Confirmed: true},
		})).To(Succeed())
		Expect(run.AddFailure(report.Failure{NodeName: "Reservoir", Stage: report.StageFetch, Error: "timeout"})).To(Succeed())
		_, err := run.Finalize(now, report.Options{Denomination: pricing.Denomination{Symbol: "AONA", Decimals: 2}})
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		cliui.RenderRun(&buf, run)
		out := buf.String()
		Expect(out).To(ContainSubstring("River Intake"))
		Expect(out).To(ContainSubstring("Reservoir"))
		Expect(out).To(ContainSubstring("timeout"))
		Expect(out).To(ContainSubstring("Overall water quality"))
		Expect(out).To(ContainSubstring(analysis.Recommend(analysis.MetricPH, analysis.SeverityHigh)))
	})
})

var _ = Describe("RenderProviders", func() {
	It("prints one row per provider", func() {
		denom := pricing.Denomination{Symbol: "AONA", Decimals: 9}
		providers := registry.DemoProviders("0xDemo", pricing.DefaultCurve(), denom, time.Now())

		var buf bytes.Buffer
		cliui.RenderProviders(&buf, registry.Listing{
			Providers: providers,
			Count:     len(providers),
			Network:   "memory",
			Source:    registry.SourceFallback,
		})
		for _, p := range providers {
			Expect(buf.String()).To(ContainSubstring(p.ID))
		}
	})
})
