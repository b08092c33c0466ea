package report_test

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/analysis"
	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/report"
)

func outcome(id string, r reading.Reading) report.Outcome {
	res := analysis.Analyze(r)
	return report.Outcome{
		NodeID:   id,
		NodeName: id,
		Reading:  r,
		Analysis: res,
		Alerts:   report.AlertsFor(id, id, res, time.Now()),
	}
}

var _ = Describe("Rollup", func() {
	DescribeTable("applies the strict majority rule",
		func(in []analysis.Quality, want analysis.Quality) {
			Expect(report.Rollup(in)).To(Equal(want))
		},
		Entry("empty", []analysis.Quality{}, analysis.QualityGood),
		Entry("poor majority", []analysis.Quality{"poor", "poor", "good"}, analysis.QualityPoor),
		Entry("exact half poor is not poor", []analysis.Quality{"poor", "good"}, analysis.QualityGood),
		Entry("poor and fair together", []analysis.Quality{"poor", "fair", "good"}, analysis.QualityFair),
		Entry("all good", []analysis.Quality{"good", "good"}, analysis.QualityGood),
	)
})

var _ = Describe("Summarize", func() {
	denom := pricing.Denomination{Symbol: "AONA", Decimals: 9}

	It("tolerates empty input", func() {
		s := report.Summarize(nil, nil, nil, report.Options{Denomination: denom})
		Expect(s.TotalNodes).To(BeZero())
		Expect(s.TotalSpent).To(BeZero())
		Expect(s.AlertsGenerated).To(BeZero())
		Expect(s.OverallWaterQuality).To(Equal(analysis.QualityGood))
		Expect(s.Impact.Rate).To(Equal(report.DefaultImpactRate))
	})

	It("counts alerts, spend and impact", func() {
		outcomes := []report.Outcome{
			outcome("a", reading.Reading{PH: reading.Value(5.0), Turbidity: reading.Value(2)}),
			outcome("b", reading.Reading{PH: reading.Value(9.0), Temperature: reading.Value(31)}),
			outcome("c", reading.Reading{PH: reading.Value(7.0)}),
		}
		payments := []report.PaymentRecord{
			{NodeID: "a", Amount: 1_000_000, Confirmed: true},
			{NodeID: "b", Amount: 500_000, Confirmed: true},
			{NodeID: "c", Amount: 100_000, Confirmed: true},
			{NodeID: "d", Amount: 900_000},
		}
		failures := []report.Failure{{NodeID: "d", Stage: report.StageConfirmation}}

		s := report.Summarize(outcomes, payments, failures, report.Options{Denomination: denom, ImpactRate: 0.5})
		Expect(s.TotalNodes).To(Equal(3))
		Expect(s.TotalSpent).To(Equal(uint64(1_600_000)))
		Expect(s.TotalSpentDisplay).To(BeNumerically("~", 0.0016, 1e-12))
		Expect(s.AlertsGenerated).To(Equal(4))
		Expect(s.AlertsBySeverity).To(Equal(report.SeverityCounts{High: 3, Medium: 1}))
		Expect(s.OverallWaterQuality).To(Equal(analysis.QualityPoor))
		Expect(s.FailedNodes).To(Equal(1))
		Expect(s.Impact.CrisesAvoided).To(Equal(2))
	})
})

var _ = Describe("Run", func() {
	It("accumulates and finalizes once", func() {
		run := report.NewRun("0xAgent", time.Now())
		Expect(run.AddPayment(report.PaymentRecord{Amount: 10, Confirmed: true})).To(Succeed())
		Expect(run.AddOutcome(outcome("a", reading.Reading{PH: reading.Value(4)}))).To(Succeed())
		Expect(run.AddFailure(report.Failure{NodeID: "b"})).To(Succeed())

		s, err := run.Finalize(time.Now(), report.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TotalNodes).To(Equal(1))
		Expect(run.NodesConsulted).To(Equal(1))
		Expect(run.TotalSpent).To(Equal(uint64(10)))
		Expect(run.AlertsGenerated).To(Equal(1))

		_, err = run.Finalize(time.Now(), report.Options{})
		Expect(err).To(MatchError(report.ErrFinalized))
		Expect(run.AddOutcome(report.Outcome{})).To(MatchError(report.ErrFinalized))
	})

	It("round-trips through a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "out", "run.json")
		run := report.NewRun("0xAgent", time.Now())
		_, err := run.Finalize(time.Now(), report.Options{})
		Expect(err).NotTo(HaveOccurred())

		Expect(report.WriteFile(path, run)).To(Succeed())
		loaded, err := report.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.ID).To(Equal(run.ID))
		Expect(loaded.Summary.OverallWaterQuality).To(Equal(analysis.QualityGood))
		Expect(loaded.Outcomes).To(BeEmpty())
	})
})
