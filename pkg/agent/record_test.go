package agent

import (
	"bytes"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/logger"
	"github.com/aona-labs/aona/pkg/report"
)

var _ = Describe("record", func() {
	It("logs updates a finalized run refuses", func() {
		var buf bytes.Buffer
		log := logger.NewLoggerWithWriters(false, &buf)

		run := report.NewRun("0xAgent", time.Now().UTC())
		_, err := run.Finalize(time.Now().UTC(), report.Options{})
		Expect(err).NotTo(HaveOccurred())

		record(log, "outcome", run.AddOutcome(report.Outcome{NodeID: "node-1"}))

		Expect(buf.String()).To(ContainSubstring("could not record outcome"))
		Expect(buf.String()).To(ContainSubstring(report.ErrFinalized.Error()))
		Expect(run.Outcomes).To(BeEmpty())
	})

	It("stays quiet when the update is applied", func() {
		var buf bytes.Buffer
		log := logger.NewLoggerWithWriters(false, &buf)

		run := report.NewRun("0xAgent", time.Now().UTC())
		record(log, "failure", run.AddFailure(report.Failure{NodeID: "node-1", Stage: report.StageFetch}))

		Expect(buf.String()).To(BeEmpty())
		Expect(run.Failures).To(HaveLen(1))
	})
})
