// Package storagetest holds behavior every storage.Driver must satisfy.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/report"
	"github.com/aona-labs/aona/pkg/storage"
)

// DriverBehaviors registers specs against the driver returned by newDriver.
// It must be called inside a container node.
func DriverBehaviors(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	Describe("nodes", func() {
		It("stores and lists nodes", func() {
			Expect(driver.PutNode(ctx, &storage.Node{ID: "n1", Name: "One", Recipient: "0xA"})).To(Succeed())
			Expect(driver.PutNode(ctx, &storage.Node{ID: "n2", Name: "Two", Recipient: "0xB"})).To(Succeed())

			n, err := driver.GetNode(ctx, "n1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Name).To(Equal("One"))
			Expect(n.TotalReadings).To(BeZero())

			nodes, err := driver.ListNodes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(2))
		})

		It("updates metadata without touching the reading count", func() {
			Expect(driver.PutNode(ctx, &storage.Node{ID: "n1", Name: "One", Recipient: "0xA"})).To(Succeed())
			_, err := driver.AppendReading(ctx, "n1", reading.Reading{PH: reading.Value(7)})
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.PutNode(ctx, &storage.Node{ID: "n1", Name: "Renamed", Recipient: "0xC", TotalReadings: 99})).To(Succeed())
			n, err := driver.GetNode(ctx, "n1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n.Name).To(Equal("Renamed"))
			Expect(n.Recipient).To(Equal("0xC"))
			Expect(n.TotalReadings).To(Equal(uint64(1)))
		})

		It("returns NotFoundError for unknown nodes", func() {
			_, err := driver.GetNode(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("readings", func() {
		BeforeEach(func() {
			Expect(driver.PutNode(ctx, &storage.Node{ID: "n1", Name: "One", Recipient: "0xA"})).To(Succeed())
		})

		It("assigns increasing sequence numbers and keeps nulls", func() {
			ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			first, err := driver.AppendReading(ctx, "n1", reading.Reading{Timestamp: ts, PH: reading.Value(7.1)})
			Expect(err).NotTo(HaveOccurred())
			second, err := driver.AppendReading(ctx, "n1", reading.Reading{Timestamp: ts.Add(time.Minute), Turbidity: reading.Value(0.4)})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Sequence).To(Equal(first.Sequence + 1))

			latest, err := driver.LatestReading(ctx, "n1")
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.Sequence).To(Equal(second.Sequence))
			Expect(latest.PH).To(BeNil())
			Expect(*latest.Turbidity).To(Equal(0.4))
			Expect(latest.Timestamp.Equal(ts.Add(time.Minute))).To(BeTrue())

			n, _ := driver.GetNode(ctx, "n1")
			Expect(n.TotalReadings).To(Equal(uint64(2)))
		})

		It("reports a node without readings as not found", func() {
			_, err := driver.LatestReading(ctx, "n1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("refuses readings for unknown nodes", func() {
			_, err := driver.AppendReading(ctx, "ghost", reading.Reading{})
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("runs", func() {
		It("returns the latest run", func() {
			older := report.NewRun("0xAgent", time.Now().Add(-time.Hour))
			newer := report.NewRun("0xAgent", time.Now())
			_, err := newer.Finalize(time.Now(), report.Options{})
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.SaveRun(ctx, older)).To(Succeed())
			Expect(driver.SaveRun(ctx, newer)).To(Succeed())

			latest, err := driver.LatestRun(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).To(Equal(newer.ID))
			Expect(latest.Summary).NotTo(BeNil())

			got, err := driver.GetRun(ctx, older.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Agent).To(Equal("0xAgent"))

			runs, err := driver.ListRuns(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(2))
		})

		It("reports an empty store as not found", func() {
			_, err := driver.LatestRun(ctx)
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = driver.GetRun(ctx, "nope")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})
}
