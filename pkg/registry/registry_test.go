package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/pricing"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/reputation"
	"github.com/aona-labs/aona/pkg/storage"
	"github.com/aona-labs/aona/pkg/storage/inmemory"
)

type failingStore struct{ storage.NodeStore }

func (failingStore) ListNodes(context.Context) ([]*storage.Node, error) {
	return nil, errors.New("disk on fire")
}

var _ = Describe("Catalog", func() {
	var (
		ctx     context.Context
		store   *inmemory.Driver
		catalog *registry.Catalog
		denom   = pricing.Denomination{Symbol: "AONA", Decimals: 9}
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		catalog = registry.NewCatalog(store, pricing.DefaultCurve(), denom, zap.NewNop())
	})

	addNode := func(id string, readings int) {
		Expect(store.PutNode(ctx, &storage.Node{ID: id, Name: id, Recipient: "0x" + id})).To(Succeed())
		for range readings {
			_, err := store.AppendReading(ctx, id, reading.Reading{PH: reading.Value(7)})
			Expect(err).NotTo(HaveOccurred())
		}
	}

	It("prices nodes by reputation and sorts highest first", func() {
		addNode("fresh", 0)
		addNode("veteran", 60)
		addNode("regular", 20)

		providers, err := catalog.Providers(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(HaveLen(3))
		Expect(providers[0].ID).To(Equal("veteran"))
		Expect(providers[0].Reputation.Tier).To(Equal(reputation.TierGold))
		Expect(providers[2].ID).To(Equal("fresh"))
		Expect(providers[2].Price.Minimal).To(Equal(pricing.DefaultFloor))
		Expect(providers[2].LastReading).To(BeNil())
		Expect(providers[0].LastReading.Sequence).To(Equal(uint64(60)))
	})

	It("serves the catalog when it has nodes", func() {
		addNode("n1", 1)
		listing := catalog.Listing(ctx, "testnet", nil)
		Expect(listing.Source).To(Equal(registry.SourceCatalog))
		Expect(listing.Count).To(Equal(1))
		Expect(listing.Network).To(Equal("testnet"))
	})

	It("falls back when the catalog is empty", func() {
		demo := registry.DemoProviders("0xDemo", pricing.DefaultCurve(), denom, time.Now())
		listing := catalog.Listing(ctx, "testnet", demo)
		Expect(listing.Source).To(Equal(registry.SourceFallback))
		Expect(listing.Count).To(Equal(3))
		Expect(listing.Message).NotTo(BeEmpty())
	})

	It("falls back when the catalog fails", func() {
		catalog = registry.NewCatalog(failingStore{store}, pricing.DefaultCurve(), denom, zap.NewNop())
		listing := catalog.Listing(ctx, "testnet", nil)
		Expect(listing.Source).To(Equal(registry.SourceFallback))
		Expect(listing.Error).To(ContainSubstring("disk on fire"))
	})
})

var _ = Describe("DemoProviders", func() {
	It("prices the demo nodes at the ceiling", func() {
		providers := registry.DemoProviders("0xDemo", pricing.DefaultCurve(), pricing.Denomination{Decimals: 9}, time.Now())
		Expect(providers).To(HaveLen(3))
		for _, p := range providers {
			Expect(p.Reputation.Tier).To(Equal(reputation.TierPlatinum))
			Expect(p.Price.Minimal).To(Equal(pricing.DefaultCeiling))
			Expect(p.Recipient).To(Equal("0xDemo"))
			Expect(p.LastReading).NotTo(BeNil())
		}
	})

	It("builds a history ending at the demo reading time", func() {
		now := time.Now()
		d := registry.DemoNodes("0xDemo")[0]
		history := registry.DemoHistory(d, 5, time.Minute, now)
		Expect(history).To(HaveLen(5))
		Expect(history[4].Timestamp).To(BeTemporally("~", now.Add(-d.Age), time.Second))
		Expect(history[0].Timestamp).To(BeTemporally("<", history[4].Timestamp))
	})
})

var _ = Describe("Client", func() {
	It("decodes the discovery listing", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/providers"))
			_ = json.NewEncoder(w).Encode(registry.Listing{
				Providers: []registry.Provider{{ID: "n1", Recipient: "0xA"}},
				Count:     1,
				Source:    registry.SourceCatalog,
			})
		}))
		DeferCleanup(srv.Close)

		providers, err := registry.NewClient(srv.URL+"/", time.Second).Providers(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(providers).To(HaveLen(1))
		Expect(providers[0].ID).To(Equal("n1"))
	})

	It("reports non-200 responses as unavailable", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		DeferCleanup(srv.Close)

		_, err := registry.NewClient(srv.URL, time.Second).Providers(context.Background())
		Expect(err).To(MatchError(registry.ErrUnavailable))
	})
})

var _ = Describe("SeedDemo", func() {
	It("registers the demo nodes with capped history", func() {
		ctx := context.Background()
		store := inmemory.NewDriver()

		n, err := registry.SeedDemo(ctx, store, "", 4, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(12))

		nodes, err := store.ListNodes(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(3))
		for _, node := range nodes {
			Expect(node.TotalReadings).To(Equal(uint64(4)))
			Expect(node.Recipient).To(Equal(registry.DemoRecipient))
		}

		latest, err := store.LatestReading(ctx, "node-0001")
		Expect(err).NotTo(HaveOccurred())
		Expect(latest.Sequence).To(Equal(uint64(4)))
	})

	It("matches the demo listing reputation when history is uncapped", func() {
		ctx := context.Background()
		store := inmemory.NewDriver()
		denom := pricing.Denomination{Symbol: "AONA", Decimals: 9}

		_, err := registry.SeedDemo(ctx, store, "0xSeller", 0, time.Now())
		Expect(err).NotTo(HaveOccurred())

		seeded, err := registry.NewCatalog(store, pricing.DefaultCurve(), denom, zap.NewNop()).Providers(ctx)
		Expect(err).NotTo(HaveOccurred())
		demo := registry.DemoProviders("0xSeller", pricing.DefaultCurve(), denom, time.Now())
		Expect(seeded).To(HaveLen(len(demo)))
		for i := range demo {
			Expect(seeded[i].ID).To(Equal(demo[i].ID))
			Expect(seeded[i].Price).To(Equal(demo[i].Price))
		}
	})
})
