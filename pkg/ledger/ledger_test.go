package ledger_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/ledger"
	"github.com/aona-labs/aona/pkg/ledger/inmemory"
)

var _ = Describe("SameAddress", func() {
	It("ignores case and surrounding space", func() {
		Expect(ledger.SameAddress("0xAbC", " 0xabc ")).To(BeTrue())
	})

	It("never matches empty addresses", func() {
		Expect(ledger.SameAddress("", "")).To(BeFalse())
	})

	It("distinguishes different addresses", func() {
		Expect(ledger.SameAddress("0xabc", "0xabd")).To(BeFalse())
	})
})

var _ = Describe("WaitConfirmed", func() {
	var (
		ctx context.Context
		l   *inmemory.Ledger
	)

	BeforeEach(func() {
		ctx = context.Background()
		l = inmemory.New(inmemory.WithManualConfirm())
	})

	It("returns once the transfer confirms", func() {
		ref := l.Record(ledger.Transaction{From: "a", To: "b", Amount: 1})
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = l.Confirm(ref)
		}()

		tx, err := ledger.WaitConfirmed(ctx, l, ref, 5*time.Millisecond)
		Expect(err).NotTo(HaveOccurred())
		Expect(tx.Confirmed).To(BeTrue())
	})

	It("gives up when the context ends", func() {
		ref := l.Record(ledger.Transaction{From: "a", To: "b", Amount: 1})

		ctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()

		_, err := ledger.WaitConfirmed(ctx, l, ref, 5*time.Millisecond)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})
