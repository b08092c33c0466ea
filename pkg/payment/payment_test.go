package payment_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/ledger"
	"github.com/aona-labs/aona/pkg/ledger/inmemory"
	"github.com/aona-labs/aona/pkg/logger"
	"github.com/aona-labs/aona/pkg/payment"
)

type slowReader struct{ ledger.Reader }

func (slowReader) Transaction(ctx context.Context, _ string) (*ledger.Transaction, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenReader struct{ ledger.Reader }

func (brokenReader) Transaction(context.Context, string) (*ledger.Transaction, error) {
	return nil, errors.New("rpc unavailable")
}

var _ = Describe("Verifier", func() {
	const recipient = "0xProvider"

	var (
		ctx  context.Context
		mem  *inmemory.Ledger
		v    *payment.Verifier
		want payment.Expected
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = inmemory.New()
		v = payment.NewVerifier(mem)
		want = payment.Expected{Amount: 500, Recipient: recipient, Token: inmemory.DefaultSymbol}
	})

	record := func(tx ledger.Transaction) string {
		if tx.Token == "" {
			tx.Token = inmemory.DefaultSymbol
		}
		tx.From = "0xAgent"
		return mem.Record(tx)
	}

	It("accepts an exact payment", func() {
		ref := record(ledger.Transaction{To: recipient, Amount: 500, Confirmed: true})

		res := v.Verify(ctx, ref, want)
		Expect(res.Valid).To(BeTrue())
		Expect(res.Reason).To(Equal(payment.ReasonNone))
		Expect(res.Excess).To(BeZero())
		Expect(res.Payer).To(Equal("0xAgent"))
		Expect(res.ConfirmedAt).NotTo(BeZero())
	})

	It("accepts overpayment and reports the excess", func() {
		var buf bytes.Buffer
		v = payment.NewVerifier(mem, payment.WithLogger(logger.NewLoggerWithWriters(false, &buf)))
		ref := record(ledger.Transaction{To: recipient, Amount: 800, Confirmed: true})

		res := v.Verify(ctx, ref, want)
		Expect(res.Valid).To(BeTrue())
		Expect(res.Excess).To(Equal(uint64(300)))
		Expect(buf.String()).To(ContainSubstring("payment exceeds price"))
	})

	It("matches recipients case-insensitively", func() {
		ref := record(ledger.Transaction{To: "0xPROVIDER", Amount: 500, Confirmed: true})
		Expect(v.Verify(ctx, ref, want).Valid).To(BeTrue())
	})

	It("is idempotent", func() {
		ref := record(ledger.Transaction{To: recipient, Amount: 500, Confirmed: true})
		first := v.Verify(ctx, ref, want)
		Expect(v.Verify(ctx, ref, want)).To(Equal(first))
	})

	DescribeTable("fails closed",
		func(tx *ledger.Transaction, expected payment.Reason) {
			ref := "0xmissing"
			if tx != nil {
				ref = record(*tx)
			}
			res := v.Verify(ctx, ref, want)
			Expect(res.Valid).To(BeFalse())
			Expect(res.Reason).To(Equal(expected))
		},
		Entry("unknown reference", nil, payment.ReasonNotFound),
		Entry("unconfirmed", &ledger.Transaction{To: recipient, Amount: 500}, payment.ReasonUnconfirmed),
		Entry("wrong token", &ledger.Transaction{To: recipient, Amount: 500, Token: "USDC", Confirmed: true}, payment.ReasonTokenMismatch),
		Entry("wrong recipient", &ledger.Transaction{To: "0xSomeoneElse", Amount: 500, Confirmed: true}, payment.ReasonRecipientMismatch),
		Entry("underpaid", &ledger.Transaction{To: recipient, Amount: 499, Confirmed: true}, payment.ReasonAmountTooLow),
	)

	It("checks confirmation before recipient and amount", func() {
		ref := record(ledger.Transaction{To: "0xElse", Amount: 1})
		Expect(v.Verify(ctx, ref, want).Reason).To(Equal(payment.ReasonUnconfirmed))
	})

	It("accepts any token when none is expected", func() {
		ref := record(ledger.Transaction{To: recipient, Amount: 500, Token: "USDC", Confirmed: true})
		want.Token = ""
		Expect(v.Verify(ctx, ref, want).Valid).To(BeTrue())
	})

	It("treats an empty reference as not found", func() {
		Expect(v.Verify(ctx, "  ", want).Reason).To(Equal(payment.ReasonNotFound))
	})

	It("maps a lookup timeout to not found", func() {
		v = payment.NewVerifier(slowReader{}, payment.WithTimeout(10*time.Millisecond))
		Expect(v.Verify(ctx, "0xabc", want).Reason).To(Equal(payment.ReasonNotFound))
	})

	It("maps ledger errors to not found", func() {
		v = payment.NewVerifier(brokenReader{})
		Expect(v.Verify(ctx, "0xabc", want).Reason).To(Equal(payment.ReasonNotFound))
	})
})
