package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aona-labs/aona/pkg/agent"
	"github.com/aona-labs/aona/pkg/gate"
	"github.com/aona-labs/aona/pkg/payment"
	"github.com/aona-labs/aona/pkg/reading"
	"github.com/aona-labs/aona/pkg/utils"
)

var _ = Describe("HTTPGate", func() {
	var (
		server  *httptest.Server
		client  *agent.HTTPGate
		seen    string
		agentUA string
	)

	BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/readings/", func(w http.ResponseWriter, r *http.Request) {
			seen = r.Header.Get(gate.DefaultProofHeader)
			agentUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Path {
			case "/readings/ok":
				_ = json.NewEncoder(w).Encode(gate.Granted{
					NodeID:  "ok",
					Reading: reading.Reading{PH: reading.Value(7.1)},
				})
			case "/readings/paywalled":
				w.WriteHeader(http.StatusPaymentRequired)
				_ = json.NewEncoder(w).Encode(gate.Challenge{Error: "Payment verification failed", Reason: payment.ReasonAmountTooLow})
			case "/readings/broken":
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("boom"))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		})
		server = httptest.NewServer(mux)
		client = agent.NewHTTPGate(server.URL+"/", "")
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns the granted reading and sends the proof", func() {
		granted, err := client.Fetch(context.Background(), "ok", "0xabc")
		Expect(err).NotTo(HaveOccurred())
		Expect(granted.NodeID).To(Equal("ok"))
		Expect(*granted.Reading.PH).To(Equal(7.1))
		Expect(seen).To(Equal("0xabc"))
		Expect(agentUA).To(Equal(utils.UserAgent()))
	})

	It("surfaces a challenge as a rejection", func() {
		_, err := client.Fetch(context.Background(), "paywalled", "0xabc")
		var rejected *agent.RejectedError
		Expect(errors.As(err, &rejected)).To(BeTrue())
		Expect(rejected.Challenge.Reason).To(Equal(payment.ReasonAmountTooLow))
		Expect(err.Error()).To(ContainSubstring("amount_too_low"))
	})

	It("maps 404 to ErrProviderNotFound", func() {
		_, err := client.Fetch(context.Background(), "missing", "")
		Expect(err).To(MatchError(agent.ErrProviderNotFound))
	})

	It("reports unexpected statuses", func() {
		_, err := client.Fetch(context.Background(), "broken", "0xabc")
		Expect(err).To(MatchError(ContainSubstring("status 500")))
	})
})
