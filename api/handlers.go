package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/gate"
	"github.com/aona-labs/aona/pkg/payment"
	"github.com/aona-labs/aona/pkg/storage"
)

// Challenge headers mirror the price terms for clients that do not parse
// the body.
const (
	HeaderPrice     = "X-Payment-Price"
	HeaderRecipient = "X-Payment-Recipient"
	HeaderToken     = "X-Payment-Token"
	HeaderNetwork   = "X-Payment-Network"
)

// ErrorResponse is the body of every non-gate error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// VerifyRequest is the body of POST /payments/verify.
type VerifyRequest struct {
	Signature      string `json:"signature"`
	ExpectedAmount uint64 `json:"expectedAmount"`
	Recipient      string `json:"recipient"`
	Token          string `json:"token,omitempty"`
}

// VerifyResponse reports the verifier's verdict.
type VerifyResponse struct {
	Verified bool           `json:"verified"`
	Payment  payment.Result `json:"payment"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleProviders lists the catalog. It never fails: when the catalog is
// unusable the fallback list is served instead.
func (s *Server) handleProviders(c *fiber.Ctx) error {
	listing := s.catalog.Listing(c.UserContext(), s.config.Network, s.config.Fallback)
	s.metrics.listings.WithLabelValues(listing.Source).Inc()
	return c.JSON(listing)
}

func (s *Server) handleReading(c *fiber.Ctx) error {
	id := c.Params("id")
	// The proof can outlive the request as a cache key.
	proof := utils.CopyString(c.Get(s.gate.ProofHeader()))

	resp, err := s.gate.Handle(c.UserContext(), id, proof)
	switch {
	case errors.Is(err, gate.ErrNotFound):
		s.metrics.gateResponses.WithLabelValues("not_found").Inc()
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "Node not found", Message: id})
	case errors.Is(err, gate.ErrNoReadings):
		s.metrics.gateResponses.WithLabelValues("not_found").Inc()
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "No readings available", Message: id})
	case err != nil:
		s.logger.Error("gate failed", zap.String("node", id), zap.Error(err))
		s.metrics.gateResponses.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load node"})
	}

	s.metrics.gateResponses.WithLabelValues(resp.Status.String()).Inc()
	if resp.Status == gate.StatusGranted {
		return c.JSON(resp.Granted)
	}

	ch := resp.Challenge
	c.Set(HeaderPrice, strconv.FormatUint(ch.Price.Minimal, 10))
	c.Set(HeaderRecipient, ch.Recipient)
	c.Set(HeaderToken, ch.Token)
	c.Set(HeaderNetwork, ch.Network)
	return c.Status(fiber.StatusPaymentRequired).JSON(ch)
}

func (s *Server) handleVerify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Signature == "" || req.ExpectedAmount == 0 || req.Recipient == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "Missing required fields",
			Message: "signature, expectedAmount and recipient are required",
		})
	}

	token := req.Token
	if token == "" {
		token = s.config.Token
	}

	res := s.verifier.Verify(c.UserContext(), req.Signature, payment.Expected{
		Amount:    req.ExpectedAmount,
		Recipient: req.Recipient,
		Token:     token,
	})

	reason := string(res.Reason)
	if res.Valid {
		reason = "valid"
	}
	s.metrics.verifications.WithLabelValues(reason).Inc()

	return c.JSON(VerifyResponse{Verified: res.Valid, Payment: res})
}

func (s *Server) handleLatestRun(c *fiber.Ctx) error {
	if s.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "run history not configured"})
	}

	run, err := s.runs.LatestRun(c.UserContext())
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no runs recorded"})
	}
	if err != nil {
		s.logger.Error("loading latest run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load run"})
	}
	return c.JSON(run)
}

func (s *Server) handleGetRun(c *fiber.Ctx) error {
	if s.runs == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "run history not configured"})
	}

	id := c.Params("id")
	run, err := s.runs.GetRun(c.UserContext(), id)
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "run not found", Message: id})
	}
	if err != nil {
		s.logger.Error("loading run", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load run"})
	}
	return c.JSON(run)
}
