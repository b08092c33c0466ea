package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aona-labs/aona/pkg/gate"
	"github.com/aona-labs/aona/pkg/utils"
)

// ErrProviderNotFound is returned when the gate does not know a provider.
var ErrProviderNotFound = errors.New("provider not found at gate")

// RejectedError is returned when the gate answers a proof with a challenge.
type RejectedError struct {
	Challenge *gate.Challenge
}

func (e *RejectedError) Error() string {
	if e.Challenge == nil {
		return "payment rejected"
	}
	if e.Challenge.Reason != "" {
		return fmt.Sprintf("payment rejected: %s", e.Challenge.Reason)
	}
	return "payment rejected: " + e.Challenge.Error
}

// GateClient fetches a paid reading.
type GateClient interface {
	Fetch(ctx context.Context, providerID, proof string) (*gate.Granted, error)
}

// HTTPGate talks to a gate served over HTTP.
type HTTPGate struct {
	baseURL     string
	proofHeader string
	httpClient  *http.Client
}

// NewHTTPGate creates a client for the gate at baseURL. Requests are bounded
// by the caller's context.
func NewHTTPGate(baseURL, proofHeader string) *HTTPGate {
	if proofHeader == "" {
		proofHeader = gate.DefaultProofHeader
	}
	return &HTTPGate{
		baseURL:     strings.TrimRight(baseURL, "/"),
		proofHeader: proofHeader,
		httpClient:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Fetch implements GateClient.
func (c *HTTPGate) Fetch(ctx context.Context, providerID, proof string) (*gate.Granted, error) {
	endpoint := c.baseURL + "/readings/" + url.PathEscape(providerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())
	if proof != "" {
		req.Header.Set(c.proofHeader, proof)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var granted gate.Granted
		if err := json.NewDecoder(resp.Body).Decode(&granted); err != nil {
			return nil, fmt.Errorf("decoding reading: %w", err)
		}
		return &granted, nil

	case http.StatusPaymentRequired:
		var challenge gate.Challenge
		if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
			return nil, fmt.Errorf("decoding challenge: %w", err)
		}
		return nil, &RejectedError{Challenge: &challenge}

	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gate returned status %d: %s", resp.StatusCode, string(body))
	}
}

// LocalGate calls a gate in the same process.
type LocalGate struct {
	Gate *gate.Gate
}

// Fetch implements GateClient.
func (l LocalGate) Fetch(ctx context.Context, providerID, proof string) (*gate.Granted, error) {
	resp, err := l.Gate.Handle(ctx, providerID, proof)
	if errors.Is(err, gate.ErrNotFound) || errors.Is(err, gate.ErrNoReadings) {
		return nil, fmt.Errorf("%w: %s: %v", ErrProviderNotFound, providerID, err)
	}
	if err != nil {
		return nil, err
	}
	if resp.Status != gate.StatusGranted {
		return nil, &RejectedError{Challenge: resp.Challenge}
	}
	return resp.Granted, nil
}

var (
	_ GateClient = (*HTTPGate)(nil)
	_ GateClient = LocalGate{}
)
