// Package api serves the payment-gated reading endpoints, provider
// discovery and agent run history over HTTP.
package api

import "github.com/aona-labs/aona/pkg/registry"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8402")
	ListenAddr string

	// Network is reported in discovery listings and challenges.
	Network string

	// Token is assumed by the verify helper when the request names none.
	Token string

	// Fallback is listed by /providers when the catalog is empty or failing.
	Fallback []registry.Provider
}
