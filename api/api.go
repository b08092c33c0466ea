package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aona-labs/aona/pkg/gate"
	"github.com/aona-labs/aona/pkg/payment"
	"github.com/aona-labs/aona/pkg/registry"
	"github.com/aona-labs/aona/pkg/storage"
)

// Server is the HTTP front of a gate.
type Server struct {
	config   Config
	gate     *gate.Gate
	catalog  *registry.Catalog
	verifier *payment.Verifier
	runs     storage.RunStore
	metrics  *metrics
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. runs may be nil, in which case the
// run history endpoints answer 503.
func NewServer(
	config Config,
	g *gate.Gate,
	catalog *registry.Catalog,
	verifier *payment.Verifier,
	runs storage.RunStore,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	reg := prometheus.NewRegistry()
	s := &Server{
		config:   config,
		gate:     g,
		catalog:  catalog,
		verifier: verifier,
		runs:     runs,
		metrics:  newMetrics(reg),
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/providers", s.handleProviders)
	app.Get("/readings/:id", s.handleReading)
	app.Post("/payments/verify", s.handleVerify)
	app.Get("/runs/latest", s.handleLatestRun)
	app.Get("/runs/:id", s.handleGetRun)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
		zap.String("network", s.config.Network),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
