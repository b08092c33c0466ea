package config

const (
	defaultGateListen  = ":8402"
	defaultNetwork     = "memory"
	defaultToken       = "AONA"
	defaultProofHeader = "X-Payment-Signature"

	defaultPriceFloor    = 100_000
	defaultPriceCeiling  = 1_000_000
	defaultPriceDecimals = 9

	defaultPaymentTimeout = "10s"
	defaultCacheSize      = 4096

	defaultLedgerProvider = "memory"

	defaultGateTarget     = "http://localhost:8402"
	defaultMaxProviders   = 5
	defaultPace           = "1s"
	defaultRequestTimeout = "30s"
	defaultConfirmTimeout = "60s"
	defaultPollInterval   = "500ms"
	defaultOutputPath     = "agent-output.json"
	defaultMinBalance     = 10_000_000
	defaultFundAmount     = 100_000_000

	defaultEnrichmentTimeout = "5s"
	defaultUSGSURL           = "https://waterservices.usgs.gov/nwis/iv/"
	defaultUSGSSite          = "01646500"
	defaultMeteoURL          = "https://api.open-meteo.com/v1/forecast"
	defaultLatitude          = 38.9
	defaultLongitude         = -77.0

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "aona.events"

	defaultImpactRate = 0.3
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Gate: GateConfig{
			Listen:      defaultGateListen,
			Network:     defaultNetwork,
			Token:       defaultToken,
			ProofHeader: defaultProofHeader,
		},
		Pricing: PricingConfig{
			Floor:    defaultPriceFloor,
			Ceiling:  defaultPriceCeiling,
			Decimals: defaultPriceDecimals,
		},
		Payment: PaymentConfig{
			Timeout:   defaultPaymentTimeout,
			CacheSize: defaultCacheSize,
		},
		Ledger: LedgerConfig{
			Provider: defaultLedgerProvider,
			Symbol:   defaultToken,
		},
		Agent: AgentConfig{
			GateTarget:     defaultGateTarget,
			MaxProviders:   defaultMaxProviders,
			Pace:           defaultPace,
			RequestTimeout: defaultRequestTimeout,
			ConfirmTimeout: defaultConfirmTimeout,
			PollInterval:   defaultPollInterval,
			MinBalance:     defaultMinBalance,
			FundAmount:     defaultFundAmount,
			OutputPath:     defaultOutputPath,
		},
		Enrichment: EnrichmentConfig{
			Enabled:   true,
			Timeout:   defaultEnrichmentTimeout,
			USGSURL:   defaultUSGSURL,
			USGSSite:  defaultUSGSSite,
			MeteoURL:  defaultMeteoURL,
			Latitude:  defaultLatitude,
			Longitude: defaultLongitude,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Report: ReportConfig{
			ImpactRate: defaultImpactRate,
		},
	}
}
