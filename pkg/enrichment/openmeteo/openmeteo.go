// Package openmeteo fetches current weather from the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aona-labs/aona/pkg/enrichment"
	"github.com/aona-labs/aona/pkg/utils"
)

const (
	// DefaultBaseURL is the forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	DefaultLatitude  = 38.9
	DefaultLongitude = -77.0
)

// Units of Weather values.
type Units struct {
	Temperature   string `json:"temperature"`
	Precipitation string `json:"precipitation"`
}

// Weather is the enrichment payload.
type Weather struct {
	Temperature   float64 `json:"temperature"`
	Precipitation float64 `json:"precipitation"`
	Units         Units   `json:"units"`
}

// Config configures a Source.
type Config struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
}

// Source queries current conditions at one coordinate.
type Source struct {
	baseURL    string
	lat, lon   float64
	httpClient *http.Client
}

// NewSource creates an Open-Meteo source. A zero coordinate pair uses the
// defaults.
func NewSource(cfg Config) *Source {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	lat, lon := cfg.Latitude, cfg.Longitude
	if lat == 0 && lon == 0 {
		lat, lon = DefaultLatitude, DefaultLongitude
	}
	return &Source{
		baseURL:    base,
		lat:        lat,
		lon:        lon,
		httpClient: &http.Client{},
	}
}

// Name implements enrichment.Source.
func (s *Source) Name() string {
	return "weather"
}

type forecastResponse struct {
	Current *struct {
		Temperature   float64 `json:"temperature_2m"`
		Precipitation float64 `json:"precipitation"`
	} `json:"current"`
	CurrentUnits struct {
		Temperature   string `json:"temperature_2m"`
		Precipitation string `json:"precipitation"`
	} `json:"current_units"`
}

// Fetch implements enrichment.Source.
func (s *Source) Fetch(ctx context.Context) (any, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(s.lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(s.lon, 'f', -1, 64))
	q.Set("current", "temperature_2m,precipitation")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", utils.UserAgent())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("open-meteo returned status %d: %s", resp.StatusCode, string(body))
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if fr.Current == nil {
		return nil, enrichment.ErrNoData
	}

	units := Units{Temperature: "°C", Precipitation: "mm"}
	if fr.CurrentUnits.Temperature != "" {
		units.Temperature = fr.CurrentUnits.Temperature
	}
	if fr.CurrentUnits.Precipitation != "" {
		units.Precipitation = fr.CurrentUnits.Precipitation
	}

	return Weather{
		Temperature:   fr.Current.Temperature,
		Precipitation: fr.Current.Precipitation,
		Units:         units,
	}, nil
}
