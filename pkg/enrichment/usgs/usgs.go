// Package usgs fetches instantaneous hydrology values from the USGS water
// services API.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aona-labs/aona/pkg/enrichment"
	"github.com/aona-labs/aona/pkg/utils"
)

const (
	// DefaultBaseURL is the instantaneous values endpoint.
	DefaultBaseURL = "https://waterservices.usgs.gov/nwis/iv/"

	// DefaultSite is the Potomac River near Washington DC.
	DefaultSite = "01646500"

	// DefaultParameters are discharge, gage height and water temperature.
	DefaultParameters = "00060,00065,00010"
)

// Series is the latest value of one parameter.
type Series struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
	Unit      string `json:"unit"`
}

// Report is the enrichment payload.
type Report struct {
	Site string   `json:"site"`
	Data []Series `json:"data"`
}

// Source queries one USGS site.
type Source struct {
	baseURL    string
	site       string
	httpClient *http.Client
}

// Config configures a Source.
type Config struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Site defaults to DefaultSite.
	Site string
}

// NewSource creates a USGS source.
func NewSource(cfg Config) *Source {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	site := cfg.Site
	if site == "" {
		site = DefaultSite
	}
	return &Source{
		baseURL:    base,
		site:       site,
		httpClient: &http.Client{},
	}
}

// Name implements enrichment.Source.
func (s *Source) Name() string {
	return "usgs"
}

type ivResponse struct {
	Value struct {
		TimeSeries []struct {
			Variable struct {
				VariableName string `json:"variableName"`
				Unit         struct {
					UnitCode string `json:"unitCode"`
				} `json:"unit"`
			} `json:"variable"`
			Values []struct {
				Value []struct {
					Value string `json:"value"`
				} `json:"value"`
			} `json:"values"`
		} `json:"timeSeries"`
	} `json:"value"`
}

// Fetch implements enrichment.Source.
func (s *Source) Fetch(ctx context.Context) (any, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", s.site)
	q.Set("parameterCd", DefaultParameters)

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
		return nil, fmt.Errorf("usgs returned status %d: %s", resp.StatusCode, string(body))
	}

	var iv ivResponse
	if err := json.NewDecoder(resp.Body).Decode(&iv); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(iv.Value.TimeSeries) == 0 {
		return nil, enrichment.ErrNoData
	}

	report := Report{Site: s.site, Data: make([]Series, 0, len(iv.Value.TimeSeries))}
	for _, ts := range iv.Value.TimeSeries {
		series := Series{
			Parameter: ts.Variable.VariableName,
			Unit:      ts.Variable.Unit.UnitCode,
		}
		if len(ts.Values) > 0 && len(ts.Values[0].Value) > 0 {
			series.Value = ts.Values[0].Value[0].Value
		}
		report.Data = append(report.Data, series)
	}
	return report, nil
}
