// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoding is a rate limited client for the Google Maps Geocoding API,
// plus the helpers that turn its address components into barrio and comuna
// candidates.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcodagnone/barrios/spatial"
	"github.com/jcodagnone/barrios/utils/httputils"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Google Maps Geocoding endpoint.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

const (
	defaultLanguage = "es"
	defaultRegion   = "co"
	defaultMinDelay = 100 * time.Millisecond
	defaultTimeout  = 10 * time.Second
)

// Options configures a Client. Zero values take the defaults.
type Options struct {
	APIKey    string
	BaseURL   string
	Language  string
	Region    string
	UserAgent string
	// MinDelay is the minimum time between the start of two requests.
	MinDelay time.Duration
	Timeout  time.Duration
	// Trace, when set, receives a dump of every HTTP exchange.
	Trace io.Writer
}

// GeocodingResult is the answer of a forward query.
type GeocodingResult struct {
	Point       spatial.Point
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Client talks to the geocoding service. At most one request is in flight at
// any time, shared by all the goroutines using the same Client.
type Client struct {
	opts       Options
	httpClient *http.Client

	mu       sync.Mutex
	limiter  *rate.Limiter
	requests atomic.Int64
	failures atomic.Int64
}

// NewClient creates a new client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.Language == "" {
		opts.Language = defaultLanguage
	}

	if opts.Region == "" {
		opts.Region = defaultRegion
	}

	if opts.MinDelay == 0 {
		opts.MinDelay = defaultMinDelay
	}

	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if opts.MinDelay > 0 {
		limit = rate.Every(opts.MinDelay)
	}

	var transport http.RoundTripper = http.DefaultTransport
	if opts.UserAgent != "" {
		transport = &httputils.AppendRequestHeadersRoundTripper{
			Transport: transport,
			Headers:   map[string]string{"User-Agent": opts.UserAgent},
		}
	}

	if opts.Trace != nil {
		transport = &httputils.LoggingRoundTripper{
			Transport:   transport,
			Writer:      opts.Trace,
			DumpBody:    true,
			RedactQuery: []string{"key"},
		}
	}

	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Requests returns the number of requests sent so far.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// Failures returns the number of requests that ended in an error other than
// an empty answer.
func (c *Client) Failures() int64 {
	return c.failures.Load()
}

type googleMapsResponse struct {
	Results []struct {
		AddressComponents []AddressComponent `json:"address_components"`
		Geometry          struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

// ReverseGeocode returns the address components of every result for p,
// flattened in answer order.
func (c *Client) ReverseGeocode(ctx context.Context, p spatial.Point) ([]AddressComponent, error) {
	params := url.Values{}
	params.Set("latlng", strconv.FormatFloat(p.Lat, 'f', -1, 64)+","+strconv.FormatFloat(p.Lng, 'f', -1, 64))

	resp, err := c.do(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("reverse geocoding %v: %w", p, err)
	}

	var components []AddressComponent
	for _, result := range resp.Results {
		components = append(components, result.AddressComponents...)
	}

	return components, nil
}

// ForwardGeocode resolves a free text address to the coordinates of the first result.
func (c *Client) ForwardGeocode(ctx context.Context, address string) (*GeocodingResult, error) {
	params := url.Values{}
	params.Set("address", address)

	resp, err := c.do(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", address, err)
	}

	result := resp.Results[0]

	confidence := "low"

	switch result.Geometry.LocationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		confidence = "high"
	case "GEOMETRIC_CENTER":
		confidence = "medium"
	}

	return &GeocodingResult{
		Point: spatial.Point{
			Lat: result.Geometry.Location.Lat,
			Lng: result.Geometry.Location.Lng,
		},
		Confidence:  confidence,
		Provider:    "google_maps",
		DisplayName: result.FormattedAddress,
	}, nil
}

// do sends one request through the gate. An OK answer always carries at
// least one result.
func (c *Client) do(ctx context.Context, params url.Values) (*googleMapsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeTimeout, Message: "waiting for the rate limiter", Err: err}
	}

	c.requests.Add(1)

	resp, err := c.send(ctx, params)
	if err != nil && !IsNotFoundError(err) {
		c.failures.Add(1)
	}

	c.rest(time.Now())

	return resp, err
}

// rest empties the limiter at end, so the next request starts MinDelay after
// this one finished rather than after it started. Callers hold c.mu.
func (c *Client) rest(end time.Time) {
	c.limiter = rate.NewLimiter(c.limiter.Limit(), 1)
	c.limiter.AllowN(end, 1)
}

func (c *Client) send(ctx context.Context, params url.Values) (*googleMapsResponse, error) {
	params.Set("key", c.opts.APIKey)
	params.Set("language", c.opts.Language)
	params.Set("region", c.opts.Region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errType := ErrorTypeNetworkError

		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			errType = ErrorTypeTimeout
		}

		return nil, &GeocodingError{Type: errType, Message: "request failed", Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return nil, ClassifyHTTPError(resp.StatusCode, string(body))
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, &GeocodingError{Type: ErrorTypeMalformedResponse, Message: "decoding response", Err: err}
	}

	if geoErr := ClassifyStatus(gmResp.Status, gmResp.ErrorMessage); geoErr != nil {
		return nil, geoErr
	}

	if len(gmResp.Results) == 0 {
		return nil, &GeocodingError{Type: ErrorTypeNotFound, Message: "no results"}
	}

	return &gmResp, nil
}
