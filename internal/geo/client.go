// Package geo resolves a client address to a coarse location through an HTTP JSON
// lookup service.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/cbc-agent/analytics-ingest/models"
)

var (
	// ErrLookupFailed is returned when the service cannot be reached or answers badly
	ErrLookupFailed = errors.New("geo lookup failed")

	// ErrInvalidAddress is returned for input that is not an IP address
	ErrInvalidAddress = errors.New("geo lookup requires an IP address")
)

const maxResponseBytes = 64 << 10

// Client looks up GET {baseURL}/{ip}. Each call is bounded by the client timeout and
// the caller's context, whichever ends first. Nothing is cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a lookup client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// lookupResponse accepts the field names of the common lookup services
type lookupResponse struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Region      string `json:"region"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
}

// Lookup returns the country, region and city for ip. Coordinates and any other
// fields of the response are discarded. An empty location is not an error.
func (c *Client) Lookup(ctx context.Context, ip string) (*models.GeoInfo, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, ErrInvalidAddress
	}

	endpoint := c.baseURL + "/" + url.PathEscape(addr.WithZone("").String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrLookupFailed, resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrLookupFailed, err)
	}

	return &models.GeoInfo{
		Country: firstNonEmpty(body.CountryCode, body.Country, body.CountryName),
		Region:  firstNonEmpty(body.RegionName, body.Region),
		City:    body.City,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
