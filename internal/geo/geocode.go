package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Location is a coordinate reading plus the optional human address snapshot
// captured for it. Address may be empty when reverse geocoding failed or was
// skipped; the engine treats it as decoration, never as an input.
type Location struct {
	Point
	Address string `json:"address,omitempty"`
}

// ReverseGeocoder resolves a coordinate to a short human-readable address.
// The engine treats the implementation as a black box; failures degrade to
// an empty address, they never fail the calling operation.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, p Point) (string, error)
}

// NominatimClient reverse-geocodes against a Nominatim-compatible endpoint.
type NominatimClient struct {
	// BaseURL is the service root, e.g. "https://nominatim.openstreetmap.org".
	BaseURL string

	// Client is the HTTP client to use. Nil means a client with a 10s timeout.
	Client *http.Client
}

// Reverse calls the /reverse endpoint and shortens display_name to its first
// two comma-separated components ("Main Hall, University Park" rather than
// the full administrative chain).
func (c *NominatimClient) Reverse(ctx context.Context, p Point) (string, error) {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	u := fmt.Sprintf("%s/reverse?format=json&lat=%s&lon=%s",
		strings.TrimRight(c.BaseURL, "/"),
		url.QueryEscape(fmt.Sprintf("%g", p.Latitude)),
		url.QueryEscape(fmt.Sprintf("%g", p.Longitude)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("reverse geocode: decode response: %w", err)
	}
	if body.DisplayName == "" {
		return "", nil
	}

	return ShortAddress(body.DisplayName), nil
}

// ShortAddress keeps the first two comma-separated components of a full
// display name.
func ShortAddress(displayName string) string {
	parts := strings.Split(displayName, ", ")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ", ")
}

// Static returns a fixed address for every point. Used in tests and when
// running without network access.
type Static struct {
	Addr string
}

// Reverse returns the configured address.
func (s Static) Reverse(_ context.Context, _ Point) (string, error) {
	return s.Addr, nil
}
