package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lifeline-ems/service-dispatch/internal/dto"
)

// RouteServiceClient talks to the route optimization service, which wraps
// the road-network routing provider and returns encoded polylines.
type RouteServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRouteServiceClient creates a RouteServiceClient for the given base URL.
func NewRouteServiceClient(baseURL string) *RouteServiceClient {
	return &RouteServiceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// ComputeRoute requests a single route leg between two coordinates.
func (c *RouteServiceClient) ComputeRoute(ctx context.Context, originLat, originLng, destLat, destLng float64) (dto.RouteResponse, error) {
	u := fmt.Sprintf("%s/routes?originLat=%f&originLng=%f&destLat=%f&destLng=%f",
		c.baseURL, originLat, originLng, destLat, destLng)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return dto.RouteResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return dto.RouteResponse{}, fmt.Errorf("route request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return dto.RouteResponse{}, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, body)
	}

	var route dto.RouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		return dto.RouteResponse{}, fmt.Errorf("failed to decode route response: %w", err)
	}
	return route, nil
}
