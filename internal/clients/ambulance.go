package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AmbulanceClient talks to the ambulance service. Its two writes are the
// only mutations this service requests from collaborators.
type AmbulanceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAmbulanceClient creates an AmbulanceClient for the given base URL.
func NewAmbulanceClient(baseURL string) *AmbulanceClient {
	return &AmbulanceClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SetAvailability updates an ambulance's availability flag.
func (c *AmbulanceClient) SetAvailability(ctx context.Context, ambulanceID int64, available bool) error {
	u := fmt.Sprintf("%s/ambulances/%d/availability", c.baseURL, ambulanceID)
	body := map[string]bool{"available": available}

	if err := c.putJSON(ctx, u, body); err != nil {
		return fmt.Errorf("failed to set availability for ambulance %d: %w", ambulanceID, err)
	}
	return nil
}

// SetLocation updates an ambulance's current position.
func (c *AmbulanceClient) SetLocation(ctx context.Context, ambulanceID int64, latitude, longitude float64) error {
	u := fmt.Sprintf("%s/ambulances/%d/location", c.baseURL, ambulanceID)
	body := map[string]float64{"latitude": latitude, "longitude": longitude}

	if err := c.putJSON(ctx, u, body); err != nil {
		return fmt.Errorf("failed to set location for ambulance %d: %w", ambulanceID, err)
	}
	return nil
}

func (c *AmbulanceClient) putJSON(ctx context.Context, url string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, b)
	}
	return nil
}
