// Package clients implements HTTP clients for the collaborating services:
// the hospital management service, the ambulance service and the route
// provider. Every client call is bounded by the caller's context and a
// request timeout; callers decide how a failure degrades.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lifeline-ems/service-dispatch/internal/dto"
)

const defaultTimeout = 10 * time.Second

// HospitalClient talks to the hospital management service.
type HospitalClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHospitalClient creates a HospitalClient for the given base URL.
func NewHospitalClient(baseURL string) *HospitalClient {
	return &HospitalClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// ListBySpecialization returns the hospitals offering the given speciality.
// Matching is case-insensitive on the hospital service side.
func (c *HospitalClient) ListBySpecialization(ctx context.Context, speciality string) ([]dto.Hospital, error) {
	u := fmt.Sprintf("%s/hospitals/speciality?speciality=%s", c.baseURL, url.QueryEscape(speciality))

	var hospitals []dto.Hospital
	if err := c.getJSON(ctx, u, &hospitals); err != nil {
		return nil, fmt.Errorf("failed to list hospitals by speciality: %w", err)
	}
	return hospitals, nil
}

// ListAmbulances returns the ambulances affiliated with the given hospital.
func (c *HospitalClient) ListAmbulances(ctx context.Context, hospitalID int64) ([]dto.Ambulance, error) {
	u := fmt.Sprintf("%s/hospitals/by-hospital/%d", c.baseURL, hospitalID)

	var ambulances []dto.Ambulance
	if err := c.getJSON(ctx, u, &ambulances); err != nil {
		return nil, fmt.Errorf("failed to list ambulances for hospital %d: %w", hospitalID, err)
	}
	return ambulances, nil
}

func (c *HospitalClient) getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
