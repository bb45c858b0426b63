package clients

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/lifeline-ems/service-dispatch/internal/dto"
)

// GoogleRouteClient computes route legs directly against the Google
// Directions API instead of the route optimization service. The overview
// polyline uses the same encoding the route service returns, so the two
// providers are interchangeable behind the RouteProvider interface.
type GoogleRouteClient struct {
	client *maps.Client
}

// NewGoogleRouteClient creates a GoogleRouteClient with the given API key.
func NewGoogleRouteClient(apiKey string) (*GoogleRouteClient, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleRouteClient{client: client}, nil
}

// ComputeRoute requests a driving route between two coordinates and reports
// the overview polyline with the summed leg distance and duration.
func (c *GoogleRouteClient) ComputeRoute(ctx context.Context, originLat, originLng, destLat, destLng float64) (dto.RouteResponse, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", originLat, originLng),
		Destination: fmt.Sprintf("%f,%f", destLat, destLng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := c.client.Directions(ctx, req)
	if err != nil {
		return dto.RouteResponse{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 {
		return dto.RouteResponse{Status: dto.StatusFailure}, nil
	}

	best := routes[0]
	var distanceMeters float64
	var durationSeconds float64
	for _, leg := range best.Legs {
		distanceMeters += float64(leg.Distance.Meters)
		durationSeconds += leg.Duration.Seconds()
	}

	return dto.RouteResponse{
		Status:   dto.StatusSuccess,
		Geometry: best.OverviewPolyline.Points,
		Distance: distanceMeters,
		Duration: durationSeconds,
	}, nil
}
