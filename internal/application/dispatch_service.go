package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/domain/dispatch"
	"github.com/lifeline-ems/service-dispatch/internal/dto"
	"github.com/lifeline-ems/service-dispatch/internal/events"
	"github.com/lifeline-ems/service-dispatch/internal/geo"
	"github.com/lifeline-ems/service-dispatch/internal/route"
	"github.com/lifeline-ems/service-dispatch/internal/selection"
)

// HospitalDirectory is the hospital management service contract the
// orchestrator consumes.
type HospitalDirectory interface {
	ListBySpecialization(ctx context.Context, speciality string) ([]dto.Hospital, error)
	ListAmbulances(ctx context.Context, hospitalID int64) ([]dto.Ambulance, error)
}

// AmbulanceRegistry is the ambulance service contract the orchestrator
// consumes.
type AmbulanceRegistry interface {
	SetAvailability(ctx context.Context, ambulanceID int64, available bool) error
	SetLocation(ctx context.Context, ambulanceID int64, latitude, longitude float64) error
}

// RouteProvider computes one route leg between two coordinates.
type RouteProvider interface {
	ComputeRoute(ctx context.Context, originLat, originLng, destLat, destLng float64) (dto.RouteResponse, error)
}

// SimulatorLauncher starts the motion simulation for a dispatched case.
type SimulatorLauncher interface {
	Launch(caseID uuid.UUID, ambulanceID int64, points []geo.Coordinate)
}

// DispatchPublisher emits dispatch lifecycle events, best-effort.
type DispatchPublisher interface {
	PublishCaseOpened(ctx context.Context, evt events.CaseOpenedEvent)
}

// DispatchService orchestrates emergency dispatches: candidate selection,
// route acquisition, polyline merge, ambulance reservation, case persistence
// and the simulator hand-off.
type DispatchService struct {
	hospitals  HospitalDirectory
	ambulances AmbulanceRegistry
	routes     RouteProvider
	cases      dispatch.CaseRepository
	simulator  SimulatorLauncher
	publisher  DispatchPublisher
	logger     *zap.Logger
}

// NewDispatchService creates a new DispatchService. publisher may be nil.
func NewDispatchService(
	hospitals HospitalDirectory,
	ambulances AmbulanceRegistry,
	routes RouteProvider,
	cases dispatch.CaseRepository,
	simulator SimulatorLauncher,
	publisher DispatchPublisher,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		hospitals:  hospitals,
		ambulances: ambulances,
		routes:     routes,
		cases:      cases,
		simulator:  simulator,
		publisher:  publisher,
		logger:     logger,
	}
}

// HandleEmergency runs the full dispatch sequence for one emergency. Every
// stage failure degrades to a FAILURE result with a reason; no error
// escapes to the caller.
func (s *DispatchService) HandleEmergency(ctx context.Context, req dto.EmergencyRequest) dto.DispatchResult {
	if req.Latitude == nil || req.Longitude == nil {
		return s.failure("Emergency request is missing coordinates.")
	}
	emergency := geo.Coordinate{Lat: *req.Latitude, Lng: *req.Longitude}
	if emergency.Lat < -90 || emergency.Lat > 90 || emergency.Lng < -180 || emergency.Lng > 180 {
		return s.failure("Emergency coordinates are out of range.")
	}
	specialization := strings.TrimSpace(req.Specialization)
	if specialization == "" {
		return s.failure("Emergency request is missing a specialization.")
	}

	hospitals := s.fetchHospitals(ctx, specialization)
	if len(hospitals) == 0 {
		return s.failure("No hospital with the required specialization found.")
	}

	pairs := s.availableCandidates(ctx, hospitals)
	if len(pairs) == 0 {
		return s.failure("No available ambulances found for the required specialization.")
	}

	selected := selection.Nearest(pairs, emergency)
	if selected == nil {
		return s.failure("No suitable ambulance found.")
	}

	legToPatient := s.fetchRoute(ctx,
		selected.Ambulance.Latitude, selected.Ambulance.Longitude,
		emergency.Lat, emergency.Lng,
	)
	if legToPatient.Status != dto.StatusSuccess || legToPatient.Geometry == "" {
		return s.failure("Route calculation (Ambulance->Patient) failed.")
	}

	legToHospital := s.fetchRoute(ctx,
		emergency.Lat, emergency.Lng,
		selected.Hospital.Latitude, selected.Hospital.Longitude,
	)
	if legToHospital.Status != dto.StatusSuccess || legToHospital.Geometry == "" {
		return s.failure("Route calculation (Patient->Hospital) failed.")
	}

	mergedPoints := route.MergePoints(
		geo.DecodePolyline(legToPatient.Geometry),
		geo.DecodePolyline(legToHospital.Geometry),
	)
	mergedGeometry := geo.EncodePolyline(mergedPoints)
	s.logger.Info("merged route geometry created",
		zap.Int("points", len(mergedPoints)),
	)

	// The ambulance must be reserved before any state that implies it is en
	// route exists; an unconfirmed availability write would allow a double
	// dispatch.
	if err := s.ambulances.SetAvailability(ctx, selected.Ambulance.ID, false); err != nil {
		s.logger.Error("failed to reserve ambulance",
			zap.Int64("ambulance_id", selected.Ambulance.ID),
			zap.Error(err),
		)
		return s.failure("Failed to update ambulance availability.")
	}

	newCase, err := dispatch.NewCase(
		emergency.Lat, emergency.Lng,
		specialization,
		selected.Ambulance.ID,
		selected.Hospital.ID,
		legToPatient.Duration+legToHospital.Duration,
		legToPatient.Distance+legToHospital.Distance,
		mergedGeometry,
	)
	if err == nil {
		err = s.cases.Save(ctx, newCase)
	}
	if err != nil {
		s.logger.Error("failed to persist dispatch case",
			zap.Int64("ambulance_id", selected.Ambulance.ID),
			zap.Error(err),
		)
		s.releaseAmbulance(ctx, selected.Ambulance.ID)
		return s.failure("Failed to create dispatch case.")
	}

	s.publishCaseOpened(ctx, newCase)

	// Fire-and-forget: the caller gets its result before the first tick.
	s.simulator.Launch(newCase.ID(), selected.Ambulance.ID, mergedPoints)

	s.logger.Info("dispatch succeeded",
		zap.String("case_id", newCase.ID().String()),
		zap.Int64("ambulance_id", selected.Ambulance.ID),
		zap.Int64("hospital_id", selected.Hospital.ID),
	)

	ambulance := selected.Ambulance
	hospital := selected.Hospital
	return dto.DispatchResult{
		Status:            dto.StatusSuccess,
		AssignedAmbulance: &ambulance,
		AssignedHospital:  &hospital,
		RoutePolyline:     mergedGeometry,
	}
}

// fetchHospitals degrades any collaborator failure to an empty list.
func (s *DispatchService) fetchHospitals(ctx context.Context, speciality string) []dto.Hospital {
	hospitals, err := s.hospitals.ListBySpecialization(ctx, speciality)
	if err != nil {
		s.logger.Error("failed to fetch hospitals by specialization",
			zap.String("speciality", speciality),
			zap.Error(err),
		)
		return nil
	}
	return hospitals
}

// availableCandidates pairs every available ambulance with its hospital.
// A failed ambulance lookup for one hospital degrades to skipping that
// hospital, not failing the dispatch.
func (s *DispatchService) availableCandidates(ctx context.Context, hospitals []dto.Hospital) []selection.Pair {
	var pairs []selection.Pair
	for _, hospital := range hospitals {
		ambulances, err := s.hospitals.ListAmbulances(ctx, hospital.ID)
		if err != nil {
			s.logger.Error("failed to fetch ambulances for hospital",
				zap.Int64("hospital_id", hospital.ID),
				zap.Error(err),
			)
			continue
		}
		for _, ambulance := range ambulances {
			if ambulance.Available {
				pairs = append(pairs, selection.Pair{Ambulance: ambulance, Hospital: hospital})
			}
		}
	}
	return pairs
}

// fetchRoute degrades any provider failure to a FAILURE route response.
func (s *DispatchService) fetchRoute(ctx context.Context, originLat, originLng, destLat, destLng float64) dto.RouteResponse {
	s.logger.Info("fetching route",
		zap.Float64("origin_lat", originLat),
		zap.Float64("origin_lng", originLng),
		zap.Float64("dest_lat", destLat),
		zap.Float64("dest_lng", destLng),
	)
	resp, err := s.routes.ComputeRoute(ctx, originLat, originLng, destLat, destLng)
	if err != nil {
		s.logger.Error("failed to fetch route", zap.Error(err))
		return dto.RouteResponse{Status: dto.StatusFailure}
	}
	return resp
}

// releaseAmbulance undoes a reservation after a post-reservation failure,
// best-effort.
func (s *DispatchService) releaseAmbulance(ctx context.Context, ambulanceID int64) {
	if err := s.ambulances.SetAvailability(ctx, ambulanceID, true); err != nil {
		s.logger.Error("failed to release ambulance after dispatch failure",
			zap.Int64("ambulance_id", ambulanceID),
			zap.Error(err),
		)
	}
}

func (s *DispatchService) publishCaseOpened(ctx context.Context, c *dispatch.Case) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishCaseOpened(ctx, events.CaseOpenedEvent{
		CaseID:            c.ID(),
		Latitude:          c.Latitude(),
		Longitude:         c.Longitude(),
		Specialization:    c.Specialization(),
		AmbulanceID:       c.AssignedAmbulanceID(),
		HospitalID:        c.AssignedHospitalID(),
		EstimatedDuration: c.EstimatedDuration(),
		EstimatedDistance: c.EstimatedDistance(),
		OccurredAt:        time.Now().UTC(),
	})
}

func (s *DispatchService) failure(reason string) dto.DispatchResult {
	s.logger.Error("dispatch failed", zap.String("reason", reason))
	return dto.DispatchResult{Status: dto.StatusFailure, Reason: reason}
}
