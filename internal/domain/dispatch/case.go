package dispatch

import (
	"time"

	"github.com/google/uuid"

	"github.com/lifeline-ems/service-dispatch/internal/domain"
)

// Case is the aggregate root for a dispatch case: the only entity this
// service owns and mutates. Ambulances and hospitals are referenced by ID
// and belong to their respective services.
type Case struct {
	id                  uuid.UUID
	latitude            float64
	longitude           float64
	specialization      string
	status              CaseStatus
	assignedAmbulanceID int64
	assignedHospitalID  int64
	estimatedDuration   float64 // seconds, summed over both route legs
	estimatedDistance   float64 // meters, summed over both route legs
	routeGeometry       string  // merged polyline
	actualDuration      *float64
	cancelNote          string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewCase creates a Case with status ENROUTE_TO_PATIENT.
func NewCase(
	latitude, longitude float64,
	specialization string,
	ambulanceID, hospitalID int64,
	estimatedDuration, estimatedDistance float64,
	routeGeometry string,
) (*Case, error) {
	if latitude < -90 || latitude > 90 {
		return nil, domain.NewValidationError("latitude must be in [-90, 90]")
	}
	if longitude < -180 || longitude > 180 {
		return nil, domain.NewValidationError("longitude must be in [-180, 180]")
	}
	if specialization == "" {
		return nil, domain.NewValidationError("specialization is required")
	}
	if ambulanceID <= 0 {
		return nil, domain.NewValidationError("assigned ambulance ID is required")
	}
	if hospitalID <= 0 {
		return nil, domain.NewValidationError("assigned hospital ID is required")
	}
	if routeGeometry == "" {
		return nil, domain.NewValidationError("route geometry is required")
	}

	now := time.Now().UTC()
	return &Case{
		id:                  uuid.New(),
		latitude:            latitude,
		longitude:           longitude,
		specialization:      specialization,
		status:              StatusEnrouteToPatient,
		assignedAmbulanceID: ambulanceID,
		assignedHospitalID:  hospitalID,
		estimatedDuration:   estimatedDuration,
		estimatedDistance:   estimatedDistance,
		routeGeometry:       routeGeometry,
		version:             1,
		createdAt:           now,
		updatedAt:           now,
	}, nil
}

// ReconstructCase rebuilds a Case from persistence data (no validation).
func ReconstructCase(
	id uuid.UUID,
	latitude, longitude float64,
	specialization string,
	status CaseStatus,
	ambulanceID, hospitalID int64,
	estimatedDuration, estimatedDistance float64,
	routeGeometry string,
	actualDuration *float64,
	cancelNote string,
	version int64,
	createdAt, updatedAt time.Time,
) *Case {
	return &Case{
		id:                  id,
		latitude:            latitude,
		longitude:           longitude,
		specialization:      specialization,
		status:              status,
		assignedAmbulanceID: ambulanceID,
		assignedHospitalID:  hospitalID,
		estimatedDuration:   estimatedDuration,
		estimatedDistance:   estimatedDistance,
		routeGeometry:       routeGeometry,
		actualDuration:      actualDuration,
		cancelNote:          cancelNote,
		version:             version,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// --- Getters ---

// ID returns the case's unique identifier.
func (c *Case) ID() uuid.UUID { return c.id }

// Latitude returns the emergency latitude.
func (c *Case) Latitude() float64 { return c.latitude }

// Longitude returns the emergency longitude.
func (c *Case) Longitude() float64 { return c.longitude }

// Specialization returns the requested specialization.
func (c *Case) Specialization() string { return c.specialization }

// Status returns the current case status.
func (c *Case) Status() CaseStatus { return c.status }

// AssignedAmbulanceID returns the assigned ambulance's ID.
func (c *Case) AssignedAmbulanceID() int64 { return c.assignedAmbulanceID }

// AssignedHospitalID returns the assigned hospital's ID.
func (c *Case) AssignedHospitalID() int64 { return c.assignedHospitalID }

// EstimatedDuration returns the route provider's duration estimate in seconds.
func (c *Case) EstimatedDuration() float64 { return c.estimatedDuration }

// EstimatedDistance returns the route provider's distance estimate in meters.
func (c *Case) EstimatedDistance() float64 { return c.estimatedDistance }

// RouteGeometry returns the merged route polyline.
func (c *Case) RouteGeometry() string { return c.routeGeometry }

// ActualDuration returns the elapsed seconds from dispatch to close, or nil
// while the case is open.
func (c *Case) ActualDuration() *float64 { return c.actualDuration }

// CancelNote returns the cancellation reason, if any.
func (c *Case) CancelNote() string { return c.cancelNote }

// Version returns the entity version for optimistic locking.
func (c *Case) Version() int64 { return c.version }

// CreatedAt returns the creation timestamp.
func (c *Case) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (c *Case) UpdatedAt() time.Time { return c.updatedAt }

// --- Behavior ---

// Close transitions the case to CLOSED and records the actual duration.
func (c *Case) Close() error {
	if !c.status.CanTransitionTo(StatusClosed) {
		return domain.NewInvalidStateError(string(c.status), string(StatusClosed))
	}
	now := time.Now().UTC()
	elapsed := now.Sub(c.createdAt).Seconds()
	c.status = StatusClosed
	c.actualDuration = &elapsed
	c.updatedAt = now
	return nil
}

// Cancel transitions the case to CANCELED with an administrative note.
func (c *Case) Cancel(note string) error {
	if !c.status.CanTransitionTo(StatusCanceled) {
		return domain.NewInvalidStateError(string(c.status), string(StatusCanceled))
	}
	c.status = StatusCanceled
	c.cancelNote = note
	c.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (c *Case) IncrementVersion() {
	c.version++
	c.updatedAt = time.Now().UTC()
}
