// Package events publishes dispatch lifecycle and ambulance movement events
// for observers (dashboards, analytics). Delivery is best-effort: a publish
// failure is logged and never fails the operation that produced the event.
package events

import (
	"time"

	"github.com/google/uuid"
)

// TopicDispatchEvents carries every event this service emits.
const TopicDispatchEvents = "dispatch.events"

// Event types on dispatch.events.
const (
	CaseOpened        = "dispatch.case.opened"
	CaseClosed        = "dispatch.case.closed"
	AmbulanceLocation = "dispatch.ambulance.location_updated"
)

// CaseOpenedEvent is emitted after a successful dispatch persists its case.
type CaseOpenedEvent struct {
	CaseID            uuid.UUID `json:"case_id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Specialization    string    `json:"specialization"`
	AmbulanceID       int64     `json:"ambulance_id"`
	HospitalID        int64     `json:"hospital_id"`
	EstimatedDuration float64   `json:"estimated_duration"`
	EstimatedDistance float64   `json:"estimated_distance"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// CaseClosedEvent is emitted when the simulator (or an administrative
// cancellation) puts a case into a terminal status.
type CaseClosedEvent struct {
	CaseID      uuid.UUID `json:"case_id"`
	AmbulanceID int64     `json:"ambulance_id"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AmbulanceLocationEvent is emitted once per simulator tick.
type AmbulanceLocationEvent struct {
	CaseID      uuid.UUID `json:"case_id"`
	AmbulanceID int64     `json:"ambulance_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	OccurredAt  time.Time `json:"occurred_at"`
}
