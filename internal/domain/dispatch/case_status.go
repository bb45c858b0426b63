package dispatch

import "fmt"

// CaseStatus represents where a dispatch case is in its lifecycle.
type CaseStatus string

const (
	// StatusEnrouteToPatient is the initial status set at dispatch.
	StatusEnrouteToPatient CaseStatus = "ENROUTE_TO_PATIENT"
	// StatusClosed is the terminal status set by the motion simulator on
	// completion.
	StatusClosed CaseStatus = "CLOSED"
	// StatusCanceled is the terminal status set by an administrative action.
	StatusCanceled CaseStatus = "CANCELED"
)

// validTransitions defines the state machine for case status transitions.
var validTransitions = map[CaseStatus][]CaseStatus{
	StatusEnrouteToPatient: {StatusClosed, StatusCanceled},
	StatusClosed:           {},
	StatusCanceled:         {},
}

// IsValid returns true if the status is a recognized case status.
func (s CaseStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the
// target is allowed.
func (s CaseStatus) CanTransitionTo(target CaseStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible. The motion
// simulator stops as soon as it observes a terminal status.
func (s CaseStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// String returns the string representation of the status.
func (s CaseStatus) String() string {
	return string(s)
}

// ParseCaseStatus converts a string to a CaseStatus, returning an error if
// invalid.
func ParseCaseStatus(s string) (CaseStatus, error) {
	status := CaseStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid case status: %s", s)
	}
	return status, nil
}
