// Package dto defines the wire types exchanged with the dispatch caller and
// the collaborating services. Hospital and Ambulance are read-only external
// views owned by their respective services.
package dto

// EmergencyRequest is the inbound dispatch request. Coordinates are pointers
// so that absent fields are distinguishable from zero values.
type EmergencyRequest struct {
	Latitude       *float64 `json:"latitude" binding:"required"`
	Longitude      *float64 `json:"longitude" binding:"required"`
	Specialization string   `json:"specialization" binding:"required"`
}

// Dispatch and route outcome statuses shared across the wire surface.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// DispatchResult is the outcome of a dispatch attempt. On failure only
// Status and Reason are populated.
type DispatchResult struct {
	Status            string     `json:"status"`
	Reason            string     `json:"reason,omitempty"`
	AssignedAmbulance *Ambulance `json:"assignedAmbulance,omitempty"`
	AssignedHospital  *Hospital  `json:"assignedHospital,omitempty"`
	RoutePolyline     string     `json:"routePolyline,omitempty"`
}

// Hospital is the external view served by the hospital management service.
type Hospital struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Speciality   string  `json:"speciality"`
	AmbulanceIDs []int64 `json:"ambulanceIds"`
}

// Ambulance is the external view served by the ambulance service.
type Ambulance struct {
	ID         int64   `json:"id"`
	DriverName string  `json:"driverName"`
	Available  bool    `json:"available"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
}

// RouteResponse is one computed route leg from the route provider.
type RouteResponse struct {
	Status   string  `json:"status"`
	Geometry string  `json:"geometry"`
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}
