package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/domain"
	"github.com/lifeline-ems/service-dispatch/internal/domain/dispatch"
	"github.com/lifeline-ems/service-dispatch/internal/events"
)

// CaseDTO is the read model for a dispatch case.
type CaseDTO struct {
	ID                uuid.UUID `json:"id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	Specialization    string    `json:"specialization"`
	Status            string    `json:"status"`
	AmbulanceID       int64     `json:"ambulance_id"`
	HospitalID        int64     `json:"hospital_id"`
	EstimatedDuration float64   `json:"estimated_duration"`
	EstimatedDistance float64   `json:"estimated_distance"`
	RouteGeometry     string    `json:"route_geometry"`
	ActualDuration    *float64  `json:"actual_duration,omitempty"`
	CancelNote        string    `json:"cancel_note,omitempty"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CasePublisher emits case lifecycle events, best-effort.
type CasePublisher interface {
	PublishCaseClosed(ctx context.Context, evt events.CaseClosedEvent)
}

// CaseService exposes administrative operations over dispatch cases.
type CaseService struct {
	cases     dispatch.CaseRepository
	ambulance AmbulanceRegistry
	publisher CasePublisher
	logger    *zap.Logger
}

// NewCaseService creates a new CaseService. publisher may be nil.
func NewCaseService(
	cases dispatch.CaseRepository,
	ambulance AmbulanceRegistry,
	publisher CasePublisher,
	logger *zap.Logger,
) *CaseService {
	return &CaseService{
		cases:     cases,
		ambulance: ambulance,
		publisher: publisher,
		logger:    logger,
	}
}

// GetCase returns a single case by ID.
func (s *CaseService) GetCase(ctx context.Context, id uuid.UUID) (*CaseDTO, error) {
	c, err := s.cases.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toCaseDTO(c), nil
}

// ListCases returns a page of cases, newest first.
func (s *CaseService) ListCases(ctx context.Context, page, limit int) (*domain.PaginatedResult[*CaseDTO], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	cases, total, err := s.cases.ListAll(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]*CaseDTO, 0, len(cases))
	for _, c := range cases {
		dtos = append(dtos, toCaseDTO(c))
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// CancelCase cancels an active case, releases its ambulance and emits a
// terminal event. The running simulator observes the terminal status on its
// next tick and stops on its own.
func (s *CaseService) CancelCase(ctx context.Context, id uuid.UUID, note string) (*CaseDTO, error) {
	c, err := s.cases.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Cancel(note); err != nil {
		return nil, err
	}
	c.IncrementVersion()
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}

	if err := s.ambulance.SetAvailability(ctx, c.AssignedAmbulanceID(), true); err != nil {
		s.logger.Error("failed to release ambulance for canceled case",
			zap.String("case_id", c.ID().String()),
			zap.Int64("ambulance_id", c.AssignedAmbulanceID()),
			zap.Error(err),
		)
	}

	s.publishTerminal(ctx, c)

	s.logger.Info("case canceled",
		zap.String("case_id", c.ID().String()),
		zap.String("note", note),
	)
	return toCaseDTO(c), nil
}

// CloseCase administratively closes an active case.
func (s *CaseService) CloseCase(ctx context.Context, id uuid.UUID) (*CaseDTO, error) {
	c, err := s.cases.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.Close(); err != nil {
		return nil, err
	}
	c.IncrementVersion()
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, err
	}

	if err := s.ambulance.SetAvailability(ctx, c.AssignedAmbulanceID(), true); err != nil {
		s.logger.Error("failed to release ambulance for closed case",
			zap.String("case_id", c.ID().String()),
			zap.Int64("ambulance_id", c.AssignedAmbulanceID()),
			zap.Error(err),
		)
	}

	s.publishTerminal(ctx, c)

	s.logger.Info("case closed", zap.String("case_id", c.ID().String()))
	return toCaseDTO(c), nil
}

// DeleteCase removes a case record.
func (s *CaseService) DeleteCase(ctx context.Context, id uuid.UUID) error {
	return s.cases.Delete(ctx, id)
}

// DeleteAllCases purges every case record.
func (s *CaseService) DeleteAllCases(ctx context.Context) error {
	s.logger.Warn("purging all dispatch cases")
	return s.cases.DeleteAll(ctx)
}

// CaseStats returns case counts grouped by status.
func (s *CaseService) CaseStats(ctx context.Context) (map[string]int64, error) {
	return s.cases.CountByStatus(ctx)
}

func (s *CaseService) publishTerminal(ctx context.Context, c *dispatch.Case) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishCaseClosed(ctx, events.CaseClosedEvent{
		CaseID:      c.ID(),
		AmbulanceID: c.AssignedAmbulanceID(),
		Status:      c.Status().String(),
		OccurredAt:  time.Now().UTC(),
	})
}

func toCaseDTO(c *dispatch.Case) *CaseDTO {
	return &CaseDTO{
		ID:                c.ID(),
		Latitude:          c.Latitude(),
		Longitude:         c.Longitude(),
		Specialization:    c.Specialization(),
		Status:            c.Status().String(),
		AmbulanceID:       c.AssignedAmbulanceID(),
		HospitalID:        c.AssignedHospitalID(),
		EstimatedDuration: c.EstimatedDuration(),
		EstimatedDistance: c.EstimatedDistance(),
		RouteGeometry:     c.RouteGeometry(),
		ActualDuration:    c.ActualDuration(),
		CancelNote:        c.CancelNote(),
		Version:           c.Version(),
		CreatedAt:         c.CreatedAt(),
		UpdatedAt:         c.UpdatedAt(),
	}
}
