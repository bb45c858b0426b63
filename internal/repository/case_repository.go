package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lifeline-ems/service-dispatch/internal/domain"
	"github.com/lifeline-ems/service-dispatch/internal/domain/dispatch"
)

// CaseModel is the GORM model for the cases table.
type CaseModel struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Latitude            float64   `gorm:"not null"`
	Longitude           float64   `gorm:"not null"`
	Specialization      string    `gorm:"not null;size:100;index"`
	Status              string    `gorm:"not null;size:30;index"`
	AssignedAmbulanceID int64     `gorm:"column:ambulance_id;not null;index"`
	AssignedHospitalID  int64     `gorm:"column:hospital_id;not null"`
	EstimatedDuration   float64   `gorm:"not null"`
	EstimatedDistance   float64   `gorm:"not null"`
	RouteGeometry       string    `gorm:"not null;type:text"`
	ActualDuration      *float64  `gorm:""`
	CancelNote          string    `gorm:"size:500"`
	Version             int64     `gorm:"not null;default:1"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (CaseModel) TableName() string {
	return "cases"
}

// GormCaseRepository is the GORM-based implementation of CaseRepository.
type GormCaseRepository struct {
	db *gorm.DB
}

// NewGormCaseRepository creates a new GormCaseRepository.
func NewGormCaseRepository(db *gorm.DB) *GormCaseRepository {
	return &GormCaseRepository{db: db}
}

// Save persists a new case.
func (r *GormCaseRepository) Save(ctx context.Context, c *dispatch.Case) error {
	if err := r.db.WithContext(ctx).Create(toCaseModel(c)).Error; err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}
	return nil
}

// FindByID retrieves a case by its unique identifier.
func (r *GormCaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispatch.Case, error) {
	var model CaseModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Case", id.String())
		}
		return nil, fmt.Errorf("failed to find case by ID: %w", err)
	}
	return toDomainCase(&model)
}

// ListAll retrieves all cases with pagination, newest first.
func (r *GormCaseRepository) ListAll(ctx context.Context, page, limit int) ([]*dispatch.Case, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&CaseModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cases: %w", err)
	}

	var models []CaseModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}

	cases := make([]*dispatch.Case, len(models))
	for i, m := range models {
		c, err := toDomainCase(&m)
		if err != nil {
			return nil, 0, err
		}
		cases[i] = c
	}
	return cases, total, nil
}

// Update persists changes to an existing case with optimistic locking.
func (r *GormCaseRepository) Update(ctx context.Context, c *dispatch.Case) error {
	model := toCaseModel(c)

	// Only update if the stored version matches the version the caller
	// loaded (IncrementVersion was called before Update).
	expectedVersion := c.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&CaseModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":          model.Status,
			"actual_duration": model.ActualDuration,
			"cancel_note":     model.CancelNote,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update case: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("case was modified by another transaction")
	}
	return nil
}

// Delete removes a case by ID.
func (r *GormCaseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&CaseModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete case: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Case", id.String())
	}
	return nil
}

// DeleteAll removes every case.
func (r *GormCaseRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&CaseModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete cases: %w", err)
	}
	return nil
}

// CountByStatus returns case counts grouped by status.
func (r *GormCaseRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&CaseModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toCaseModel(c *dispatch.Case) *CaseModel {
	return &CaseModel{
		ID:                  c.ID(),
		Latitude:            c.Latitude(),
		Longitude:           c.Longitude(),
		Specialization:      c.Specialization(),
		Status:              string(c.Status()),
		AssignedAmbulanceID: c.AssignedAmbulanceID(),
		AssignedHospitalID:  c.AssignedHospitalID(),
		EstimatedDuration:   c.EstimatedDuration(),
		EstimatedDistance:   c.EstimatedDistance(),
		RouteGeometry:       c.RouteGeometry(),
		ActualDuration:      c.ActualDuration(),
		CancelNote:          c.CancelNote(),
		Version:             c.Version(),
		CreatedAt:           c.CreatedAt(),
		UpdatedAt:           c.UpdatedAt(),
	}
}

func toDomainCase(m *CaseModel) (*dispatch.Case, error) {
	status, err := dispatch.ParseCaseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	return dispatch.ReconstructCase(
		m.ID,
		m.Latitude,
		m.Longitude,
		m.Specialization,
		status,
		m.AssignedAmbulanceID,
		m.AssignedHospitalID,
		m.EstimatedDuration,
		m.EstimatedDistance,
		m.RouteGeometry,
		m.ActualDuration,
		m.CancelNote,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
