package dispatch

import (
	"context"

	"github.com/google/uuid"
)

// CaseRepository defines the persistence contract for case aggregates.
type CaseRepository interface {
	// Save persists a new case.
	Save(ctx context.Context, c *Case) error

	// FindByID retrieves a case by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Case, error)

	// ListAll retrieves all cases with pagination, newest first.
	ListAll(ctx context.Context, page, limit int) ([]*Case, int64, error)

	// Update persists changes to an existing case with optimistic locking.
	Update(ctx context.Context, c *Case) error

	// Delete removes a case by ID.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteAll removes every case (administrative purge).
	DeleteAll(ctx context.Context) error

	// CountByStatus returns case counts grouped by status.
	CountByStatus(ctx context.Context) (map[string]int64, error)
}
