// Package store persists resume aggregates through the resilient
// backend layer.
package store

import (
	"context"
	"errors"

	"github.com/vuminh/resumebase/internal/core/domain"
)

// ErrNotFound is returned when a by-id fetch yields no resume.
var ErrNotFound = errors.New("resume not found")

// Backend table names.
const (
	tableResumes        = "resumes"
	tableExperience     = "experience_entries"
	tableEducation      = "education_entries"
	tableCertifications = "certification_entries"
)

// ResumeRepository is the data-access surface exposed to callers. Every
// operation is a fresh round trip; there is no client-side cache. Errors
// are returned, never thrown past this boundary.
type ResumeRepository interface {
	// Save upserts the parent row and wholesale-replaces every child
	// collection, assigning dense 0..n-1 order keys in input sequence
	// order. Returns the resolved identifier (generated when absent).
	Save(ctx context.Context, r *domain.Resume) (string, error)

	// Get returns the full aggregate, children ordered by their order
	// keys. Returns ErrNotFound when the id does not exist.
	Get(ctx context.Context, id string) (*domain.Resume, error)

	// GetAll returns every aggregate, parents ordered by creation time
	// descending.
	GetAll(ctx context.Context) ([]*domain.Resume, error)

	// Delete removes the parent row; the backend cascades children.
	Delete(ctx context.Context, id string) error
}
