package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/straywatch/straywatch-api/internal/models"
)

var (
	// ErrNotFound is returned when a record or feedback entry does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrForbidden is returned when the actor does not own the record.
	ErrForbidden = errors.New("store: not owner")
)

// Gateway is the persisted incident collection. Implementations enforce
// ownership on Update and Remove; callers must not work around it.
type Gateway interface {
	// ListRecords returns records newest first. A non-nil since is a closed lower bound on created_at.
	ListRecords(ctx context.Context, since *time.Time) ([]models.IncidentRecord, error)
	ListByContributor(ctx context.Context, contributorID string) ([]models.IncidentRecord, error)
	Insert(ctx context.Context, rec models.IncidentRecord) (models.IncidentRecord, error)
	Update(ctx context.Context, actorID, id string, patch models.ReportPatch) (models.IncidentRecord, error)
	Remove(ctx context.Context, actorID, id string) error
}

// FeedbackStore persists feedback messages.
type FeedbackStore interface {
	InsertFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error)
	ListFeedback(ctx context.Context) ([]models.Feedback, error)
}

// Backend is everything the HTTP layer needs from a storage implementation.
type Backend interface {
	Gateway
	FeedbackStore
	Ping(ctx context.Context) error
	Close()
}

// Open returns the backend selected by dbURL: "memory://" keeps everything
// in process, anything else is treated as a Postgres connection string.
func Open(dbURL string) (Backend, error) {
	if strings.HasPrefix(dbURL, "memory://") {
		return NewMemoryStore(), nil
	}
	pg, err := NewPostgresStore(dbURL)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
