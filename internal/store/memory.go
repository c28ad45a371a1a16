package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/straywatch/straywatch-api/internal/models"
)

// MemoryStore is an in-process Backend for local development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []models.IncidentRecord
	feedback []models.Feedback
	now      func() time.Time
}

// NewMemoryStore returns an empty store using the wall clock for created_at.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Seed appends records as-is, keeping their IDs and timestamps. Test helper.
func (m *MemoryStore) Seed(records ...models.IncidentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		m.records = append(m.records, r)
	}
}

// SetClock replaces the clock used to stamp new rows.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (m *MemoryStore) ListRecords(_ context.Context, since *time.Time) ([]models.IncidentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.IncidentRecord, 0, len(m.records))
	for _, r := range m.records {
		if since != nil && r.CreatedAt.Before(*since) {
			continue
		}
		out = append(out, r)
	}
	newestFirst(out)
	return out, nil
}

func (m *MemoryStore) ListByContributor(_ context.Context, contributorID string) ([]models.IncidentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.IncidentRecord, 0)
	for _, r := range m.records {
		if r.ContributorID != nil && *r.ContributorID == contributorID {
			out = append(out, r)
		}
	}
	newestFirst(out)
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, rec models.IncidentRecord) (models.IncidentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = uuid.New().String()
	rec.CreatedAt = m.now().UTC()
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *MemoryStore) Update(_ context.Context, actorID, id string, patch models.ReportPatch) (models.IncidentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.ownedIndex(actorID, id)
	if err != nil {
		return models.IncidentRecord{}, err
	}
	m.records[i] = patch.Apply(m.records[i])
	return m.records[i], nil
}

func (m *MemoryStore) Remove(_ context.Context, actorID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, err := m.ownedIndex(actorID, id)
	if err != nil {
		return err
	}
	m.records = append(m.records[:i], m.records[i+1:]...)
	return nil
}

// ownedIndex must be called with mu held.
func (m *MemoryStore) ownedIndex(actorID, id string) (int, error) {
	for i, r := range m.records {
		if r.ID != id {
			continue
		}
		if r.ContributorID == nil || *r.ContributorID != actorID {
			return -1, ErrForbidden
		}
		return i, nil
	}
	return -1, ErrNotFound
}

func (m *MemoryStore) InsertFeedback(_ context.Context, fb models.Feedback) (models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fb.ID = uuid.New().String()
	fb.CreatedAt = m.now().UTC()
	m.feedback = append(m.feedback, fb)
	return fb, nil
}

func (m *MemoryStore) ListFeedback(context.Context) ([]models.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Feedback, len(m.feedback))
	copy(out, m.feedback)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func newestFirst(records []models.IncidentRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
}
