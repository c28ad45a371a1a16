package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/identity"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/store"
)

var now = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func named(user, name string, at time.Time) models.IncidentRecord {
	return models.IncidentRecord{
		Type:            models.TypeSighting,
		Count:           1,
		ContributorID:   strp(user),
		ContributorName: strp(name),
		CreatedAt:       at,
	}
}

func newService(mem *store.MemoryStore, limit int) *Service {
	return NewService(mem, limit, time.Second).WithClock(func() time.Time { return now })
}

func TestGet_Idempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	for i := 0; i < 12; i++ {
		user := fmt.Sprintf("u%d", i%4)
		mem.Seed(named(user, "Name "+user, now.Add(-time.Duration(i)*time.Hour)))
	}
	svc := newService(mem, 10)
	q := Query{Viewer: &Viewer{ID: "u2"}}

	first, err := svc.Get(context.Background(), q)
	require.NoError(t, err)
	second, err := svc.Get(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Leaders, 4)
	assert.Equal(t, identity.UserKey("u0"), first.Leaders[0].IdentityKey, "equal counts fall back to key order")
}

func TestGet_WindowBoundary(t *testing.T) {
	mem := store.NewMemoryStore()
	edge := now.Add(-30 * 24 * time.Hour)
	mem.Seed(
		named("edge", "Edge", edge),
		named("stale", "Stale", edge.Add(-time.Second)),
	)

	board, err := newService(mem, 10).Get(context.Background(), Query{})
	require.NoError(t, err)

	require.Len(t, board.Leaders, 1)
	assert.Equal(t, identity.UserKey("edge"), board.Leaders[0].IdentityKey)
}

func TestGet_SelfOutsideTopN(t *testing.T) {
	mem := store.NewMemoryStore()
	for i := 0; i < 5; i++ {
		for j := 0; j <= i+1; j++ {
			mem.Seed(named(fmt.Sprintf("top%d", i), "Top", now.Add(-time.Hour)))
		}
	}
	mem.Seed(named("me", "Me", now.Add(-time.Hour)))

	board, err := newService(mem, 3).Get(context.Background(), Query{Viewer: &Viewer{ID: "me"}})
	require.NoError(t, err)

	assert.Len(t, board.Leaders, 3)
	require.NotNil(t, board.Self)
	assert.Equal(t, identity.UserKey("me"), board.Self.IdentityKey)
	assert.Equal(t, 1, board.Self.ReportCount)
}

func TestGet_SelfOverrideAndAbsentViewer(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Seed(named("me", "Old Snapshot", now.Add(-time.Hour)), named("other", "Other", now))
	svc := newService(mem, 10)

	board, err := svc.Get(context.Background(), Query{Viewer: &Viewer{
		ID:      "me",
		Profile: identity.Profile{Name: identity.Some("Current Name"), Origin: identity.Some("Leh")},
	}})
	require.NoError(t, err)
	require.NotNil(t, board.Self)
	assert.Equal(t, "Current Name", board.Self.DisplayName)
	assert.Equal(t, "Leh", *board.Self.DisplayOrigin)

	for _, l := range board.Leaders {
		if l.IdentityKey == identity.UserKey("other") {
			assert.Equal(t, "Other", l.DisplayName)
		}
	}

	board, err = svc.Get(context.Background(), Query{Viewer: &Viewer{ID: "nobody"}})
	require.NoError(t, err)
	assert.Nil(t, board.Self)
}

func TestGet_ViewerProfileDoesNotChangeLeaders(t *testing.T) {
	mem := store.NewMemoryStore()
	for i := 0; i < 5; i++ {
		mem.Seed(models.IncidentRecord{Type: models.TypeSighting, Count: 1, CreatedAt: now.Add(-time.Hour)})
	}
	mem.Seed(models.IncidentRecord{Type: models.TypeSighting, Count: 1, ContributorID: strp("me"), CreatedAt: now.Add(-time.Hour)})
	svc := newService(mem, 10)

	public, err := svc.Get(context.Background(), Query{})
	require.NoError(t, err)
	viewed, err := svc.Get(context.Background(), Query{Viewer: &Viewer{
		ID:      "me",
		Profile: identity.Profile{Name: identity.Some("Me")},
	}})
	require.NoError(t, err)

	assert.Equal(t, public.Leaders, viewed.Leaders)
	require.Len(t, viewed.Leaders, 2)
	assert.Equal(t, 5, viewed.Leaders[0].ReportCount)
	for _, l := range viewed.Leaders {
		assert.Equal(t, identity.AnonymousName, l.DisplayName)
	}

	require.NotNil(t, viewed.Self)
	assert.Equal(t, "Me", viewed.Self.DisplayName)
	assert.Equal(t, identity.UserKey("me"), viewed.Self.IdentityKey)
}

type failingLister struct{}

func (failingLister) ListRecords(context.Context, *time.Time) ([]models.IncidentRecord, error) {
	return nil, errors.New("connection refused")
}

func TestGet_DegradesOnStoreFailure(t *testing.T) {
	svc := NewService(failingLister{}, 10, time.Second)

	board, err := svc.Get(context.Background(), Query{Viewer: &Viewer{ID: "me"}})

	require.Error(t, err)
	assert.Equal(t, Empty(), board)
	assert.NotNil(t, board.Leaders)
	assert.Nil(t, board.Self)
}
