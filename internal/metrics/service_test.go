package metrics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straywatch/straywatch-api/internal/aggregate"
	"github.com/straywatch/straywatch-api/internal/models"
	"github.com/straywatch/straywatch-api/internal/store"
)

var now = time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

type fakeSource struct {
	total      int64
	rollupsErr error
	calls      atomic.Int32
}

func (f *fakeSource) TotalReports(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.total, nil
}

func (f *fakeSource) CountByType(context.Context, aggregate.Day) (map[models.IncidentType]int64, error) {
	f.calls.Add(1)
	return map[models.IncidentType]int64{models.TypeBite: 4}, nil
}

func (f *fakeSource) TypeRollups(context.Context) ([]models.TypeRollup, error) {
	f.calls.Add(1)
	if f.rollupsErr != nil {
		return nil, f.rollupsErr
	}
	return []models.TypeRollup{{Type: models.TypeBite, TotalCount: 9, TotalItems: 12}}, nil
}

func TestGet_EndToEndOverRecords(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.Seed(
		models.IncidentRecord{Type: models.TypeBite, Count: 1, ContributorID: strp("u1"), CreatedAt: now.Add(-time.Hour)},
		models.IncidentRecord{Type: models.TypeSighting, Count: 2, ContributorID: strp("u1"), CreatedAt: now.Add(-2 * time.Hour)},
	)
	svc := NewService(RecordSource{Records: mem}, time.UTC, time.Second).WithClock(func() time.Time { return now })

	snap, err := svc.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), snap.TotalReports)
	assert.Equal(t, map[models.IncidentType]int64{
		models.TypeSighting: 1, models.TypeBite: 1, models.TypeGarbage: 0,
	}, snap.TodayCounts)
	assert.ElementsMatch(t, []models.TypeRollup{
		{Type: models.TypeBite, TotalCount: 1, TotalItems: 1},
		{Type: models.TypeSighting, TotalCount: 1, TotalItems: 2},
	}, snap.TypeRollups)
	assert.Empty(t, snap.Error)
	assert.Equal(t, now, snap.GeneratedAt)
}

func TestGet_PartialFailureIsAllZero(t *testing.T) {
	src := &fakeSource{total: 42, rollupsErr: errors.New("rollup view missing")}
	svc := NewService(src, time.UTC, time.Second).WithClock(func() time.Time { return now })

	snap, err := svc.Get(context.Background())

	require.Error(t, err)
	assert.Equal(t, Fallback(now), snap)
	assert.Equal(t, int64(0), snap.TotalReports)
	assert.Equal(t, models.ZeroTodayCounts(), snap.TodayCounts)
	assert.Empty(t, snap.TypeRollups)
	assert.Equal(t, FallbackError, snap.Error)
}

func TestGet_FillsMissingTypes(t *testing.T) {
	src := &fakeSource{total: 9}
	svc := NewService(src, time.UTC, 0).WithClock(func() time.Time { return now })

	snap, err := svc.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), src.calls.Load())
	assert.Equal(t, int64(4), snap.TodayCounts[models.TypeBite])
	assert.Equal(t, int64(0), snap.TodayCounts[models.TypeSighting])
	assert.Equal(t, int64(0), snap.TodayCounts[models.TypeGarbage])
}

// growingLister returns one more record on every call, like a store taking
// inserts between reads.
type growingLister struct {
	calls atomic.Int32
}

func (g *growingLister) ListRecords(context.Context, *time.Time) ([]models.IncidentRecord, error) {
	n := int(g.calls.Add(1))
	records := make([]models.IncidentRecord, n)
	for i := range records {
		records[i] = models.IncidentRecord{Type: models.TypeSighting, Count: 1, CreatedAt: now.Add(-time.Minute)}
	}
	return records, nil
}

func TestGet_RecordSourceReadsOnce(t *testing.T) {
	lister := &growingLister{}
	svc := NewService(RecordSource{Records: lister}, time.UTC, time.Second).WithClock(func() time.Time { return now })

	snap, err := svc.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), lister.calls.Load())
	var rolled int64
	for _, r := range snap.TypeRollups {
		rolled += r.TotalCount
	}
	assert.Equal(t, snap.TotalReports, rolled)
	assert.Equal(t, snap.TotalReports, snap.TodayCounts[models.TypeSighting])
}

func TestGet_SnapshotFailureIsFallback(t *testing.T) {
	svc := NewService(RecordSource{Records: failingLister{}}, time.UTC, time.Second).WithClock(func() time.Time { return now })

	snap, err := svc.Get(context.Background())

	require.Error(t, err)
	assert.Equal(t, Fallback(now), snap)
}

type failingLister struct{}

func (failingLister) ListRecords(context.Context, *time.Time) ([]models.IncidentRecord, error) {
	return nil, errors.New("connection refused")
}

type blockingSource struct{ fakeSource }

func (b *blockingSource) TotalReports(ctx context.Context) (int64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestGet_TimeoutIsUpstreamFailure(t *testing.T) {
	svc := NewService(&blockingSource{}, time.UTC, 20*time.Millisecond).WithClock(func() time.Time { return now })

	snap, err := svc.Get(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, FallbackError, snap.Error)
}
