package metrics

import (
	"context"
	"time"

	"github.com/straywatch/straywatch-api/internal/aggregate"
	"github.com/straywatch/straywatch-api/internal/models"
)

// RecordLister is the read side of the incident store.
type RecordLister interface {
	ListRecords(ctx context.Context, since *time.Time) ([]models.IncidentRecord, error)
}

// Snapshotter is a Source that can freeze one consistent view for the three
// queries of a single Get.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Source, error)
}

// RecordSource answers metric queries by aggregating raw records in memory.
// Used with stores that have no aggregate queries of their own.
type RecordSource struct {
	Records RecordLister
}

// Snapshot lists the records once. All three answers of the returned Source
// come from that single read.
func (s RecordSource) Snapshot(ctx context.Context) (Source, error) {
	records, err := s.Records.ListRecords(ctx, nil)
	if err != nil {
		return nil, err
	}
	return recordSnapshot(records), nil
}

func (s RecordSource) TotalReports(ctx context.Context) (int64, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.TotalReports(ctx)
}

func (s RecordSource) CountByType(ctx context.Context, day aggregate.Day) (map[models.IncidentType]int64, error) {
	start := day.Start
	records, err := s.Records.ListRecords(ctx, &start)
	if err != nil {
		return nil, err
	}
	return aggregate.CountByType(records, day), nil
}

func (s RecordSource) TypeRollups(ctx context.Context) ([]models.TypeRollup, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.TypeRollups(ctx)
}

// recordSnapshot is a fixed record list.
type recordSnapshot []models.IncidentRecord

func (r recordSnapshot) TotalReports(context.Context) (int64, error) {
	return int64(len(r)), nil
}

func (r recordSnapshot) CountByType(_ context.Context, day aggregate.Day) (map[models.IncidentType]int64, error) {
	return aggregate.CountByType(r, day), nil
}

func (r recordSnapshot) TypeRollups(context.Context) ([]models.TypeRollup, error) {
	return aggregate.RollupByType(r), nil
}
