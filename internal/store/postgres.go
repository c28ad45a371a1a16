package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/straywatch/straywatch-api/internal/aggregate"
	"github.com/straywatch/straywatch-api/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

const reportColumns = `id, type, lat, lng, count, severity, notes, user_id, contributor_name, contributor_from, created_at`

// PostgresStore is the durable persistence layer for reports and feedback.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func scanReport(row pgx.Row) (models.IncidentRecord, error) {
	var r models.IncidentRecord
	var typ string
	err := row.Scan(&r.ID, &typ, &r.Lat, &r.Lng, &r.Count, &r.Severity, &r.Notes,
		&r.ContributorID, &r.ContributorName, &r.ContributorFrom, &r.CreatedAt)
	r.Type = models.IncidentType(typ)
	return r, err
}

func (p *PostgresStore) queryReports(ctx context.Context, sql string, args ...any) ([]models.IncidentRecord, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.IncidentRecord, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRecords returns reports newest first, optionally limited to created_at >= since.
func (p *PostgresStore) ListRecords(ctx context.Context, since *time.Time) ([]models.IncidentRecord, error) {
	if since == nil {
		return p.queryReports(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC`)
	}
	return p.queryReports(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`, since.UTC())
}

// ListByContributor returns one contributor's reports newest first.
func (p *PostgresStore) ListByContributor(ctx context.Context, contributorID string) ([]models.IncidentRecord, error) {
	return p.queryReports(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, contributorID)
}

// Insert persists a report. The id is generated here and created_at comes from the database clock.
func (p *PostgresStore) Insert(ctx context.Context, rec models.IncidentRecord) (models.IncidentRecord, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO reports(id, type, lat, lng, count, severity, notes, user_id, contributor_name, contributor_from)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+reportColumns,
		uuid.New().String(), string(rec.Type), rec.Lat, rec.Lng, rec.Count, rec.Severity, rec.Notes,
		rec.ContributorID, rec.ContributorName, rec.ContributorFrom)
	return scanReport(row)
}

// Update applies a partial update when actorID owns the report.
func (p *PostgresStore) Update(ctx context.Context, actorID, id string, patch models.ReportPatch) (models.IncidentRecord, error) {
	var typ *string
	if patch.Type != nil {
		s := string(*patch.Type)
		typ = &s
	}

	row := p.pool.QueryRow(ctx, `
		UPDATE reports SET
			type     = COALESCE($3, type),
			lat      = COALESCE($4, lat),
			lng      = COALESCE($5, lng),
			count    = COALESCE($6, count),
			severity = CASE WHEN $7::text IS NULL THEN severity ELSE NULLIF(btrim($7::text), '') END,
			notes    = CASE WHEN $8::text IS NULL THEN notes ELSE NULLIF(btrim($8::text), '') END
		WHERE id = $1 AND user_id = $2
		RETURNING `+reportColumns,
		id, actorID, typ, patch.Lat, patch.Lng, patch.Count, patch.Severity, patch.Notes)

	rec, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.IncidentRecord{}, p.missingOrForeign(ctx, id)
	}
	return rec, err
}

// Remove deletes a report when actorID owns it.
func (p *PostgresStore) Remove(ctx context.Context, actorID, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1 AND user_id = $2`, id, actorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return p.missingOrForeign(ctx, id)
	}
	return nil
}

// missingOrForeign tells apart a report that does not exist from one owned by someone else.
func (p *PostgresStore) missingOrForeign(ctx context.Context, id string) error {
	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrForbidden
	}
	return ErrNotFound
}

// TotalReports returns the all-time report count.
func (p *PostgresStore) TotalReports(ctx context.Context) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n)
	return n, err
}

// CountByType counts reports per type in the half-open day window.
func (p *PostgresStore) CountByType(ctx context.Context, day aggregate.Day) (map[models.IncidentType]int64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT type, COUNT(*)
		FROM reports
		WHERE created_at >= $1
		  AND created_at <  $2
		GROUP BY type
	`, day.Start, day.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := models.ZeroTodayCounts()
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		if _, ok := counts[models.IncidentType(typ)]; ok {
			counts[models.IncidentType(typ)] = n
		}
	}
	return counts, rows.Err()
}

// TypeRollups returns per-type all-time report counts and summed item counts.
func (p *PostgresStore) TypeRollups(ctx context.Context) ([]models.TypeRollup, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT type, COUNT(*), COALESCE(SUM(count), 0)
		FROM reports
		GROUP BY type
		ORDER BY type
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.TypeRollup, 0, len(models.IncidentTypes))
	for rows.Next() {
		var typ string
		var r models.TypeRollup
		if err := rows.Scan(&typ, &r.TotalCount, &r.TotalItems); err != nil {
			return nil, err
		}
		r.Type = models.IncidentType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertFeedback stores one feedback message.
func (p *PostgresStore) InsertFeedback(ctx context.Context, fb models.Feedback) (models.Feedback, error) {
	fb.ID = uuid.New().String()
	err := p.pool.QueryRow(ctx, `
		INSERT INTO feedback(id, user_id, name, email, message)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at
	`, fb.ID, fb.UserID, fb.Name, fb.Email, fb.Message).Scan(&fb.CreatedAt)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("insert feedback: %w", err)
	}
	return fb, nil
}

// ListFeedback returns all feedback newest first.
func (p *PostgresStore) ListFeedback(ctx context.Context) ([]models.Feedback, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, name, email, message, created_at
		FROM feedback
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Feedback, 0)
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Name, &fb.Email, &fb.Message, &fb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}
