package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fwbot-go/internal/fwbot"
)

var _ fwbot.History = (*SQLiteDatabase)(nil)

func (s *SQLiteDatabase) StartCycle(ctx context.Context, c fwbot.Cycle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (id, started_at, status, models) VALUES (?, ?, ?, ?)`,
		c.ID, c.StartedAt.UTC(), c.Status, c.Models)
	if err != nil {
		return fmt.Errorf("creating cycle: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FinishCycle(ctx context.Context, id, status string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cycles SET status = ?, finished_at = ? WHERE id = ?`,
		status, finishedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing cycle: %w", err)
	}
	return nil
}

// ListCycles returns the most recent cycles, newest first.
func (s *SQLiteDatabase) ListCycles(ctx context.Context, limit int) ([]*fwbot.Cycle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, models FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*fwbot.Cycle
	for rows.Next() {
		var c fwbot.Cycle
		var finished sql.NullTime
		if err := rows.Scan(&c.ID, &c.StartedAt, &finished, &c.Status, &c.Models); err != nil {
			return nil, fmt.Errorf("scanning cycle: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			c.FinishedAt = &t
		}
		cycles = append(cycles, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing cycles: %w", err)
	}
	return cycles, nil
}

func (s *SQLiteDatabase) RecordRelease(ctx context.Context, r fwbot.Release) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kernel_releases (model, version, upload_id, patch_base, tag, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Model, r.Version, r.UploadID, r.PatchBase, r.Tag, r.Outcome.String(), r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("recording release: %w", err)
	}
	return nil
}

// ListReleases returns the import attempts for model, newest first.
func (s *SQLiteDatabase) ListReleases(ctx context.Context, model string, limit int) ([]*fwbot.Release, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT model, version, upload_id, patch_base, tag, outcome, created_at
		FROM kernel_releases WHERE model = ? ORDER BY created_at DESC, id DESC LIMIT ?`, model, limit)
	if err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	defer rows.Close()

	var releases []*fwbot.Release
	for rows.Next() {
		var r fwbot.Release
		var outcome string
		if err := rows.Scan(&r.Model, &r.Version, &r.UploadID, &r.PatchBase, &r.Tag, &outcome, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning release: %w", err)
		}
		if r.Outcome, err = fwbot.ParseOutcome(outcome); err != nil {
			return nil, err
		}
		releases = append(releases, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	return releases, nil
}
