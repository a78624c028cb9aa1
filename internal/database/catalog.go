package database

import (
	"context"
	"fmt"
	"time"

	"fwbot-go/internal/fwbot"
)

// AddModel registers m and appends any regions it does not have yet.
// Re-adding a model updates its kernel identifier.
func (s *SQLiteDatabase) AddModel(ctx context.Context, m fwbot.Model, regions []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO models (model, kernel_model, created_at) VALUES (?, ?, ?)
		ON CONFLICT(model) DO UPDATE SET kernel_model = excluded.kernel_model`,
		m.Firmware, m.Kernel, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting model: %w", err)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM regions WHERE model = ?`, m.Firmware).Scan(&next)
	if err != nil {
		return fmt.Errorf("reading region positions: %w", err)
	}

	for _, region := range regions {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO regions (model, region, position) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
			m.Firmware, region, next)
		if err != nil {
			return fmt.Errorf("inserting region %s: %w", region, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RemoveModel deletes a model and its regions. It reports whether the
// model existed. Markers are kept.
func (s *SQLiteDatabase) RemoveModel(ctx context.Context, model string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE model = ?`, model)
	if err != nil {
		return false, fmt.Errorf("deleting model: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting model: %w", err)
	}
	return n > 0, nil
}

// ListModels returns every tracked model ordered by identifier.
func (s *SQLiteDatabase) ListModels(ctx context.Context) ([]fwbot.Model, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT model, kernel_model FROM models ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer rows.Close()

	var models []fwbot.Model
	for rows.Next() {
		var m fwbot.Model
		if err := rows.Scan(&m.Firmware, &m.Kernel); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	return models, nil
}

// RegionsFor returns the regions of model in insertion order.
func (s *SQLiteDatabase) RegionsFor(ctx context.Context, model string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region FROM regions WHERE model = ? ORDER BY position, region`, model)
	if err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	defer rows.Close()

	var regions []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, fmt.Errorf("scanning region: %w", err)
		}
		regions = append(regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing regions: %w", err)
	}
	return regions, nil
}

var _ fwbot.Catalog = (*SQLiteDatabase)(nil)
