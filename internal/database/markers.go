package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fwbot-go/internal/fwbot"
)

// MarkerTable is one kind of version marker stored in the markers table.
type MarkerTable struct {
	s    *SQLiteDatabase
	kind string
}

var (
	_ fwbot.MarkerStore  = (*MarkerTable)(nil)
	_ fwbot.MarkerLister = (*MarkerTable)(nil)
)

// Markers returns the marker table for kind (fwbot.MarkerFirmware or fwbot.MarkerKernel).
func (s *SQLiteDatabase) Markers(kind string) *MarkerTable {
	return &MarkerTable{s: s, kind: kind}
}

func (m *MarkerTable) Get(ctx context.Context, model string) (string, error) {
	var version string
	err := m.s.db.QueryRowContext(ctx,
		`SELECT version FROM markers WHERE kind = ? AND model = ?`, m.kind, model).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s marker: %w", m.kind, err)
	}
	return version, nil
}

func (m *MarkerTable) Set(ctx context.Context, model, version string) error {
	_, err := m.s.db.ExecContext(ctx, `
		INSERT INTO markers (kind, model, version, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(kind, model) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		m.kind, model, version, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing %s marker: %w", m.kind, err)
	}
	return nil
}

func (m *MarkerTable) All(ctx context.Context) (map[string]string, error) {
	rows, err := m.s.db.QueryContext(ctx, `SELECT model, version FROM markers WHERE kind = ?`, m.kind)
	if err != nil {
		return nil, fmt.Errorf("listing %s markers: %w", m.kind, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var model, version string
		if err := rows.Scan(&model, &version); err != nil {
			return nil, fmt.Errorf("scanning marker: %w", err)
		}
		out[model] = version
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing %s markers: %w", m.kind, err)
	}
	return out, nil
}
