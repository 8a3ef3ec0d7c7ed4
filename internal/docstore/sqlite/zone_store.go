package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuanvinh/partsbin/internal/docstore"
	"github.com/xuanvinh/partsbin/internal/domain"
)

func (s *Store) CreateZone(ctx context.Context, name, location string) (*domain.Zone, error) {
	zone := domain.Zone{
		ID:        s.newID(),
		Name:      name,
		Location:  location,
		CreatedAt: s.now(),
	}
	if err := zone.Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (id, name, location, created_at) VALUES (?, ?, ?, ?)
	`, zone.ID, zone.Name, zone.Location, zone.CreatedAt.UnixNano())
	if err != nil {
		return nil, &domain.WriteError{Op: "create zone", Err: err}
	}

	s.feed.Publish(docstore.Event{Collection: docstore.CollectionZones, Action: docstore.ActionCreate, ID: zone.ID})
	return &zone, nil
}

func (s *Store) GetZone(ctx context.Context, id string) (*domain.Zone, error) {
	var (
		zone      domain.Zone
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, created_at FROM zones WHERE id = ?
	`, id).Scan(&zone.ID, &zone.Name, &zone.Location, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}

	zone.CreatedAt = time.Unix(0, createdAt).UTC()
	return &zone, nil
}

func (s *Store) ListZones(ctx context.Context) ([]domain.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, location, created_at FROM zones ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var zones []domain.Zone
	for rows.Next() {
		var (
			zone      domain.Zone
			createdAt int64
		)
		if err := rows.Scan(&zone.ID, &zone.Name, &zone.Location, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zone.CreatedAt = time.Unix(0, createdAt).UTC()
		zones = append(zones, zone)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}

	return zones, nil
}

// DeleteZone removes a zone only. Items referencing it are left untouched;
// the dangling reference resolves to unzoned at the snapshot level.
func (s *Store) DeleteZone(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM zones WHERE id = ?
	`, id)
	if err != nil {
		return &domain.WriteError{Op: "delete zone", Err: err}
	}

	if err := requireRow(result, "delete zone"); err != nil {
		return err
	}

	s.feed.Publish(docstore.Event{Collection: docstore.CollectionZones, Action: docstore.ActionDelete, ID: id})
	return nil
}
