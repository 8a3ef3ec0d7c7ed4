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

const itemColumns = "id, name, quantity, image_url, description, zone_id, created_at, created_by"

// CreateItem validates and persists a new item. The store assigns the ID and
// the creation timestamp; the caller's values for those fields are ignored.
func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	item.ID = s.newID()
	item.CreatedAt = s.now()

	if err := item.Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, quantity, image_url, description, zone_id, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Name, item.Quantity, item.ImageURL, item.Description, item.ZoneID,
		item.CreatedAt.UnixNano(), item.CreatedBy)
	if err != nil {
		return nil, &domain.WriteError{Op: "create item", Err: err}
	}

	s.feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionCreate, ID: item.ID})
	return &item, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns every item ordered by creation time descending, ties
// broken by ID so the order is deterministic.
func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// UpdateItem replaces the mutable fields of an item in a single write.
func (s *Store) UpdateItem(ctx context.Context, id, name, description, imageURL string, zoneID *string) (*domain.Item, error) {
	candidate := domain.Item{Name: name, ImageURL: imageURL, Description: description}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET name = ?, description = ?, image_url = ?, zone_id = ? WHERE id = ?
	`, name, description, imageURL, zoneID, id)
	if err != nil {
		return nil, &domain.WriteError{Op: "update item", Err: err}
	}

	if err := requireRow(result, "update item"); err != nil {
		return nil, err
	}

	s.feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionUpdate, ID: id})
	return s.GetItem(ctx, id)
}

// SetQuantity writes an absolute quantity. Negative values are rejected here
// as well as by the schema; callers are expected to have checked already.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int64) error {
	if quantity < 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "must not be negative"}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET quantity = ? WHERE id = ?
	`, quantity, id)
	if err != nil {
		return &domain.WriteError{Op: "update quantity", Err: err}
	}

	if err := requireRow(result, "update quantity"); err != nil {
		return err
	}

	s.feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionUpdate, ID: id})
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE id = ?
	`, id)
	if err != nil {
		return &domain.WriteError{Op: "delete item", Err: err}
	}

	if err := requireRow(result, "delete item"); err != nil {
		return err
	}

	s.feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionDelete, ID: id})
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var (
		item      domain.Item
		createdAt int64
	)
	err := row.Scan(&item.ID, &item.Name, &item.Quantity, &item.ImageURL,
		&item.Description, &item.ZoneID, &createdAt, &item.CreatedBy)
	if err != nil {
		return nil, err
	}
	item.CreatedAt = time.Unix(0, createdAt).UTC()

	// Reject malformed documents at the read boundary rather than trusting
	// whatever the store holds.
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("malformed item document %s: %w", item.ID, err)
	}
	return &item, nil
}

func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return &domain.WriteError{Op: op, Err: err}
	}
	if affected == 0 {
		return &domain.WriteError{Op: op, Err: domain.ErrNotFound}
	}
	return nil
}
