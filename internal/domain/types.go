package domain

import (
	"strings"
	"time"
)

// Item is a tracked inventory component. Documents coming off the wire are
// validated with Validate before they are trusted; the store itself enforces
// no schema.
type Item struct {
	ID          string
	Name        string
	Quantity    int64
	ImageURL    string
	Description string
	ZoneID      *string
	CreatedAt   time.Time
	CreatedBy   string
}

// Validate checks the invariants every persisted item must hold.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if i.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	return nil
}

// Zone is a physical storage location. Deleting a zone does not cascade to
// items; an item holding a dangling ZoneID is treated as unzoned.
type Zone struct {
	ID        string
	Name      string
	Location  string
	CreatedAt time.Time
}

func (z *Zone) Validate() error {
	if strings.TrimSpace(z.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}
