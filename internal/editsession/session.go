// Package editsession reconciles the record open in a detail view with
// concurrent live updates to the same record. The one rule that matters:
// while an edit is in progress, incoming snapshots may refresh the held
// canonical copy but must never touch the draft.
package editsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xuanvinh/partsbin/internal/domain"
	"github.com/xuanvinh/partsbin/internal/livesync"
)

type State int

const (
	StateClosed State = iota
	StateViewing
	StateEditing
)

func (s State) String() string {
	switch s {
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	default:
		return "closed"
	}
}

var (
	ErrNotViewing = errors.New("no record open for viewing")
	ErrNotEditing = errors.New("no edit in progress")
)

// Draft holds the UI-owned copy of an item's mutable fields. It exists only
// while an edit is in progress and is never persisted as-is.
type Draft struct {
	Name        string
	Description string
	ZoneID      *string

	// StagedImageURL is a freshly uploaded asset URL that replaces the
	// item's image on save. Empty means keep the current image.
	StagedImageURL string
}

// itemWriter is the single merged-write path used on save.
type itemWriter interface {
	UpdateItem(ctx context.Context, id, name, description, imageURL string, zoneID *string) (*domain.Item, error)
}

type Session struct {
	writer itemWriter
	logger *slog.Logger

	// mu guards the state machine: snapshot reconciliation arrives from the
	// live-sync dispatch goroutine while the UI drives everything else.
	mu        sync.Mutex
	state     State
	canonical *domain.Item
	draft     *Draft
}

// NewSession creates a closed session.
func NewSession(writer itemWriter, logger *slog.Logger) *Session {
	return &Session{writer: writer, logger: logger, state: StateClosed}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Record returns a copy of the displayed record, or nil when closed.
func (s *Session) Record() *domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record()
}

func (s *Session) record() *domain.Item {
	if s.canonical == nil {
		return nil
	}
	record := *s.canonical
	return &record
}

// Draft returns a copy of the active draft.
func (s *Session) Draft() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, false
	}
	return *s.draft, true
}

// Open shows a record in the detail view, replacing whatever was open.
func (s *Session) Open(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := item
	s.canonical = &record
	s.draft = nil
	s.state = StateViewing
}

// BeginEdit snapshots the record's mutable fields into a new draft.
func (s *Session) BeginEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateViewing {
		return ErrNotViewing
	}
	s.draft = &Draft{
		Name:        s.canonical.Name,
		Description: s.canonical.Description,
		ZoneID:      s.canonical.ZoneID,
	}
	s.state = StateEditing
	return nil
}

func (s *Session) SetName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return ErrNotEditing
	}
	s.draft.Name = name
	return nil
}

func (s *Session) SetDescription(description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return ErrNotEditing
	}
	s.draft.Description = description
	return nil
}

func (s *Session) SetZone(zoneID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return ErrNotEditing
	}
	s.draft.ZoneID = zoneID
	return nil
}

// StageImage records an already-uploaded asset URL to replace the item's
// image on save.
func (s *Session) StageImage(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return ErrNotEditing
	}
	s.draft.StagedImageURL = url
	return nil
}

// OnSnapshot implements livesync.Observer. While viewing, the displayed
// record refreshes in place. While editing, only the canonical reference is
// updated; the draft stays untouched. If the open record no longer exists,
// the session closes instead of editing a ghost.
func (s *Session) OnSnapshot(snap livesync.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}

	current := snap.FindItem(s.canonical.ID)
	if current == nil {
		s.logger.Info("open record deleted remotely, closing session", "item_id", s.canonical.ID)
		s.close()
		return
	}

	s.canonical = current
}

// Save merges the draft into a single write. On success the session returns
// to viewing with the updated record; on failure it stays in editing with
// the draft preserved so the user can retry or cancel.
func (s *Session) Save(ctx context.Context) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return nil, ErrNotEditing
	}

	imageURL := s.canonical.ImageURL
	if s.draft.StagedImageURL != "" {
		imageURL = s.draft.StagedImageURL
	}

	updated, err := s.writer.UpdateItem(ctx, s.canonical.ID, s.draft.Name, s.draft.Description, imageURL, s.draft.ZoneID)
	if err != nil {
		return nil, err
	}

	s.canonical = updated
	s.draft = nil
	s.state = StateViewing
	return s.record(), nil
}

// Cancel discards the draft and reverts the view to the last-known
// canonical record.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEditing {
		return
	}
	s.draft = nil
	s.state = StateViewing
}

// Close leaves the detail view. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
}

func (s *Session) close() {
	s.canonical = nil
	s.draft = nil
	s.state = StateClosed
}
