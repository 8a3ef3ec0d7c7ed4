package editsession

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuanvinh/partsbin/internal/domain"
	"github.com/xuanvinh/partsbin/internal/livesync"
)

// recordingWriter applies updates to an in-memory record and remembers how
// many writes happened.
type recordingWriter struct {
	record *domain.Item
	writes int
	err    error
}

func (w *recordingWriter) UpdateItem(_ context.Context, id, name, description, imageURL string, zoneID *string) (*domain.Item, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.writes++
	updated := *w.record
	updated.Name = name
	updated.Description = description
	updated.ImageURL = imageURL
	updated.ZoneID = zoneID
	w.record = &updated
	out := updated
	return &out, nil
}

func testItem() domain.Item {
	return domain.Item{
		ID:          "item-1",
		Name:        "Resistor 10k",
		Quantity:    5,
		ImageURL:    "https://img.example.com/r10k.jpg",
		Description: "1/4W",
		CreatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy:   "user-1",
	}
}

func snapshotWith(items ...domain.Item) livesync.Snapshot {
	return livesync.Snapshot{Items: items}
}

func newViewing(t *testing.T, w itemWriter) *Session {
	t.Helper()
	s := NewSession(w, slog.Default())
	s.Open(testItem())
	require.Equal(t, StateViewing, s.State())
	return s
}

func TestLifecycle(t *testing.T) {
	w := &recordingWriter{record: ptr(testItem())}
	s := NewSession(w, slog.Default())
	assert.Equal(t, StateClosed, s.State())
	assert.Nil(t, s.Record())

	s.Open(testItem())
	assert.Equal(t, StateViewing, s.State())

	require.NoError(t, s.BeginEdit())
	assert.Equal(t, StateEditing, s.State())

	_, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateViewing, s.State())

	s.Close()
	assert.Equal(t, StateClosed, s.State())
	s.Close() // idempotent
}

func TestBeginEditRequiresViewing(t *testing.T) {
	s := NewSession(&recordingWriter{}, slog.Default())
	assert.ErrorIs(t, s.BeginEdit(), ErrNotViewing)
	assert.ErrorIs(t, s.SetName("x"), ErrNotEditing)
}

func TestViewingRefreshesInPlace(t *testing.T) {
	s := newViewing(t, &recordingWriter{})

	remote := testItem()
	remote.Name = "Resistor 10k 1%"
	remote.Quantity = 9
	s.OnSnapshot(snapshotWith(remote))

	record := s.Record()
	require.NotNil(t, record)
	assert.Equal(t, "Resistor 10k 1%", record.Name)
	assert.Equal(t, int64(9), record.Quantity)
}

func TestEditingPreservesDraftAgainstRemoteUpdate(t *testing.T) {
	s := newViewing(t, &recordingWriter{})
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetName("Resistor 10k metal film"))
	require.NoError(t, s.SetDescription("replacement stock"))
	require.NoError(t, s.StageImage("https://img.example.com/new.jpg"))

	// A conflicting version of the same record arrives mid-edit.
	remote := testItem()
	remote.Name = "SOMEONE ELSE RENAMED THIS"
	remote.Description = "remote description"
	s.OnSnapshot(snapshotWith(remote))

	draft, ok := s.Draft()
	require.True(t, ok)
	assert.Equal(t, "Resistor 10k metal film", draft.Name)
	assert.Equal(t, "replacement stock", draft.Description)
	assert.Equal(t, "https://img.example.com/new.jpg", draft.StagedImageURL)

	// But the canonical reference did track the remote version.
	assert.Equal(t, "SOMEONE ELSE RENAMED THIS", s.Record().Name)
	assert.Equal(t, StateEditing, s.State())
}

func TestSaveMergesDraftInSingleWrite(t *testing.T) {
	w := &recordingWriter{record: ptr(testItem())}
	s := newViewing(t, w)
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetName("Renamed"))
	require.NoError(t, s.SetDescription("new notes"))
	require.NoError(t, s.StageImage("https://img.example.com/cropped.jpg"))

	saved, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, w.writes)
	assert.Equal(t, "Renamed", saved.Name)
	assert.Equal(t, "new notes", saved.Description)
	assert.Equal(t, "https://img.example.com/cropped.jpg", saved.ImageURL)
	assert.Equal(t, StateViewing, s.State())

	_, ok := s.Draft()
	assert.False(t, ok)
}

func TestSaveWithoutStagedImageKeepsCurrent(t *testing.T) {
	w := &recordingWriter{record: ptr(testItem())}
	s := newViewing(t, w)
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetName("Renamed"))

	saved, err := s.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testItem().ImageURL, saved.ImageURL)
}

func TestSaveUnchangedDraftIsIdempotent(t *testing.T) {
	w := &recordingWriter{record: ptr(testItem())}
	s := newViewing(t, w)
	before := *s.Record()

	require.NoError(t, s.BeginEdit())
	saved, err := s.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, before, *saved)
}

func TestSaveFailurePreservesDraft(t *testing.T) {
	w := &recordingWriter{record: ptr(testItem()), err: &domain.WriteError{Op: "update item", Err: errors.New("rejected")}}
	s := newViewing(t, w)
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetName("Renamed"))

	_, err := s.Save(context.Background())
	require.Error(t, err)

	var we *domain.WriteError
	assert.ErrorAs(t, err, &we)
	assert.Equal(t, StateEditing, s.State())

	draft, ok := s.Draft()
	require.True(t, ok)
	assert.Equal(t, "Renamed", draft.Name)

	// Displayed fields were never optimistically mutated.
	assert.Equal(t, testItem().Name, s.Record().Name)
}

func TestCancelRevertsToCanonical(t *testing.T) {
	s := newViewing(t, &recordingWriter{})
	require.NoError(t, s.BeginEdit())
	require.NoError(t, s.SetName("scratch that"))

	s.Cancel()
	assert.Equal(t, StateViewing, s.State())
	assert.Equal(t, testItem().Name, s.Record().Name)

	_, ok := s.Draft()
	assert.False(t, ok)
}

func TestRemoteDeleteClosesWhileViewing(t *testing.T) {
	s := newViewing(t, &recordingWriter{})

	s.OnSnapshot(snapshotWith()) // record gone
	assert.Equal(t, StateClosed, s.State())
	assert.Nil(t, s.Record())
}

func TestRemoteDeleteClosesWhileEditing(t *testing.T) {
	s := newViewing(t, &recordingWriter{})
	require.NoError(t, s.BeginEdit())

	s.OnSnapshot(snapshotWith())
	assert.Equal(t, StateClosed, s.State())

	_, ok := s.Draft()
	assert.False(t, ok)
	assert.ErrorIs(t, s.SetName("too late"), ErrNotEditing)
}

func TestSnapshotForOtherRecordsIgnored(t *testing.T) {
	s := newViewing(t, &recordingWriter{})
	require.NoError(t, s.BeginEdit())

	other := domain.Item{ID: "item-2", Name: "Other", Quantity: 1}
	s.OnSnapshot(snapshotWith(testItem(), other))

	assert.Equal(t, StateEditing, s.State())
	assert.Equal(t, testItem().Name, s.Record().Name)
}

func ptr(i domain.Item) *domain.Item { return &i }
