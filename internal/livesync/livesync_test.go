package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuanvinh/partsbin/internal/docstore"
	"github.com/xuanvinh/partsbin/internal/domain"
)

// fakeSource is an in-memory source whose contents and failure mode tests
// control directly.
type fakeSource struct {
	mu       sync.Mutex
	items    []domain.Item
	zones    []domain.Zone
	failList bool
}

func (f *fakeSource) ListItems(_ context.Context) ([]domain.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errors.New("permission denied")
	}
	out := make([]domain.Item, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeSource) ListZones(_ context.Context) ([]domain.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errors.New("permission denied")
	}
	out := make([]domain.Zone, len(f.zones))
	copy(out, f.zones)
	return out, nil
}

func (f *fakeSource) set(items []domain.Item, zones []domain.Zone) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = items
	f.zones = zones
}

func (f *fakeSource) fail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList = v
}

func item(id, name string, createdAt time.Time) domain.Item {
	return domain.Item{ID: id, Name: name, Quantity: 1, CreatedAt: createdAt}
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func newTestSync(t *testing.T, src *fakeSource) (*Sync, *docstore.Feed) {
	t.Helper()
	feed := docstore.NewFeed()
	s := New(src, feed, slog.Default())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return s, feed
}

func TestStartLoadsInitialSnapshot(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	src.set([]domain.Item{
		item("a", "old", base),
		item("b", "new", base.Add(time.Hour)),
	}, nil)

	s, _ := newTestSync(t, src)

	snap := s.Current()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "new", snap.Items[0].Name)
	assert.Equal(t, "old", snap.Items[1].Name)
}

func TestStartFetchError(t *testing.T) {
	src := &fakeSource{}
	src.fail(true)

	s := New(src, docstore.NewFeed(), slog.Default())
	err := s.Start(context.Background())
	require.Error(t, err)

	var fe *domain.FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestRegisterDeliversCurrentSnapshot(t *testing.T) {
	src := &fakeSource{}
	src.set([]domain.Item{item("a", "Resistor 10k", time.Now())}, nil)

	s, _ := newTestSync(t, src)

	ch := make(chan Snapshot, 4)
	unregister := s.Register(ObserverFunc(func(snap Snapshot) { ch <- snap }))
	defer unregister()

	snap := waitSnapshot(t, ch)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Resistor 10k", snap.Items[0].Name)
}

func TestChangeEventEmitsFreshSnapshot(t *testing.T) {
	src := &fakeSource{}
	s, feed := newTestSync(t, src)

	ch := make(chan Snapshot, 4)
	defer s.Register(ObserverFunc(func(snap Snapshot) { ch <- snap }))()
	waitSnapshot(t, ch) // registration delivery

	src.set([]domain.Item{item("a", "LED red", time.Now())}, nil)
	feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionCreate, ID: "a"})

	snap := waitSnapshot(t, ch)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "LED red", snap.Items[0].Name)
}

func TestSnapshotResortsDefensively(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	// Deliberately out of order.
	src.set([]domain.Item{
		item("a", "oldest", base),
		item("c", "newest", base.Add(2*time.Hour)),
		item("b", "middle", base.Add(time.Hour)),
	}, nil)

	s, _ := newTestSync(t, src)

	snap := s.Current()
	require.Len(t, snap.Items, 3)
	assert.Equal(t, []string{"newest", "middle", "oldest"},
		[]string{snap.Items[0].Name, snap.Items[1].Name, snap.Items[2].Name})
}

func TestFetchErrorHaltsEmissions(t *testing.T) {
	src := &fakeSource{}
	s, feed := newTestSync(t, src)

	ch := make(chan Snapshot, 4)
	defer s.Register(ObserverFunc(func(snap Snapshot) { ch <- snap }))()
	waitSnapshot(t, ch)

	src.fail(true)
	feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionUpdate, ID: "x"})

	assert.Eventually(t, func() bool { return s.Err() != nil }, 2*time.Second, 10*time.Millisecond)

	// Further events must not emit while halted.
	feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionUpdate, ID: "x"})
	select {
	case <-ch:
		t.Fatal("received snapshot while halted")
	case <-time.After(100 * time.Millisecond):
	}

	// Resume resubscribes the world.
	src.fail(false)
	src.set([]domain.Item{item("a", "back", time.Now())}, nil)
	require.NoError(t, s.Resume(context.Background()))
	assert.NoError(t, s.Err())

	snap := waitSnapshot(t, ch)
	require.Len(t, snap.Items, 1)
}

func TestUnregisterStopsDeliveries(t *testing.T) {
	src := &fakeSource{}
	s, feed := newTestSync(t, src)

	ch := make(chan Snapshot, 4)
	unregister := s.Register(ObserverFunc(func(snap Snapshot) { ch <- snap }))
	waitSnapshot(t, ch)

	unregister()
	unregister() // idempotent

	feed.Publish(docstore.Event{Collection: docstore.CollectionItems, Action: docstore.ActionCreate, ID: "a"})
	select {
	case <-ch:
		t.Fatal("received snapshot after unregister")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseIdempotent(t *testing.T) {
	src := &fakeSource{}
	s, _ := newTestSync(t, src)

	s.Close()
	s.Close()
}

func TestSnapshotZoneFor(t *testing.T) {
	zoneID := "z1"
	dangling := "gone"
	snap := newSnapshot(
		[]domain.Item{
			{ID: "a", Name: "zoned", Quantity: 1, ZoneID: &zoneID},
			{ID: "b", Name: "dangling", Quantity: 1, ZoneID: &dangling},
			{ID: "c", Name: "unzoned", Quantity: 1},
		},
		[]domain.Zone{{ID: "z1", Name: "Shelf A"}},
	)

	zoned := snap.FindItem("a")
	require.NotNil(t, zoned)
	zone := snap.ZoneFor(*zoned)
	require.NotNil(t, zone)
	assert.Equal(t, "Shelf A", zone.Name)

	assert.Nil(t, snap.ZoneFor(*snap.FindItem("b")))
	assert.Nil(t, snap.ZoneFor(*snap.FindItem("c")))
}

func TestSnapshotFilter(t *testing.T) {
	snap := newSnapshot([]domain.Item{
		{ID: "a", Name: "Resistor 10k", Quantity: 1},
		{ID: "b", Name: "resistor 4k7", Quantity: 1},
		{ID: "c", Name: "Capacitor 100uF", Quantity: 1},
	}, nil)

	matches := snap.Filter("RESISTOR")
	assert.Len(t, matches, 2)

	assert.Len(t, snap.Filter(""), 3)
	assert.Empty(t, snap.Filter("arduino"))
}

func TestSnapshotPage(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	items := make([]domain.Item, 5)
	for i := range items {
		items[i] = item(string(rune('a'+i)), "item", base.Add(time.Duration(i)*time.Minute))
	}
	snap := newSnapshot(items, nil)

	assert.Len(t, snap.Page(1, 2), 2)
	assert.Len(t, snap.Page(3, 2), 1)
	assert.Nil(t, snap.Page(4, 2))
	assert.Nil(t, snap.Page(0, 2))
}
