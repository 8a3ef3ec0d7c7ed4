// Package livesync keeps a continuously updated snapshot of the inventory
// collections and fans it out to observers. Every change notification causes
// a full reload: observers always receive the whole world, never a diff.
package livesync

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/xuanvinh/partsbin/internal/docstore"
	"github.com/xuanvinh/partsbin/internal/domain"
)

// Observer receives each new snapshot. Calls arrive from a single dispatch
// goroutine in feed order; implementations must treat the snapshot as
// read-only.
type Observer interface {
	OnSnapshot(Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnSnapshot(s Snapshot) { f(s) }

// source is the subset of the document store the sync reads from.
type source interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
	ListZones(ctx context.Context) ([]domain.Zone, error)
}

// changeFeed is the subscription half of the store's change feed.
type changeFeed interface {
	Subscribe() (<-chan docstore.Event, func())
}

type Sync struct {
	src    source
	feed   changeFeed
	logger *slog.Logger

	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	current   Snapshot
	lastErr   error
	halted    bool
	started   bool
	closed    bool

	cancelFeed func()
	done       chan struct{}
}

func New(src source, feed changeFeed, logger *slog.Logger) *Sync {
	return &Sync{
		src:       src,
		feed:      feed,
		logger:    logger,
		observers: make(map[int]Observer),
		done:      make(chan struct{}),
	}
}

// Start performs the initial load and begins dispatching snapshots for every
// change event. The context governs reloads for the life of the sync.
func (s *Sync) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.reload(ctx); err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	}

	events, cancel := s.feed.Subscribe()
	s.mu.Lock()
	s.cancelFeed = cancel
	s.mu.Unlock()

	go s.run(ctx, events)
	return nil
}

func (s *Sync) run(ctx context.Context, events <-chan docstore.Event) {
	defer close(s.done)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.mu.Lock()
			halted := s.halted
			s.mu.Unlock()
			if halted {
				// A reload failed earlier; stay quiet until Resume.
				continue
			}
			if err := s.reload(ctx); err != nil {
				s.logger.Error("live sync reload failed",
					"collection", ev.Collection, "action", ev.Action, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// reload fetches both collections, rebuilds the snapshot and notifies
// observers. On failure it records a FetchError and halts emissions.
func (s *Sync) reload(ctx context.Context) error {
	items, err := s.src.ListItems(ctx)
	if err == nil {
		var zones []domain.Zone
		zones, err = s.src.ListZones(ctx)
		if err == nil {
			snap := newSnapshot(items, zones)
			s.mu.Lock()
			s.current = snap
			s.lastErr = nil
			observers := snapshotObservers(s.observers)
			s.mu.Unlock()

			for _, o := range observers {
				o.OnSnapshot(snap)
			}
			return nil
		}
	}

	ferr := &domain.FetchError{Err: err}
	s.mu.Lock()
	s.lastErr = ferr
	s.halted = true
	s.mu.Unlock()
	return ferr
}

// Resume retries the load after a fetch error and restarts emissions if it
// succeeds.
func (s *Sync) Resume(ctx context.Context) error {
	s.mu.Lock()
	s.halted = false
	s.mu.Unlock()
	return s.reload(ctx)
}

// Register adds an observer and immediately delivers the current snapshot.
// The returned unregister func is idempotent.
func (s *Sync) Register(o Observer) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	snap := s.current
	started := s.started
	s.mu.Unlock()

	if started {
		o.OnSnapshot(snap)
	}

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Current returns the most recent snapshot.
func (s *Sync) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Err returns the fetch error that halted emissions, or nil.
func (s *Sync) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close cancels the feed subscription and waits for the dispatch goroutine
// to stop. It is idempotent.
func (s *Sync) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancelFeed
	started := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-s.done
	}
}

func snapshotObservers(m map[int]Observer) []Observer {
	out := make([]Observer, 0, len(m))
	for _, o := range m {
		out = append(out, o)
	}
	return out
}

// Snapshot is an immutable view of all items and zones at one point in time.
type Snapshot struct {
	Items []domain.Item
	Zones []domain.Zone

	zonesByID map[string]int
}

func newSnapshot(items []domain.Item, zones []domain.Zone) Snapshot {
	// Defensive re-sort: the store already orders by creation time, but the
	// remote ordering primitive is not trusted to be race-free with pending
	// writes.
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})

	byID := make(map[string]int, len(zones))
	for i, z := range zones {
		byID[z.ID] = i
	}

	return Snapshot{Items: items, Zones: zones, zonesByID: byID}
}

// FindItem returns the item with the given ID, or nil.
func (s Snapshot) FindItem(id string) *domain.Item {
	for i := range s.Items {
		if s.Items[i].ID == id {
			item := s.Items[i]
			return &item
		}
	}
	return nil
}

// ZoneFor resolves an item's zone. A nil or dangling reference yields nil,
// meaning the item is uncategorized; no item write is needed for that.
func (s Snapshot) ZoneFor(item domain.Item) *domain.Zone {
	if item.ZoneID == nil {
		return nil
	}
	i, ok := s.zonesByID[*item.ZoneID]
	if !ok {
		return nil
	}
	zone := s.Zones[i]
	return &zone
}

// Filter returns the items whose name contains term, case-insensitively.
// An empty term returns all items.
func (s Snapshot) Filter(term string) []domain.Item {
	if term == "" {
		return s.Items
	}
	var out []domain.Item
	for _, item := range s.Items {
		if containsFold(item.Name, term) {
			out = append(out, item)
		}
	}
	return out
}

// Page returns the given 1-based page of items.
func (s Snapshot) Page(page, size int) []domain.Item {
	if page < 1 || size < 1 {
		return nil
	}
	start := (page - 1) * size
	if start >= len(s.Items) {
		return nil
	}
	end := start + size
	if end > len(s.Items) {
		end = len(s.Items)
	}
	return s.Items[start:end]
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
