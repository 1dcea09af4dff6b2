package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source says where a new snapshot came from.
type Source int

const (
	SourceLocal Source = iota
	SourceRemote
)

// Store owns the current Snapshot of one process. Changes are serialised:
// each successful one installs a new snapshot, calls the change hook and then
// every subscriber, in that order, before the next change starts.
//
// Hooks and subscribers run while the store is locked and must not call back
// into the store synchronously.
type Store struct {
	mu      sync.Mutex
	current Snapshot
	hook    func(Snapshot, Source)
	subs    map[int]func(Snapshot)
	nextSub int

	newID func(prefix string) string
	now   func() time.Time
}

type Option func(*Store)

// WithIDGenerator overrides how item and category ids are minted.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) { s.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

func NewStore(initial Snapshot, opts ...Option) *Store {
	s := &Store{
		current: initial.Clone(),
		subs:    make(map[int]func(Snapshot)),
		newID: func(prefix string) string {
			return prefix + "-" + uuid.NewString()
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// OnChange installs the single hook called after every change, before
// subscribers.
func (s *Store) OnChange(hook func(Snapshot, Source)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

// Subscribe registers fn for every new snapshot, local or replaced. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Replace installs a snapshot that arrived from elsewhere and reports
// whether it differed structurally from the current one.
func (s *Store) Replace(next Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Equal(s.current, next) {
		return false
	}
	s.current = next.Clone()
	s.notify(SourceRemote)
	return true
}

func (s *Store) SetActiveTab(tabID string) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithActiveTab(tabID) })
}

func (s *Store) SetDisplayTab(tabID string) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithDisplayTab(tabID) })
}

func (s *Store) SetTabContent(tabID, content string) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithTabContent(tabID, content) })
}

func (s *Store) AddCategory(label, icon, colorTag string) {
	s.apply(func(c Snapshot) (Snapshot, bool) {
		return c.WithCategoryAdded(s.newID("category"), label, icon, colorTag)
	})
}

func (s *Store) UpdateCategory(id string, patch CategoryPatch) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithCategoryUpdated(id, patch) })
}

func (s *Store) RemoveCategory(id string) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithCategoryRemoved(id) })
}

func (s *Store) AddItem(categoryID, text, detail string) {
	s.apply(func(c Snapshot) (Snapshot, bool) {
		return c.WithItemAdded(s.newID("item"), categoryID, text, detail, s.now().UnixMilli())
	})
}

func (s *Store) UpdateItem(id string, patch ItemPatch) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithItemUpdated(id, patch) })
}

func (s *Store) RemoveItem(id string) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithItemRemoved(id) })
}

func (s *Store) ClearAllItems() {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithItemsCleared() })
}

func (s *Store) ReorderItem(movedID, beforeID string) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithItemReordered(movedID, beforeID) })
}

func (s *Store) SetScrollSpeed(speed int) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithScrollSpeed(speed) })
}

func (s *Store) ToggleAutoScroll() {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithAutoScrollToggled() })
}

func (s *Store) SetFontSize(size FontSize) {
	s.apply(func(c Snapshot) (Snapshot, bool) { return c.WithFontSize(size) })
}

func (s *Store) apply(fn func(Snapshot) (Snapshot, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, changed := fn(s.current)
	if !changed {
		return
	}
	s.current = next
	s.notify(SourceLocal)
}

func (s *Store) notify(src Source) {
	snap := s.current
	if s.hook != nil {
		s.hook(snap.Clone(), src)
	}
	for _, fn := range s.subs {
		fn(snap.Clone())
	}
}
