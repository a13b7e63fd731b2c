package draft

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Listener receives a snapshot of the state after every successful
// transition. Used by the persistence adapter for debounced autosave.
type Listener func(State)

// Store owns the session state. It is the single mutable resource of the
// engine: every component reads snapshots and proposes mutations by
// dispatching actions, which are applied sequentially under the lock.
// One Store is created per wizard session; there are no package globals.
type Store struct {
	mu        sync.RWMutex
	state     State
	ready     ReadinessFunc
	listeners []Listener
	log       zerolog.Logger
}

// NewStore creates a store with an empty session state.
func NewStore(ready ReadinessFunc, log zerolog.Logger) *Store {
	return &Store{
		state: NewState(),
		ready: ready,
		log:   log.With().Str("component", "draft_store").Logger(),
	}
}

// Subscribe registers a listener notified after every successful transition.
// Listeners are invoked synchronously with a state snapshot, outside the
// store lock.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Dispatch applies an action through the reducer. On error the state is
// left unchanged and listeners are not notified.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	next, err := Reduce(s.state, a, s.ready)
	if err != nil {
		s.mu.Unlock()
		s.log.Debug().Err(err).Msgf("rejected %T", a)
		return err
	}
	s.state = next
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	snapshot := next.clone()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}

// State returns a snapshot of the current state. The snapshot shares
// nothing mutable with the live state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Item returns a copy of the item with the given id.
func (s *Store) Item(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.state.Item(id)
	if !ok {
		return Item{}, false
	}
	return it.Clone(), true
}

// AddItem appends a new draft item and returns its generated id.
func (s *Store) AddItem(t EntityType, initial Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Dispatch(AddItem{ID: id, Type: t, InitialFields: initial}); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateItem merges partial fields into an item and re-evaluates readiness.
func (s *Store) UpdateItem(id string, fields Fields) error {
	return s.Dispatch(UpdateItem{ID: id, Fields: fields})
}

// DeleteItem removes a single item.
func (s *Store) DeleteItem(id string) error {
	return s.Dispatch(DeleteItems{IDs: []string{id}})
}

// DeleteItems removes several items at once.
func (s *Store) DeleteItems(ids []string) error {
	return s.Dispatch(DeleteItems{IDs: ids})
}

// DuplicateItem clones an item into a new row and returns the new id.
func (s *Store) DuplicateItem(id string) (string, error) {
	newID := uuid.NewString()
	if err := s.Dispatch(DuplicateItem{ID: id, NewID: newID}); err != nil {
		return "", err
	}
	return newID, nil
}

// ToggleSelect flips an item's selection membership.
func (s *Store) ToggleSelect(id string) error {
	return s.Dispatch(ToggleSelect{ID: id})
}

// SelectAll selects or deselects every item of one type.
func (s *Store) SelectAll(t EntityType, on bool) error {
	return s.Dispatch(SelectAll{Type: t, On: on})
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() error {
	return s.Dispatch(ClearSelection{})
}

// SetItemStatus reports a lifecycle outcome for an item. Used by the
// submission orchestrator and the enrichment service, never by the UI.
func (s *Store) SetItemStatus(id string, status Status, serverID, errorMessage string) error {
	return s.Dispatch(SetStatus{ID: id, Status: status, ServerID: serverID, ErrorMessage: errorMessage})
}

// SetSearchResults stores lookup results for a row.
func (s *Store) SetSearchResults(id string, results []SearchResult) error {
	return s.Dispatch(SetSearchResults{ID: id, Results: results})
}

// ClearSearchResults drops cached lookup results for a row.
func (s *Store) ClearSearchResults(id string) error {
	return s.Dispatch(ClearSearchResults{ID: id})
}

// RestoreSnapshot replaces staged items from a persisted snapshot.
func (s *Store) RestoreSnapshot(snap Snapshot) error {
	return s.Dispatch(RestoreSnapshot{Snapshot: snap})
}

// ClearAll removes every item of one type, or everything when t is empty.
func (s *Store) ClearAll(t EntityType) error {
	return s.Dispatch(ClearAll{Type: t})
}

// SetView switches the active wizard step.
func (s *Store) SetView(view string) error {
	return s.Dispatch(SetView{View: view})
}
