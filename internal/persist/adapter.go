package persist

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliodraft/foliodraft/internal/draft"
)

const (
	// DefaultTTL is how long a stored snapshot stays restorable.
	DefaultTTL = 8 * time.Hour

	// DefaultDebounce is the autosave quiet window: a burst of edits
	// produces one write, not one per keystroke.
	DefaultDebounce = 1500 * time.Millisecond
)

// Summary describes a restorable snapshot without mutating live state.
// The caller decides whether to offer restore; nothing restores silently.
type Summary struct {
	SavedAt      time.Time                `json:"savedAt"`
	Total        int                      `json:"total"`
	CountsByType map[draft.EntityType]int `json:"countsByType"`
}

// Options configures an Adapter. Zero values fall back to the defaults.
type Options struct {
	Key      string
	TTL      time.Duration
	Debounce time.Duration
	Now      func() time.Time
}

// Adapter connects the draft store to the durable snapshot slot: debounced
// autosave on dirty state changes, manual check/restore/dismiss/clear.
type Adapter struct {
	slot  *Slot
	store *draft.Store
	log   zerolog.Logger

	key      string
	ttl      time.Duration
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	unsaved *draft.State    // latest dirty state awaiting the quiet window
	pending *draft.Snapshot // checked snapshot offered for restore
}

// NewAdapter creates a persistence adapter and subscribes it to the store's
// state changes.
func NewAdapter(slot *Slot, store *draft.Store, log zerolog.Logger, opts Options) *Adapter {
	if opts.Key == "" {
		opts.Key = DefaultSlot
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &Adapter{
		slot:     slot,
		store:    store,
		log:      log.With().Str("component", "persist_adapter").Logger(),
		key:      opts.Key,
		ttl:      opts.TTL,
		debounce: opts.Debounce,
		now:      opts.Now,
	}
	store.Subscribe(a.onStateChange)
	return a
}

// onStateChange schedules a debounced autosave for dirty states. Clean
// states (fresh session, just restored) are never written.
func (a *Adapter) onStateChange(state draft.State) {
	if !state.IsDirty {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.unsaved = &state
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.flush)
}

// flush writes the latest unsaved state, or deletes the stored snapshot
// when nothing stageable remains. I/O failures are logged and swallowed:
// the in-memory store is the source of truth regardless.
func (a *Adapter) flush() {
	a.mu.Lock()
	state := a.unsaved
	a.unsaved = nil
	a.mu.Unlock()

	if state == nil {
		return
	}

	snap := state.TakeSnapshot(a.now())
	if snap.Count() == 0 {
		if err := a.slot.Delete(a.key); err != nil {
			a.log.Warn().Err(err).Msg("Failed to delete empty snapshot")
			return
		}
		a.log.Debug().Msg("Deleted stored snapshot (no staged items left)")
		return
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to encode snapshot")
		return
	}
	if err := a.slot.Write(a.key, data, snap.SavedAt, a.ttl); err != nil {
		a.log.Warn().Err(err).Msg("Failed to write snapshot")
		return
	}
	a.log.Debug().Int("items", snap.Count()).Msg("Autosaved draft snapshot")
}

// Flush forces any pending autosave to disk immediately. Called on shutdown.
func (a *Adapter) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.flush()
}

// CheckForDraft reads the stored snapshot and returns its summary without
// touching live state. Expired or empty snapshots are deleted and reported
// as absent. The decoded snapshot is kept aside for a later RestoreDraft.
func (a *Adapter) CheckForDraft() (*Summary, error) {
	data, savedAt, ok, err := a.slot.Read(a.key)
	if err != nil {
		return nil, fmt.Errorf("check for draft: %w", err)
	}
	if !ok {
		return nil, nil
	}

	if a.now().Sub(savedAt) > a.ttl {
		a.log.Info().Time("saved_at", savedAt).Msg("Discarding stale draft snapshot")
		if err := a.slot.Delete(a.key); err != nil {
			a.log.Warn().Err(err).Msg("Failed to delete stale snapshot")
		}
		return nil, nil
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		a.log.Warn().Err(err).Msg("Discarding undecodable draft snapshot")
		if delErr := a.slot.Delete(a.key); delErr != nil {
			a.log.Warn().Err(delErr).Msg("Failed to delete corrupt snapshot")
		}
		return nil, nil
	}
	if snap.Count() == 0 {
		if err := a.slot.Delete(a.key); err != nil {
			a.log.Warn().Err(err).Msg("Failed to delete empty snapshot")
		}
		return nil, nil
	}

	a.mu.Lock()
	a.pending = &snap
	a.mu.Unlock()

	return &Summary{
		SavedAt:      snap.SavedAt,
		Total:        snap.Count(),
		CountsByType: snap.CountsByType(),
	}, nil
}

// RestoreDraft applies the checked snapshot to the store. It is only ever
// invoked by an explicit user action, never automatically.
func (a *Adapter) RestoreDraft() error {
	a.mu.Lock()
	pending := a.pending
	a.mu.Unlock()

	if pending == nil {
		if _, err := a.CheckForDraft(); err != nil {
			return err
		}
		a.mu.Lock()
		pending = a.pending
		a.mu.Unlock()
		if pending == nil {
			return fmt.Errorf("no saved draft to restore")
		}
	}

	if err := a.store.RestoreSnapshot(*pending); err != nil {
		return fmt.Errorf("restore draft: %w", err)
	}

	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
	a.log.Info().Int("items", pending.Count()).Msg("Restored draft snapshot")
	return nil
}

// DismissDraft hides the restore offer for this session. The snapshot stays
// on disk, so a reload within the expiration window is offered it again.
func (a *Adapter) DismissDraft() {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
	a.log.Debug().Msg("Draft restore offer dismissed")
}

// ClearDraft deletes the stored snapshot outright. One-way.
func (a *Adapter) ClearDraft() error {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()

	if err := a.slot.Delete(a.key); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	a.log.Info().Msg("Cleared stored draft snapshot")
	return nil
}
