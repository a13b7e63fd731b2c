// Package draft implements the staging engine behind the QuickStart bulk
// data-entry wizard. It holds draft records for every entity type, tracks
// their submission lifecycle, and exposes a reducer-style action interface
// that the enrichment, persistence and submission services all go through.
package draft

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityType is the closed category of a draft item.
type EntityType string

const (
	EntityAccount    EntityType = "account"
	EntitySecurity   EntityType = "security"
	EntityCash       EntityType = "cash"
	EntityCrypto     EntityType = "crypto"
	EntityMetal      EntityType = "metal"
	EntityOtherAsset EntityType = "otherAsset"
	EntityLiability  EntityType = "liability"
)

// AllEntityTypes returns every entity type in display order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityAccount,
		EntitySecurity,
		EntityCash,
		EntityCrypto,
		EntityMetal,
		EntityOtherAsset,
		EntityLiability,
	}
}

// Valid reports whether t is a member of the closed entity type set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityAccount, EntitySecurity, EntityCash, EntityCrypto,
		EntityMetal, EntityOtherAsset, EntityLiability:
		return true
	}
	return false
}

// IsPosition reports whether items of this type belong to a target account.
// Position types are batch-created per account; accounts and liabilities are not.
func (t EntityType) IsPosition() bool {
	switch t {
	case EntitySecurity, EntityCash, EntityCrypto, EntityMetal, EntityOtherAsset:
		return true
	}
	return false
}

// Status is the lifecycle state of a draft item.
// Legal transitions: draft <-> ready, ready -> submitting,
// submitting -> added | error, error -> draft | ready (on re-evaluation).
// Added is terminal for the session.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusReady      Status = "ready"
	StatusSubmitting Status = "submitting"
	StatusAdded      Status = "added"
	StatusError      Status = "error"
)

// Fields is the form-value map of a draft item. Values arrive from the
// wizard as strings; numeric and date validation happens in the readiness
// predicate, the map itself is opaque to the store.
type Fields map[string]string

// Clone returns an independent copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Item is one staged, not-yet-committed record.
type Item struct {
	ID           string     `json:"id" msgpack:"id"`
	Type         EntityType `json:"entityType" msgpack:"entity_type"`
	Fields       Fields     `json:"fields" msgpack:"fields"`
	Status       Status     `json:"status" msgpack:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty" msgpack:"error_message,omitempty"`
	ServerID     string     `json:"serverId,omitempty" msgpack:"server_id,omitempty"`
}

// Clone returns a deep copy of the item.
func (it Item) Clone() Item {
	out := it
	out.Fields = it.Fields.Clone()
	return out
}

// SearchResult is one enrichment lookup hit cached against a draft row.
type SearchResult struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	AssetType string          `json:"assetType"`
}

// ReadinessFunc decides whether a field map satisfies the submission
// requirements for an entity type. Injected by the entity package so the
// store stays independent of per-type validation rules.
type ReadinessFunc func(t EntityType, f Fields) bool

// State is the whole client state of one wizard session.
type State struct {
	ItemsByType map[EntityType][]Item     `json:"itemsByType"`
	Selection   map[string]struct{}       `json:"-"`
	SearchCache map[string][]SearchResult `json:"-"`
	IsDirty     bool                      `json:"isDirty"`
	CurrentView string                    `json:"currentView"`
}

// NewState returns an empty session state.
func NewState() State {
	return State{
		ItemsByType: make(map[EntityType][]Item),
		Selection:   make(map[string]struct{}),
		SearchCache: make(map[string][]SearchResult),
	}
}

// clone returns a copy of the state that shares nothing mutable with the
// original. The reducer works copy-on-write so callers can hold snapshots.
func (s State) clone() State {
	out := State{
		ItemsByType: make(map[EntityType][]Item, len(s.ItemsByType)),
		Selection:   make(map[string]struct{}, len(s.Selection)),
		SearchCache: make(map[string][]SearchResult, len(s.SearchCache)),
		IsDirty:     s.IsDirty,
		CurrentView: s.CurrentView,
	}
	for t, items := range s.ItemsByType {
		cp := make([]Item, len(items))
		for i, it := range items {
			cp[i] = it.Clone()
		}
		out.ItemsByType[t] = cp
	}
	for id := range s.Selection {
		out.Selection[id] = struct{}{}
	}
	for id, results := range s.SearchCache {
		cp := make([]SearchResult, len(results))
		copy(cp, results)
		out.SearchCache[id] = cp
	}
	return out
}

// Item returns the item with the given id, if present.
func (s State) Item(id string) (Item, bool) {
	for _, items := range s.ItemsByType {
		for _, it := range items {
			if it.ID == id {
				return it, true
			}
		}
	}
	return Item{}, false
}

// find returns a pointer into the state's own slices. Only the reducer may
// use it, on a freshly cloned state.
func (s *State) find(id string) *Item {
	for t := range s.ItemsByType {
		items := s.ItemsByType[t]
		for i := range items {
			if items[i].ID == id {
				return &items[i]
			}
		}
	}
	return nil
}

// Snapshot is the persisted serialization of staged work: every non-added
// item plus the save timestamp. A snapshot with zero items is never written,
// so a stored snapshot always implies recoverable work exists.
type Snapshot struct {
	ItemsByType map[EntityType][]Item `json:"itemsByType" msgpack:"items_by_type"`
	SavedAt     time.Time             `json:"savedAt" msgpack:"saved_at"`
}

// TakeSnapshot builds the persisted form of the state, excluding items that
// have already been added on the backend.
func (s State) TakeSnapshot(now time.Time) Snapshot {
	snap := Snapshot{
		ItemsByType: make(map[EntityType][]Item),
		SavedAt:     now,
	}
	for t, items := range s.ItemsByType {
		var keep []Item
		for _, it := range items {
			if it.Status == StatusAdded {
				continue
			}
			keep = append(keep, it.Clone())
		}
		if len(keep) > 0 {
			snap.ItemsByType[t] = keep
		}
	}
	return snap
}

// Count returns the total number of items in the snapshot.
func (sn Snapshot) Count() int {
	n := 0
	for _, items := range sn.ItemsByType {
		n += len(items)
	}
	return n
}

// CountsByType returns per-entity-type item counts, omitting empty types.
func (sn Snapshot) CountsByType() map[EntityType]int {
	counts := make(map[EntityType]int)
	for t, items := range sn.ItemsByType {
		if len(items) > 0 {
			counts[t] = len(items)
		}
	}
	return counts
}
