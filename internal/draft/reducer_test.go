package draft

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testReady treats a row as ready when it has a non-empty "name" field.
// Real per-type rules live in the entity package; the reducer only needs
// some predicate.
func testReady(t EntityType, f Fields) bool {
	return f["name"] != ""
}

func TestReduceAddItem(t *testing.T) {
	s := NewState()

	s, err := Reduce(s, AddItem{ID: "a1", Type: EntityAccount}, testReady)
	require.NoError(t, err)
	require.Len(t, s.ItemsByType[EntityAccount], 1)
	assert.Equal(t, StatusDraft, s.ItemsByType[EntityAccount][0].Status)
	assert.True(t, s.IsDirty)

	// Initial fields that already satisfy readiness yield a ready row.
	s, err = Reduce(s, AddItem{ID: "a2", Type: EntityAccount, InitialFields: Fields{"name": "Broker"}}, testReady)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s.ItemsByType[EntityAccount][1].Status)
}

func TestReduceAddItemRejectsInvalid(t *testing.T) {
	s := NewState()

	_, err := Reduce(s, AddItem{ID: "a1", Type: "house"}, testReady)
	assert.Error(t, err)

	_, err = Reduce(s, AddItem{Type: EntityAccount}, testReady)
	assert.Error(t, err)

	s, err = Reduce(s, AddItem{ID: "a1", Type: EntityAccount}, testReady)
	require.NoError(t, err)
	_, err = Reduce(s, AddItem{ID: "a1", Type: EntityCash}, testReady)
	assert.Error(t, err, "duplicate id must be rejected")
}

func TestReduceIsPure(t *testing.T) {
	s := NewState()
	s, err := Reduce(s, AddItem{ID: "a1", Type: EntityAccount, InitialFields: Fields{"name": "Broker"}}, testReady)
	require.NoError(t, err)

	before := s.ItemsByType[EntityAccount][0].Fields["name"]
	next, err := Reduce(s, UpdateItem{ID: "a1", Fields: Fields{"name": "Changed"}}, testReady)
	require.NoError(t, err)

	assert.Equal(t, before, s.ItemsByType[EntityAccount][0].Fields["name"], "input state must not be mutated")
	assert.Equal(t, "Changed", next.ItemsByType[EntityAccount][0].Fields["name"])
}

func TestReduceUpdateItemStatusBoundary(t *testing.T) {
	s := NewState()
	s, err := Reduce(s, AddItem{ID: "a1", Type: EntityAccount}, testReady)
	require.NoError(t, err)

	// Crossing the readiness boundary in both directions.
	s, err = Reduce(s, UpdateItem{ID: "a1", Fields: Fields{"name": "Broker"}}, testReady)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, s.ItemsByType[EntityAccount][0].Status)

	s, err = Reduce(s, UpdateItem{ID: "a1", Fields: Fields{"name": ""}}, testReady)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, s.ItemsByType[EntityAccount][0].Status)
}

func TestReduceUpdateItemClearsError(t *testing.T) {
	s := stateWithStatus(t, "a1", StatusError, Fields{"name": "Broker"})
	s.ItemsByType[EntityAccount][0].ErrorMessage = "backend exploded"

	s, err := Reduce(s, UpdateItem{ID: "a1", Fields: Fields{"name": "Broker 2"}}, testReady)
	require.NoError(t, err)
	it := s.ItemsByType[EntityAccount][0]
	assert.Empty(t, it.ErrorMessage)
	assert.Equal(t, StatusReady, it.Status)
}

func TestReduceUpdateItemRejectsLockedRows(t *testing.T) {
	for _, locked := range []Status{StatusSubmitting, StatusAdded} {
		s := stateWithStatus(t, "a1", locked, Fields{"name": "Broker"})
		_, err := Reduce(s, UpdateItem{ID: "a1", Fields: Fields{"name": "x"}}, testReady)
		assert.Error(t, err, "rows in %s must be immutable", locked)
	}
}

func TestReduceDeleteItems(t *testing.T) {
	s := NewState()
	for _, id := range []string{"a1", "a2", "a3"} {
		var err error
		s, err = Reduce(s, AddItem{ID: id, Type: EntityAccount}, testReady)
		require.NoError(t, err)
	}
	s, err := Reduce(s, ToggleSelect{ID: "a2"}, testReady)
	require.NoError(t, err)
	s, err = Reduce(s, SetSearchResults{ID: "a2", Results: []SearchResult{{Symbol: "X"}}}, testReady)
	require.NoError(t, err)

	s, err = Reduce(s, DeleteItems{IDs: []string{"a1", "a2"}}, testReady)
	require.NoError(t, err)
	require.Len(t, s.ItemsByType[EntityAccount], 1)
	assert.Equal(t, "a3", s.ItemsByType[EntityAccount][0].ID)
	assert.NotContains(t, s.Selection, "a2", "deleted rows leave the selection")
	assert.NotContains(t, s.SearchCache, "a2", "deleted rows leave the search cache")
}

func TestReduceDuplicateItem(t *testing.T) {
	s := NewState()
	s, err := Reduce(s, AddItem{ID: "a1", Type: EntityAccount, InitialFields: Fields{"name": "Broker"}}, testReady)
	require.NoError(t, err)
	s, err = Reduce(s, AddItem{ID: "a2", Type: EntityAccount}, testReady)
	require.NoError(t, err)

	s, err = Reduce(s, DuplicateItem{ID: "a1", NewID: "a1-copy"}, testReady)
	require.NoError(t, err)

	items := s.ItemsByType[EntityAccount]
	require.Len(t, items, 3)
	assert.Equal(t, []string{"a1", "a1-copy", "a2"}, []string{items[0].ID, items[1].ID, items[2].ID},
		"duplicate is inserted directly after its source")
	assert.Equal(t, "Broker", items[1].Fields["name"])
	assert.Equal(t, StatusReady, items[1].Status)

	// Mutating the copy leaves the source alone.
	s, err = Reduce(s, UpdateItem{ID: "a1-copy", Fields: Fields{"name": "Other"}}, testReady)
	require.NoError(t, err)
	assert.Equal(t, "Broker", s.ItemsByType[EntityAccount][0].Fields["name"])
}

func TestReduceSetStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		act     SetStatus
		wantErr bool
	}{
		{"ready to submitting", StatusReady, SetStatus{Status: StatusSubmitting}, false},
		{"draft to submitting", StatusDraft, SetStatus{Status: StatusSubmitting}, true},
		{"error to submitting", StatusError, SetStatus{Status: StatusSubmitting}, true},
		{"submitting to added", StatusSubmitting, SetStatus{Status: StatusAdded, ServerID: "srv-1"}, false},
		{"submitting to added without server id", StatusSubmitting, SetStatus{Status: StatusAdded}, true},
		{"ready to added", StatusReady, SetStatus{Status: StatusAdded, ServerID: "srv-1"}, true},
		{"submitting to error", StatusSubmitting, SetStatus{Status: StatusError, ErrorMessage: "boom"}, false},
		{"draft to error", StatusDraft, SetStatus{Status: StatusError}, true},
		{"error to ready", StatusError, SetStatus{Status: StatusReady}, false},
		{"error to draft", StatusError, SetStatus{Status: StatusDraft}, false},
		{"added to ready", StatusAdded, SetStatus{Status: StatusReady}, true},
		{"added to error", StatusAdded, SetStatus{Status: StatusError}, true},
		{"added to submitting", StatusAdded, SetStatus{Status: StatusSubmitting}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stateWithStatus(t, "a1", tt.from, Fields{"name": "Broker"})
			act := tt.act
			act.ID = "a1"
			next, err := Reduce(s, act, testReady)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.from, s.ItemsByType[EntityAccount][0].Status, "state unchanged on rejection")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, act.Status, next.ItemsByType[EntityAccount][0].Status)
		})
	}
}

func TestReduceSetStatusErrorKeepsFields(t *testing.T) {
	s := stateWithStatus(t, "a1", StatusSubmitting, Fields{"name": "Broker"})
	s, err := Reduce(s, SetStatus{ID: "a1", Status: StatusError, ErrorMessage: "timeout"}, testReady)
	require.NoError(t, err)

	it := s.ItemsByType[EntityAccount][0]
	assert.Equal(t, "timeout", it.ErrorMessage)
	assert.Equal(t, "Broker", it.Fields["name"], "failed rows retain their fields for retry")
}

func TestReduceSetStatusRetryRequiresReadiness(t *testing.T) {
	s := stateWithStatus(t, "a1", StatusError, Fields{})
	_, err := Reduce(s, SetStatus{ID: "a1", Status: StatusReady}, testReady)
	assert.Error(t, err, "an errored row with incomplete fields cannot re-enter the ready pool")
}

func TestReduceRestoreSnapshot(t *testing.T) {
	snap := Snapshot{
		SavedAt: time.Now(),
		ItemsByType: map[EntityType][]Item{
			EntityAccount: {
				{ID: "a1", Type: EntityAccount, Fields: Fields{"name": "Broker"}, Status: StatusError, ErrorMessage: "old failure", ServerID: "stale"},
				{ID: "a2", Type: EntityAccount, Fields: Fields{}, Status: StatusReady},
			},
		},
	}

	s := NewState()
	s, err := Reduce(s, AddItem{ID: "pre", Type: EntityCash}, testReady)
	require.NoError(t, err)

	s, err = Reduce(s, RestoreSnapshot{Snapshot: snap}, testReady)
	require.NoError(t, err)

	require.Len(t, s.ItemsByType[EntityAccount], 2)
	assert.NotContains(t, s.ItemsByType, EntityCash, "restore replaces, never merges")

	// Statuses come from re-evaluation, not from the stored values.
	assert.Equal(t, StatusReady, s.ItemsByType[EntityAccount][0].Status)
	assert.Empty(t, s.ItemsByType[EntityAccount][0].ErrorMessage)
	assert.Empty(t, s.ItemsByType[EntityAccount][0].ServerID)
	assert.Equal(t, StatusDraft, s.ItemsByType[EntityAccount][1].Status)

	assert.False(t, s.IsDirty, "a just-restored state is clean")
}

func TestReduceClearAll(t *testing.T) {
	s := NewState()
	s, err := Reduce(s, AddItem{ID: "a1", Type: EntityAccount}, testReady)
	require.NoError(t, err)
	s, err = Reduce(s, AddItem{ID: "c1", Type: EntityCash}, testReady)
	require.NoError(t, err)
	s, err = Reduce(s, ToggleSelect{ID: "a1"}, testReady)
	require.NoError(t, err)

	s, err = Reduce(s, ClearAll{Type: EntityAccount}, testReady)
	require.NoError(t, err)
	assert.NotContains(t, s.ItemsByType, EntityAccount)
	assert.Contains(t, s.ItemsByType, EntityCash)
	assert.NotContains(t, s.Selection, "a1")

	s, err = Reduce(s, ClearAll{}, testReady)
	require.NoError(t, err)
	assert.Empty(t, s.ItemsByType)
	assert.True(t, s.IsDirty)
}

func TestReduceSelection(t *testing.T) {
	s := NewState()
	for _, id := range []string{"a1", "a2"} {
		var err error
		s, err = Reduce(s, AddItem{ID: id, Type: EntityAccount}, testReady)
		require.NoError(t, err)
	}

	s, err := Reduce(s, SelectAll{Type: EntityAccount, On: true}, testReady)
	require.NoError(t, err)
	assert.Len(t, s.Selection, 2)

	s, err = Reduce(s, ToggleSelect{ID: "a1"}, testReady)
	require.NoError(t, err)
	assert.NotContains(t, s.Selection, "a1")

	s, err = Reduce(s, ClearSelection{}, testReady)
	require.NoError(t, err)
	assert.Empty(t, s.Selection)
}

func TestTakeSnapshotExcludesAdded(t *testing.T) {
	s := stateWithStatus(t, "a1", StatusAdded, Fields{"name": "Broker"})
	var err error
	s, err = Reduce(s, AddItem{ID: "a2", Type: EntityAccount, InitialFields: Fields{"name": "Second"}}, testReady)
	require.NoError(t, err)

	snap := s.TakeSnapshot(time.Now())
	assert.Equal(t, 1, snap.Count())
	assert.Equal(t, "a2", snap.ItemsByType[EntityAccount][0].ID)
}

// stateWithStatus builds a one-item state walked through legal transitions
// into the requested status.
func stateWithStatus(t *testing.T, id string, status Status, fields Fields) State {
	t.Helper()

	if status == StatusDraft {
		fields = Fields{} // non-empty fields would compute to ready on add
	}
	s := NewState()
	s, err := Reduce(s, AddItem{ID: id, Type: EntityAccount, InitialFields: fields}, testReady)
	require.NoError(t, err)

	path := map[Status][]Status{
		StatusDraft:      nil,
		StatusReady:      nil,
		StatusSubmitting: {StatusSubmitting},
		StatusAdded:      {StatusSubmitting, StatusAdded},
		StatusError:      {StatusSubmitting, StatusError},
	}[status]

	for _, step := range path {
		act := SetStatus{ID: id, Status: step}
		if step == StatusAdded {
			act.ServerID = "srv-test"
		}
		s, err = Reduce(s, act, testReady)
		require.NoError(t, err)
	}
	require.Equal(t, status, s.ItemsByType[EntityAccount][0].Status)
	return s
}
