package persist

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliodraft/foliodraft/internal/draft"
)

func testReady(t draft.EntityType, f draft.Fields) bool {
	return f["name"] != ""
}

func newTestAdapter(t *testing.T, opts Options) (*Adapter, *draft.Store, *Slot) {
	t.Helper()
	slot := newTestSlot(t)
	store := draft.NewStore(testReady, zerolog.Nop())
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	adapter := NewAdapter(slot, store, zerolog.Nop(), opts)
	return adapter, store, slot
}

// readSnapshot decodes whatever is stored in the default slot, or reports
// an empty slot.
func readSnapshot(t *testing.T, slot *Slot) (draft.Snapshot, bool) {
	t.Helper()
	data, _, ok, err := slot.Read(DefaultSlot)
	require.NoError(t, err)
	if !ok {
		return draft.Snapshot{}, false
	}
	snap, err := decodeSnapshot(data)
	require.NoError(t, err)
	return snap, true
}

func TestAdapterDebouncedAutosave(t *testing.T) {
	_, store, slot := newTestAdapter(t, Options{})

	// A burst of edits inside the quiet window coalesces into one write
	// holding the final state.
	id, err := store.AddItem(draft.EntityAccount, nil)
	require.NoError(t, err)
	require.NoError(t, store.UpdateItem(id, draft.Fields{"name": "Broker"}))
	_, err = store.AddItem(draft.EntityCash, draft.Fields{"name": "Cash"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := readSnapshot(t, slot)
		return ok
	}, time.Second, 5*time.Millisecond)

	snap, ok := readSnapshot(t, slot)
	require.True(t, ok)
	assert.Equal(t, 2, snap.Count())
	assert.Equal(t, "Broker", snap.ItemsByType[draft.EntityAccount][0].Fields["name"])
}

func TestAdapterDeletesSnapshotWhenEmpty(t *testing.T) {
	_, store, slot := newTestAdapter(t, Options{})

	id, err := store.AddItem(draft.EntityAccount, draft.Fields{"name": "Broker"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok := readSnapshot(t, slot)
		return ok
	}, time.Second, 5*time.Millisecond)

	// Deleting the last staged item removes the stored snapshot entirely.
	require.NoError(t, store.DeleteItem(id))
	require.Eventually(t, func() bool {
		_, ok := readSnapshot(t, slot)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestAdapterFlushWritesPendingState(t *testing.T) {
	adapter, store, slot := newTestAdapter(t, Options{Debounce: time.Minute})

	_, err := store.AddItem(draft.EntityAccount, draft.Fields{"name": "Broker"})
	require.NoError(t, err)

	_, ok := readSnapshot(t, slot)
	assert.False(t, ok, "nothing written inside the quiet window")

	adapter.Flush()
	snap, ok := readSnapshot(t, slot)
	require.True(t, ok)
	assert.Equal(t, 1, snap.Count())
}

func TestAdapterCheckAndRestore(t *testing.T) {
	adapter, store, slot := newTestAdapter(t, Options{})

	saved := draft.Snapshot{
		SavedAt: time.Now().Add(-time.Hour).Truncate(time.Second),
		ItemsByType: map[draft.EntityType][]draft.Item{
			draft.EntityAccount: {
				{ID: "a1", Type: draft.EntityAccount, Fields: draft.Fields{"name": "Broker"}, Status: draft.StatusError, ErrorMessage: "stale"},
			},
			draft.EntityCash: {
				{ID: "c1", Type: draft.EntityCash, Fields: draft.Fields{}, Status: draft.StatusReady},
			},
		},
	}
	data, err := encodeSnapshot(saved)
	require.NoError(t, err)
	require.NoError(t, slot.Write(DefaultSlot, data, saved.SavedAt, DefaultTTL))

	summary, err := adapter.CheckForDraft()
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, map[draft.EntityType]int{draft.EntityAccount: 1, draft.EntityCash: 1}, summary.CountsByType)
	assert.True(t, summary.SavedAt.Equal(saved.SavedAt))

	// Checking never touches live state.
	assert.Empty(t, store.State().ItemsByType)

	require.NoError(t, adapter.RestoreDraft())
	state := store.State()
	require.Len(t, state.ItemsByType[draft.EntityAccount], 1)
	assert.Equal(t, draft.StatusReady, state.ItemsByType[draft.EntityAccount][0].Status, "status recomputed on restore")
	assert.Empty(t, state.ItemsByType[draft.EntityAccount][0].ErrorMessage)
	assert.Equal(t, draft.StatusDraft, state.ItemsByType[draft.EntityCash][0].Status)
	assert.False(t, state.IsDirty)
}

func TestAdapterCheckExpiredSnapshot(t *testing.T) {
	now := time.Now()
	adapter, _, slot := newTestAdapter(t, Options{Now: func() time.Time { return now }})

	saved := draft.Snapshot{
		SavedAt: now.Add(-9 * time.Hour),
		ItemsByType: map[draft.EntityType][]draft.Item{
			draft.EntityAccount: {{ID: "a1", Type: draft.EntityAccount, Fields: draft.Fields{"name": "Broker"}}},
		},
	}
	data, err := encodeSnapshot(saved)
	require.NoError(t, err)
	require.NoError(t, slot.Write(DefaultSlot, data, saved.SavedAt, DefaultTTL))

	summary, err := adapter.CheckForDraft()
	require.NoError(t, err)
	assert.Nil(t, summary, "snapshots older than the expiry window are not offered")

	_, _, ok, err := slot.Read(DefaultSlot)
	require.NoError(t, err)
	assert.False(t, ok, "stale snapshot is deleted on check")
}

func TestAdapterCheckCorruptSnapshot(t *testing.T) {
	adapter, _, slot := newTestAdapter(t, Options{})
	require.NoError(t, slot.Write(DefaultSlot, []byte("not msgpack"), time.Now(), DefaultTTL))

	summary, err := adapter.CheckForDraft()
	require.NoError(t, err)
	assert.Nil(t, summary)

	_, _, ok, err := slot.Read(DefaultSlot)
	require.NoError(t, err)
	assert.False(t, ok, "corrupt snapshot is deleted on check")
}

func TestAdapterCheckEmptySlot(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, Options{})

	summary, err := adapter.CheckForDraft()
	require.NoError(t, err)
	assert.Nil(t, summary)

	assert.Error(t, adapter.RestoreDraft(), "nothing to restore")
}

func TestAdapterDismissKeepsSnapshot(t *testing.T) {
	adapter, store, slot := newTestAdapter(t, Options{})

	saved := draft.Snapshot{
		SavedAt: time.Now(),
		ItemsByType: map[draft.EntityType][]draft.Item{
			draft.EntityAccount: {{ID: "a1", Type: draft.EntityAccount, Fields: draft.Fields{"name": "Broker"}}},
		},
	}
	data, err := encodeSnapshot(saved)
	require.NoError(t, err)
	require.NoError(t, slot.Write(DefaultSlot, data, saved.SavedAt, DefaultTTL))

	_, err = adapter.CheckForDraft()
	require.NoError(t, err)
	adapter.DismissDraft()

	assert.Empty(t, store.State().ItemsByType)
	_, _, ok, err := slot.Read(DefaultSlot)
	require.NoError(t, err)
	assert.True(t, ok, "dismiss hides the offer but keeps the snapshot on disk")
}

func TestAdapterClearDeletesSnapshot(t *testing.T) {
	adapter, _, slot := newTestAdapter(t, Options{})
	require.NoError(t, slot.Write(DefaultSlot, []byte("blob"), time.Now(), DefaultTTL))

	require.NoError(t, adapter.ClearDraft())

	_, _, ok, err := slot.Read(DefaultSlot)
	require.NoError(t, err)
	assert.False(t, ok)
}
