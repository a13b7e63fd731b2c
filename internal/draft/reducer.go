package draft

import (
	"fmt"
)

// Reduce applies one action to the state and returns the next state.
// It is a pure function: the input state is never mutated, and on error the
// input state is returned unchanged. ready is the per-type readiness
// predicate used to recompute item statuses after field changes.
func Reduce(s State, a Action, ready ReadinessFunc) (State, error) {
	switch act := a.(type) {
	case AddItem:
		return reduceAddItem(s, act, ready)
	case UpdateItem:
		return reduceUpdateItem(s, act, ready)
	case DeleteItems:
		return reduceDeleteItems(s, act)
	case DuplicateItem:
		return reduceDuplicateItem(s, act, ready)
	case ToggleSelect:
		return reduceToggleSelect(s, act)
	case SelectAll:
		return reduceSelectAll(s, act)
	case ClearSelection:
		next := s.clone()
		next.Selection = make(map[string]struct{})
		return next, nil
	case SetStatus:
		return reduceSetStatus(s, act, ready)
	case SetSearchResults:
		return reduceSetSearchResults(s, act)
	case ClearSearchResults:
		next := s.clone()
		delete(next.SearchCache, act.ID)
		return next, nil
	case RestoreSnapshot:
		return reduceRestoreSnapshot(s, act, ready)
	case ClearAll:
		return reduceClearAll(s, act)
	case SetView:
		next := s.clone()
		next.CurrentView = act.View
		return next, nil
	default:
		return s, fmt.Errorf("unknown action type %T", a)
	}
}

// computeStatus maps a field map to draft or ready via the predicate.
func computeStatus(ready ReadinessFunc, t EntityType, f Fields) Status {
	if ready != nil && ready(t, f) {
		return StatusReady
	}
	return StatusDraft
}

func reduceAddItem(s State, act AddItem, ready ReadinessFunc) (State, error) {
	if !act.Type.Valid() {
		return s, fmt.Errorf("invalid entity type %q", act.Type)
	}
	if act.ID == "" {
		return s, fmt.Errorf("add item: missing id")
	}
	if _, exists := s.Item(act.ID); exists {
		return s, fmt.Errorf("add item: duplicate id %s", act.ID)
	}

	next := s.clone()
	fields := act.InitialFields.Clone()
	next.ItemsByType[act.Type] = append(next.ItemsByType[act.Type], Item{
		ID:     act.ID,
		Type:   act.Type,
		Fields: fields,
		Status: computeStatus(ready, act.Type, fields),
	})
	next.IsDirty = true
	return next, nil
}

func reduceUpdateItem(s State, act UpdateItem, ready ReadinessFunc) (State, error) {
	next := s.clone()
	it := next.find(act.ID)
	if it == nil {
		return s, fmt.Errorf("update item: id %s not found", act.ID)
	}
	switch it.Status {
	case StatusAdded:
		return s, fmt.Errorf("update item: %s is already added and immutable", act.ID)
	case StatusSubmitting:
		return s, fmt.Errorf("update item: %s is being submitted", act.ID)
	}

	for k, v := range act.Fields {
		it.Fields[k] = v
	}
	// An edit clears a previous submission error; status is re-evaluated
	// exactly like the draft/ready boundary.
	it.ErrorMessage = ""
	it.Status = computeStatus(ready, it.Type, it.Fields)
	next.IsDirty = true
	return next, nil
}

func reduceDeleteItems(s State, act DeleteItems) (State, error) {
	doomed := make(map[string]struct{}, len(act.IDs))
	for _, id := range act.IDs {
		doomed[id] = struct{}{}
	}

	next := s.clone()
	removed := 0
	for t, items := range next.ItemsByType {
		keep := items[:0]
		for _, it := range items {
			if _, gone := doomed[it.ID]; gone {
				removed++
				continue
			}
			keep = append(keep, it)
		}
		if len(keep) == 0 {
			delete(next.ItemsByType, t)
		} else {
			next.ItemsByType[t] = keep
		}
	}
	for id := range doomed {
		delete(next.Selection, id)
		delete(next.SearchCache, id)
	}
	if removed == 0 {
		return s, nil
	}
	next.IsDirty = true
	return next, nil
}

func reduceDuplicateItem(s State, act DuplicateItem, ready ReadinessFunc) (State, error) {
	if act.NewID == "" {
		return s, fmt.Errorf("duplicate item: missing new id")
	}
	src, ok := s.Item(act.ID)
	if !ok {
		return s, fmt.Errorf("duplicate item: id %s not found", act.ID)
	}

	fields := src.Fields.Clone()
	dup := Item{
		ID:     act.NewID,
		Type:   src.Type,
		Fields: fields,
		// Status is computed fresh from the copied fields; added/serverId
		// never carry over to the duplicate.
		Status: computeStatus(ready, src.Type, fields),
	}

	next := s.clone()
	items := next.ItemsByType[src.Type]
	for i := range items {
		if items[i].ID == act.ID {
			items = append(items[:i+1], append([]Item{dup}, items[i+1:]...)...)
			break
		}
	}
	next.ItemsByType[src.Type] = items
	next.IsDirty = true
	return next, nil
}

func reduceToggleSelect(s State, act ToggleSelect) (State, error) {
	if _, ok := s.Item(act.ID); !ok {
		return s, fmt.Errorf("toggle select: id %s not found", act.ID)
	}
	next := s.clone()
	if _, on := next.Selection[act.ID]; on {
		delete(next.Selection, act.ID)
	} else {
		next.Selection[act.ID] = struct{}{}
	}
	return next, nil
}

func reduceSelectAll(s State, act SelectAll) (State, error) {
	if !act.Type.Valid() {
		return s, fmt.Errorf("select all: invalid entity type %q", act.Type)
	}
	next := s.clone()
	for _, it := range next.ItemsByType[act.Type] {
		if act.On {
			next.Selection[it.ID] = struct{}{}
		} else {
			delete(next.Selection, it.ID)
		}
	}
	return next, nil
}

func reduceSetStatus(s State, act SetStatus, ready ReadinessFunc) (State, error) {
	next := s.clone()
	it := next.find(act.ID)
	if it == nil {
		return s, fmt.Errorf("set status: id %s not found", act.ID)
	}
	if it.Status == act.Status {
		return next, nil
	}

	switch act.Status {
	case StatusSubmitting:
		// A row is only ever picked up for submission from the ready pool.
		if it.Status != StatusReady {
			return s, fmt.Errorf("set status: %s cannot enter submitting from %s", act.ID, it.Status)
		}
		it.Status = StatusSubmitting

	case StatusAdded:
		if it.Status != StatusSubmitting {
			return s, fmt.Errorf("set status: %s cannot be added from %s", act.ID, it.Status)
		}
		if act.ServerID == "" {
			return s, fmt.Errorf("set status: %s marked added without server id", act.ID)
		}
		it.Status = StatusAdded
		it.ServerID = act.ServerID
		it.ErrorMessage = ""

	case StatusError:
		if it.Status != StatusSubmitting {
			return s, fmt.Errorf("set status: %s cannot enter error from %s", act.ID, it.Status)
		}
		// Fields are retained untouched so the user can retry without
		// re-entering data.
		it.Status = StatusError
		it.ErrorMessage = act.ErrorMessage

	case StatusReady:
		// Retry path: a failed row re-enters the ready pool as long as its
		// fields still satisfy the readiness predicate.
		if it.Status != StatusError {
			return s, fmt.Errorf("set status: %s cannot enter ready from %s", act.ID, it.Status)
		}
		if computeStatus(ready, it.Type, it.Fields) != StatusReady {
			return s, fmt.Errorf("set status: %s no longer satisfies readiness", act.ID)
		}
		it.Status = StatusReady
		it.ErrorMessage = ""

	case StatusDraft:
		if it.Status != StatusError {
			return s, fmt.Errorf("set status: %s cannot enter draft from %s", act.ID, it.Status)
		}
		it.Status = StatusDraft
		it.ErrorMessage = ""

	default:
		return s, fmt.Errorf("set status: unknown status %q", act.Status)
	}

	return next, nil
}

func reduceSetSearchResults(s State, act SetSearchResults) (State, error) {
	if _, ok := s.Item(act.ID); !ok {
		return s, fmt.Errorf("set search results: id %s not found", act.ID)
	}
	next := s.clone()
	results := make([]SearchResult, len(act.Results))
	copy(results, act.Results)
	next.SearchCache[act.ID] = results
	return next, nil
}

func reduceRestoreSnapshot(s State, act RestoreSnapshot, ready ReadinessFunc) (State, error) {
	next := s.clone()
	next.ItemsByType = make(map[EntityType][]Item)
	next.Selection = make(map[string]struct{})
	next.SearchCache = make(map[string][]SearchResult)

	for t, items := range act.Snapshot.ItemsByType {
		if !t.Valid() || len(items) == 0 {
			continue
		}
		restored := make([]Item, 0, len(items))
		for _, it := range items {
			cp := it.Clone()
			cp.Type = t
			// Statuses are recomputed from the stored fields; submitting,
			// error and serverId state never survive a restore.
			cp.Status = computeStatus(ready, t, cp.Fields)
			cp.ErrorMessage = ""
			cp.ServerID = ""
			restored = append(restored, cp)
		}
		next.ItemsByType[t] = restored
	}
	next.IsDirty = false
	return next, nil
}

func reduceClearAll(s State, act ClearAll) (State, error) {
	if act.Type != "" && !act.Type.Valid() {
		return s, fmt.Errorf("clear all: invalid entity type %q", act.Type)
	}

	next := s.clone()
	if act.Type == "" {
		next.ItemsByType = make(map[EntityType][]Item)
		next.Selection = make(map[string]struct{})
		next.SearchCache = make(map[string][]SearchResult)
	} else {
		for _, it := range next.ItemsByType[act.Type] {
			delete(next.Selection, it.ID)
			delete(next.SearchCache, it.ID)
		}
		delete(next.ItemsByType, act.Type)
	}
	next.IsDirty = true
	return next, nil
}
