package draft

// Action is the closed union of state transitions. Every mutation of the
// session state, whether it originates from the wizard UI, the enrichment
// service or the submission orchestrator, is expressed as one of these
// variants and applied by Reduce.
type Action interface {
	isAction()
}

// AddItem appends a new draft item. The id is generated by the store before
// dispatch so the reducer stays pure.
type AddItem struct {
	ID            string
	Type          EntityType
	InitialFields Fields
}

// UpdateItem merges partial field values into an existing item and
// re-evaluates its readiness.
type UpdateItem struct {
	ID     string
	Fields Fields
}

// DeleteItems removes items and purges them from the selection and the
// search cache.
type DeleteItems struct {
	IDs []string
}

// DuplicateItem clones an item's fields into a new row placed directly
// after the source row. Status is recomputed fresh; serverId is never copied.
type DuplicateItem struct {
	ID    string
	NewID string
}

// ToggleSelect flips an item's membership in the bulk-action selection.
type ToggleSelect struct {
	ID string
}

// SelectAll selects or deselects every item of one entity type.
type SelectAll struct {
	Type EntityType
	On   bool
}

// ClearSelection empties the selection.
type ClearSelection struct{}

// SetStatus reports a submission or enrichment outcome for an item.
// Transitions are validated against the status state machine.
type SetStatus struct {
	ID           string
	Status       Status
	ServerID     string
	ErrorMessage string
}

// SetSearchResults stores enrichment lookup results for a row.
type SetSearchResults struct {
	ID      string
	Results []SearchResult
}

// ClearSearchResults drops cached lookup results for a row.
type ClearSearchResults struct {
	ID string
}

// RestoreSnapshot replaces the staged items wholesale from a persisted
// snapshot. Statuses are recomputed from the stored fields and the dirty
// flag is reset.
type RestoreSnapshot struct {
	Snapshot Snapshot
}

// ClearAll removes every item of one entity type, or of all types when
// Type is empty.
type ClearAll struct {
	Type EntityType
}

// SetView switches the active wizard step.
type SetView struct {
	View string
}

func (AddItem) isAction()            {}
func (UpdateItem) isAction()         {}
func (DeleteItems) isAction()        {}
func (DuplicateItem) isAction()      {}
func (ToggleSelect) isAction()       {}
func (SelectAll) isAction()          {}
func (ClearSelection) isAction()     {}
func (SetStatus) isAction()          {}
func (SetSearchResults) isAction()   {}
func (ClearSearchResults) isAction() {}
func (RestoreSnapshot) isAction()    {}
func (ClearAll) isAction()           {}
func (SetView) isAction()            {}
