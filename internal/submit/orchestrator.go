// Package submit groups ready draft rows into batch-create calls and
// reconciles per-item outcomes back into the draft store. Sub-groups (one
// entity type, one target account where applicable) are submitted strictly
// in sequence; a batch call is all-or-nothing, and one sub-group's failure
// never aborts the ones after it.
package submit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/foliodraft/foliodraft/internal/clients/folioapi"
	"github.com/foliodraft/foliodraft/internal/draft"
	"github.com/foliodraft/foliodraft/internal/entity"
)

// BatchCreator is the slice of the backend client the orchestrator needs.
type BatchCreator interface {
	BatchCreate(ctx context.Context, t draft.EntityType, accountID string, payloads []interface{}) (*folioapi.BatchCreateResult, error)
}

// Outcome is the per-item result of one submission pass.
type Outcome struct {
	ID       string       `json:"id"`
	Status   draft.Status `json:"status"`
	ServerID string       `json:"serverId,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// Result aggregates one submission pass so the caller can render
// "N succeeded, M failed" and offer retry of only the failed rows.
type Result struct {
	SuccessCount int       `json:"successCount"`
	FailedCount  int       `json:"failedCount"`
	Outcomes     []Outcome `json:"outcomes"`
}

// Orchestrator drives bulk submission for one wizard session.
type Orchestrator struct {
	store *draft.Store
	api   BatchCreator
	log   zerolog.Logger
}

// NewOrchestrator creates a submission orchestrator.
func NewOrchestrator(store *draft.Store, api BatchCreator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store: store,
		api:   api,
		log:   log.With().Str("component", "submit_orchestrator").Logger(),
	}
}

// subGroup is the unit of one batch-create call.
type subGroup struct {
	accountID string
	items     []draft.Item
}

// SubmitGroup submits every ready row of one entity type. Position rows are
// sub-grouped by target account; each sub-group is one batch call, processed
// sequentially.
func (o *Orchestrator) SubmitGroup(ctx context.Context, t draft.EntityType) (*Result, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid entity type %q", t)
	}

	state := o.store.State()
	var ready []draft.Item
	for _, it := range state.ItemsByType[t] {
		if it.Status == draft.StatusReady {
			ready = append(ready, it)
		}
	}

	result := &Result{}
	if len(ready) == 0 {
		return result, nil
	}

	groups := partition(t, ready)
	o.log.Info().
		Str("entity_type", string(t)).
		Int("items", len(ready)).
		Int("sub_groups", len(groups)).
		Msg("Starting bulk submission")

	for _, g := range groups {
		o.submitSubGroup(ctx, t, g, result)
	}

	o.log.Info().
		Str("entity_type", string(t)).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.FailedCount).
		Msg("Bulk submission finished")
	return result, nil
}

// partition splits ready items into sub-groups, preserving insertion order
// within each group and ordering groups by first appearance.
func partition(t draft.EntityType, items []draft.Item) []subGroup {
	if !t.IsPosition() {
		return []subGroup{{items: items}}
	}

	index := make(map[string]int)
	var groups []subGroup
	for _, it := range items {
		accountID := entity.GroupAccountID(t, it.Fields)
		i, ok := index[accountID]
		if !ok {
			i = len(groups)
			index[accountID] = i
			groups = append(groups, subGroup{accountID: accountID})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups
}

// submitSubGroup marks the sub-group submitting, issues its batch call and
// feeds outcomes back as status actions. The backend call is all-or-nothing
// per sub-group: full success marks every row added, any error marks every
// row error with the same message and its fields intact.
func (o *Orchestrator) submitSubGroup(ctx context.Context, t draft.EntityType, g subGroup, result *Result) {
	var submitting []draft.Item
	var payloads []interface{}
	for _, it := range g.items {
		payload, err := entity.BuildPayload(t, it.Fields)
		if err != nil {
			// A row that stopped building between the ready scan and now;
			// leave it out of the batch rather than failing the group.
			o.log.Warn().Err(err).Str("row", it.ID).Msg("Skipping row that no longer builds")
			continue
		}
		if err := o.store.SetItemStatus(it.ID, draft.StatusSubmitting, "", ""); err != nil {
			// Row changed underfoot (edited, deleted). Skip it; it stays
			// in whatever state it moved to.
			o.log.Debug().Err(err).Str("row", it.ID).Msg("Skipping row no longer ready")
			continue
		}
		submitting = append(submitting, it)
		payloads = append(payloads, payload)
	}
	if len(submitting) == 0 {
		return
	}

	created, err := o.api.BatchCreate(ctx, t, g.accountID, payloads)
	if err != nil {
		msg := err.Error()
		o.log.Warn().Err(err).
			Str("entity_type", string(t)).
			Str("account_id", g.accountID).
			Int("items", len(submitting)).
			Msg("Batch create failed")
		for _, it := range submitting {
			if serr := o.store.SetItemStatus(it.ID, draft.StatusError, "", msg); serr != nil {
				o.log.Error().Err(serr).Str("row", it.ID).Msg("Failed to record submission error")
			}
			result.FailedCount++
			result.Outcomes = append(result.Outcomes, Outcome{ID: it.ID, Status: draft.StatusError, Error: msg})
		}
		return
	}

	for i, it := range submitting {
		serverID := created.IDs[i]
		if err := o.store.SetItemStatus(it.ID, draft.StatusAdded, serverID, ""); err != nil {
			o.log.Error().Err(err).Str("row", it.ID).Msg("Failed to record submission success")
		}
		result.SuccessCount++
		result.Outcomes = append(result.Outcomes, Outcome{ID: it.ID, Status: draft.StatusAdded, ServerID: serverID})
	}
}

// RetryFailed re-enters every errored row of one entity type into the ready
// pool, without touching its fields.
func (o *Orchestrator) RetryFailed(t draft.EntityType) int {
	state := o.store.State()
	retried := 0
	for _, it := range state.ItemsByType[t] {
		if it.Status != draft.StatusError {
			continue
		}
		if err := o.store.SetItemStatus(it.ID, draft.StatusReady, "", ""); err != nil {
			o.log.Debug().Err(err).Str("row", it.ID).Msg("Row no longer satisfies readiness, leaving in error")
			continue
		}
		retried++
	}
	return retried
}

// GetReadyCounts tallies, per entity type, the rows currently in the ready
// pool. Drives submit-button enablement without re-deriving full state.
func (o *Orchestrator) GetReadyCounts() map[draft.EntityType]int {
	state := o.store.State()
	counts := make(map[draft.EntityType]int)
	for t, items := range state.ItemsByType {
		for _, it := range items {
			if it.Status == draft.StatusReady {
				counts[t]++
			}
		}
	}
	return counts
}
