package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/foliodraft/foliodraft/internal/draft"
	"github.com/foliodraft/foliodraft/internal/entity"
)

// stateView is the wire shape of the session state. Selection and the
// search cache are flattened into JSON-friendly forms.
type stateView struct {
	ItemsByType map[draft.EntityType][]draft.Item `json:"itemsByType"`
	Selection   []string                          `json:"selection"`
	IsDirty     bool                              `json:"isDirty"`
	CurrentView string                            `json:"currentView"`
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()
	view := stateView{
		ItemsByType: state.ItemsByType,
		Selection:   make([]string, 0, len(state.Selection)),
		IsDirty:     state.IsDirty,
		CurrentView: state.CurrentView,
	}
	for id := range state.Selection {
		view.Selection = append(view.Selection, id)
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReadyCounts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.orchestrator.GetReadyCounts())
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type   draft.EntityType `json:"type"`
		Fields draft.Fields     `json:"fields"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	id, err := s.store.AddItem(req.Type, req.Fields)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields draft.Fields `json:"fields"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.store.UpdateItem(chi.URLParam(r, "id"), req.Fields); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteItem(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.store.DeleteItems(req.IDs); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDuplicateItem(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.DuplicateItem(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleToggleSelect(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ToggleSelect(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type draft.EntityType `json:"type"`
		On   bool             `json:"on"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.store.SelectAll(req.Type, req.On); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearSelection(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type draft.EntityType `json:"type"` // empty clears every type
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.store.ClearAll(req.Type); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req struct {
		View string `json:"view"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.store.SetView(req.View); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RowID string           `json:"rowId"`
		Query string           `json:"query"`
		Type  draft.EntityType `json:"type"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	if req.RowID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("rowId is required"))
		return
	}

	// The search is debounced and asynchronous; results land in the row's
	// search cache and are fetched via GET /api/draft/search/{id}.
	s.enrichment.Search(req.RowID, req.Query, req.Type)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) handleGetSearchResults(w http.ResponseWriter, r *http.Request) {
	state := s.store.State()
	results := state.SearchCache[chi.URLParam(r, "id")]
	if results == nil {
		results = []draft.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleApplyResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol    string `json:"symbol"`
		Name      string `json:"name"`
		Price     string `json:"price"`
		AssetType string `json:"assetType"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	price := decimal.Zero
	if req.Price != "" {
		parsed, err := decimal.NewFromString(req.Price)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid price: %w", err))
			return
		}
		price = parsed
	}

	err := s.enrichment.ApplyResult(chi.URLParam(r, "id"), draft.SearchResult{
		Symbol:    req.Symbol,
		Name:      req.Name,
		Price:     price,
		AssetType: req.AssetType,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHydrate(w http.ResponseWriter, r *http.Request) {
	hydrated, err := s.enrichment.HydrateAllPending(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"hydrated": hydrated})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type draft.EntityType `json:"type"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.orchestrator.SubmitGroup(r.Context(), req.Type)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type draft.EntityType `json:"type"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	retried := s.orchestrator.RetryFailed(req.Type)
	s.writeJSON(w, http.StatusOK, map[string]int{"retried": retried})
}

func (s *Server) handleCheckForDraft(w http.ResponseWriter, r *http.Request) {
	summary, err := s.persistence.CheckForDraft()
	if err != nil {
		// Persistence trouble never surfaces to the user; behave as if no
		// draft exists.
		s.log.Warn().Err(err).Msg("Draft check failed")
		s.writeJSON(w, http.StatusOK, nil)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRestoreDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.persistence.RestoreDraft(); err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (s *Server) handleDismissDraft(w http.ResponseWriter, r *http.Request) {
	s.persistence.DismissDraft()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (s *Server) handleClearDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.persistence.ClearDraft(); err != nil {
		s.log.Warn().Err(err).Msg("Draft clear failed")
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.backend.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accounts)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var fields draft.Fields
	if !s.decode(w, r, &fields) {
		return
	}

	payload, err := entity.BuildPayload(draft.EntityAccount, fields)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := s.backend.CreateAccount(r.Context(), payload)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, account)
}

// decode reads a JSON request body; on failure it writes the error response
// and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}
