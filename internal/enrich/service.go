// Package enrich backfills staged draft rows with security/crypto metadata:
// debounced symbol search per row, and a serialized hydration pass that
// resolves missing prices. Results come back to the draft store as ordinary
// actions; lookup failures surface as empty result sets and never block
// editing or submission.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/foliodraft/foliodraft/internal/clients/folioapi"
	"github.com/foliodraft/foliodraft/internal/draft"
	"github.com/foliodraft/foliodraft/internal/entity"
)

const (
	// DefaultDebounce is the per-row quiet window: only the last search
	// issued inside it executes.
	DefaultDebounce = 300 * time.Millisecond

	// DefaultMinQueryLen suppresses lookups for queries shorter than this.
	DefaultMinQueryLen = 2

	// DefaultHydrateDelay spaces sequential hydration requests to bound
	// the request rate.
	DefaultHydrateDelay = 250 * time.Millisecond

	// Lookup responses are memoized briefly so retyping the same query
	// does not hit the backend again.
	lookupCacheTTL     = 5 * time.Minute
	lookupCacheCleanup = 10 * time.Minute
)

// Lookup is the slice of the backend client the service needs.
type Lookup interface {
	SearchInstruments(ctx context.Context, query string) ([]folioapi.Instrument, error)
	GetQuote(ctx context.Context, symbol string) (*folioapi.Quote, error)
}

// Options configures a Service. Zero values fall back to the defaults.
type Options struct {
	Debounce     time.Duration
	HydrateDelay time.Duration
	MinQueryLen  int
}

// Service is the remote enrichment service for one wizard session.
type Service struct {
	store  *draft.Store
	lookup Lookup
	log    zerolog.Logger

	debounce     time.Duration
	hydrateDelay time.Duration
	minQueryLen  int

	mu        sync.Mutex
	timers    map[string]*time.Timer
	lastQuery map[string]string   // per row: current input, the ordering token
	hydrating map[string]struct{} // rows with an in-flight hydration

	lookupCache *gocache.Cache // normalized query -> []folioapi.Instrument
}

// NewService creates an enrichment service bound to one draft store.
func NewService(store *draft.Store, lookup Lookup, log zerolog.Logger, opts Options) *Service {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.HydrateDelay <= 0 {
		opts.HydrateDelay = DefaultHydrateDelay
	}
	if opts.MinQueryLen <= 0 {
		opts.MinQueryLen = DefaultMinQueryLen
	}
	return &Service{
		store:        store,
		lookup:       lookup,
		log:          log.With().Str("component", "enrichment").Logger(),
		debounce:     opts.Debounce,
		hydrateDelay: opts.HydrateDelay,
		minQueryLen:  opts.MinQueryLen,
		timers:       make(map[string]*time.Timer),
		lastQuery:    make(map[string]string),
		hydrating:    make(map[string]struct{}),
		lookupCache:  gocache.New(lookupCacheTTL, lookupCacheCleanup),
	}
}

// Search schedules a debounced lookup for one row. Rapid calls for the same
// row coalesce; only the last query inside the quiet window executes, and a
// late response for a superseded query is discarded on arrival.
func (s *Service) Search(rowID, query string, t draft.EntityType) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[rowID]; ok {
		timer.Stop()
	}

	if len(query) < s.minQueryLen {
		delete(s.timers, rowID)
		delete(s.lastQuery, rowID)
		return
	}

	s.lastQuery[rowID] = query
	s.timers[rowID] = time.AfterFunc(s.debounce, func() {
		s.runSearch(rowID, query, t)
	})
}

// runSearch executes one lookup and writes the results into the row's
// search cache, unless the row's input has moved on in the meantime.
func (s *Service) runSearch(rowID, query string, t draft.EntityType) {
	results := s.fetchInstruments(query)
	filtered := filterByEntityType(results, t)

	s.mu.Lock()
	if s.lastQuery[rowID] != query {
		// A newer search for this row was issued while this one was in
		// flight. Last issued wins.
		s.mu.Unlock()
		s.log.Debug().Str("row", rowID).Str("query", query).Msg("Discarding superseded search response")
		return
	}
	delete(s.timers, rowID)
	s.mu.Unlock()

	converted := make([]draft.SearchResult, 0, len(filtered))
	for _, inst := range filtered {
		converted = append(converted, draft.SearchResult{
			Symbol:    inst.Symbol,
			Name:      inst.Name,
			Price:     inst.Price,
			AssetType: inst.AssetType,
		})
	}
	if err := s.store.SetSearchResults(rowID, converted); err != nil {
		// Row was deleted while the lookup ran.
		s.log.Debug().Err(err).Str("row", rowID).Msg("Dropping search results")
	}
}

// fetchInstruments resolves a query against the memo cache or the backend.
// Failures are logged and surfaced as an empty result set.
func (s *Service) fetchInstruments(query string) []folioapi.Instrument {
	key := strings.ToUpper(query)
	if cached, ok := s.lookupCache.Get(key); ok {
		return cached.([]folioapi.Instrument)
	}

	results, err := s.lookup.SearchInstruments(context.Background(), query)
	if err != nil {
		s.log.Warn().Err(err).Str("query", query).Msg("Instrument search failed")
		return nil
	}
	s.lookupCache.Set(key, results, gocache.DefaultExpiration)
	return results
}

// filterByEntityType keeps only results matching the row's entity type:
// crypto rows see crypto instruments, security rows see securities. Other
// types pass everything through.
func filterByEntityType(results []folioapi.Instrument, t draft.EntityType) []folioapi.Instrument {
	var want string
	switch t {
	case draft.EntityCrypto:
		want = "crypto"
	case draft.EntitySecurity:
		want = "security"
	default:
		return results
	}

	filtered := make([]folioapi.Instrument, 0, len(results))
	for _, r := range results {
		if r.AssetType == want {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ApplyResult maps a selected search result onto the row's fields and clears
// the row's cached results.
func (s *Service) ApplyResult(rowID string, res draft.SearchResult) error {
	fields := draft.Fields{
		entity.FieldSymbol: res.Symbol,
		entity.FieldName:   res.Name,
	}
	if !res.Price.IsZero() {
		fields[entity.FieldPrice] = res.Price.String()
	}
	if err := s.store.UpdateItem(rowID, fields); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.lastQuery, rowID)
	s.mu.Unlock()
	return s.store.ClearSearchResults(rowID)
}

// HydrateAllPending resolves prices for every staged row that has a symbol
// but no price yet. Rows are processed one at a time with a fixed
// inter-request delay; rows already submitting or added are skipped, and an
// in-progress set keeps concurrent invocations from duplicating work.
// Returns the number of rows hydrated.
func (s *Service) HydrateAllPending(ctx context.Context) (int, error) {
	state := s.store.State()

	var candidates []draft.Item
	for _, t := range draft.AllEntityTypes() {
		for _, it := range state.ItemsByType[t] {
			if it.Fields[entity.FieldSymbol] == "" || it.Fields[entity.FieldPrice] != "" {
				continue
			}
			if it.Status == draft.StatusSubmitting || it.Status == draft.StatusAdded {
				continue
			}
			candidates = append(candidates, it)
		}
	}

	hydrated := 0
	for i, it := range candidates {
		if i > 0 {
			select {
			case <-ctx.Done():
				return hydrated, ctx.Err()
			case <-time.After(s.hydrateDelay):
			}
		}

		s.mu.Lock()
		if _, busy := s.hydrating[it.ID]; busy {
			s.mu.Unlock()
			continue
		}
		s.hydrating[it.ID] = struct{}{}
		s.mu.Unlock()

		if s.hydrateRow(ctx, it.ID) {
			hydrated++
		}

		s.mu.Lock()
		delete(s.hydrating, it.ID)
		s.mu.Unlock()
	}
	return hydrated, nil
}

// hydrateRow resolves one row's price. The row is re-read first: it may
// have entered submission, been filled in or been deleted since the scan.
func (s *Service) hydrateRow(ctx context.Context, rowID string) bool {
	it, ok := s.store.Item(rowID)
	if !ok {
		return false
	}
	symbol := it.Fields[entity.FieldSymbol]
	if symbol == "" || it.Fields[entity.FieldPrice] != "" {
		return false
	}
	if it.Status == draft.StatusSubmitting || it.Status == draft.StatusAdded {
		return false
	}

	quote, err := s.lookup.GetQuote(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price hydration failed")
		return false
	}

	if err := s.store.UpdateItem(rowID, draft.Fields{entity.FieldPrice: quote.Price.String()}); err != nil {
		s.log.Debug().Err(err).Str("row", rowID).Msg("Dropping hydrated price")
		return false
	}
	return true
}

// ApplyQuote pushes a live price onto every staged row holding the symbol.
// Rows in submission, already added, or carrying a submission error are
// left alone.
func (s *Service) ApplyQuote(symbol string, price string) {
	state := s.store.State()
	for _, t := range draft.AllEntityTypes() {
		for _, it := range state.ItemsByType[t] {
			if it.Fields[entity.FieldSymbol] != symbol {
				continue
			}
			if it.Status != draft.StatusDraft && it.Status != draft.StatusReady {
				continue
			}
			if err := s.store.UpdateItem(it.ID, draft.Fields{entity.FieldPrice: price}); err != nil {
				s.log.Debug().Err(err).Str("row", it.ID).Msg("Dropping live quote update")
			}
		}
	}
}
