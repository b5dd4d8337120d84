// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/bassosimone/runtimex"
)

// State is the state of a [*Provider].
type State int

// Provider states.
const (
	StateIdle State = iota
	StateFetching
	StateResolved
	StateErrored
	StateAborted
	StateEnriching
	StateEnrichResolved
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateResolved:
		return "resolved"
	case StateErrored:
		return "errored"
	case StateAborted:
		return "aborted"
	case StateEnriching:
		return "enriching"
	case StateEnrichResolved:
		return "enrich-resolved"
	default:
		return "idle"
	}
}

// Selection is the outcome of selecting a suggestion.
type Selection struct {
	// SuggestionValue is the text to put in the input.
	SuggestionValue string

	// Suggestion is the selected, possibly enriched, suggestion.
	Suggestion Suggestion
}

// Provider orchestrates fetching, filtering, caching, selecting and
// enriching suggestions for a single input.
//
// At most one primary fetch is in flight: a new fetch cancels the
// previous one, whose late result is discarded. Enrichment requests are
// tied to the selection and are not canceled by later fetches.
//
// A Provider is safe for concurrent use. Callbacks from [Options] are
// invoked without holding internal locks.
type Provider struct {
	cfg      *Config
	services *Services
	logger   SLogger
	cache    *suggestionCache
	slot     Slot
	lifetime context.Context
	dispose  context.CancelCauseFunc

	mu          sync.Mutex
	opts        Options
	strategy    *Strategy
	statusKey   StatusKey
	suggestions []Suggestion
	chosenIndex int
	chosen      *Suggestion
	state       State
	fetchGen    uint64
}

// NewProvider returns a new [*Provider] configured with opts and kicks
// off the shared status check for its type and token.
func NewProvider(cfg *Config, services *Services, opts Options) (*Provider, error) {
	runtimex.Assert(cfg != nil && services != nil)
	if _, err := services.Registry.Lookup(opts.Type); err != nil {
		return nil, err
	}
	lifetime, dispose := context.WithCancelCause(context.Background())
	p := &Provider{
		cfg:         cfg,
		services:    services,
		logger:      cfg.Logger,
		cache:       newSuggestionCache(cfg.CacheSize),
		lifetime:    lifetime,
		dispose:     dispose,
		chosenIndex: -1,
	}
	p.UpdateOptions(opts)
	return p, nil
}

var _ OptionsTarget = &Provider{}

// UpdateOptions replaces the options. When the type or token changes,
// a status check is started for the new pair.
func (p *Provider) UpdateOptions(opts Options) {
	strategy, err := p.services.Registry.Lookup(opts.Type)
	if err != nil {
		p.logger.Warn("updateOptions", slog.Any("err", err))
	}
	resolved := opts.withDefaults(p.cfg)
	key := StatusKey{Type: opts.Type, Token: resolved.Token}

	p.mu.Lock()
	p.opts = opts.clone()
	p.strategy = strategy
	changed := key != p.statusKey
	p.statusKey = key
	p.mu.Unlock()

	if changed && strategy != nil {
		req := p.newRequest(opts, strategy, EndpointStatus)
		go p.checkStatus(key, req)
	}
}

// Options returns the current options.
func (p *Provider) Options() Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.clone()
}

func (p *Provider) snapshot() (Options, *Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts.clone(), p.strategy
}

func (p *Provider) checkStatus(key StatusKey, req *Request) {
	_, err := p.services.Status.Status(p.lifetime, key, req)
	if isReportable(err) {
		opts, _ := p.snapshot()
		if opts.OnSearchError != nil {
			opts.OnSearchError("", err)
		}
	}
}

// Status waits for the shared status record of the current type and
// token.
func (p *Provider) Status(ctx context.Context) (StatusRecord, error) {
	opts, strategy := p.snapshot()
	if strategy == nil {
		return StatusRecord{}, ErrUnknownType
	}
	p.mu.Lock()
	key := p.statusKey
	p.mu.Unlock()
	return p.services.Status.Status(ctx, key, p.newRequest(opts, strategy, EndpointStatus))
}

// ShowPromo reports whether the resolved status asks for the
// promotional hint (free plan). It never waits.
func (p *Provider) ShowPromo() bool {
	p.mu.Lock()
	key := p.statusKey
	p.mu.Unlock()
	rec, found := p.services.Status.Peek(key)
	return found && rec.Plan == PlanFree
}

// State returns the current state.
func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CanProcessQuery reports whether query would be sent to the service.
func (p *Provider) CanProcessQuery(query string) bool {
	opts, strategy := p.snapshot()
	return strategy != nil && strategy.CanProcessQuery(query, opts)
}

func (p *Provider) newRequest(opts Options, strategy *Strategy, endpoint Endpoint) *Request {
	opts = opts.withDefaults(p.cfg)
	req := &Request{
		Endpoint:   endpoint,
		URLSuffix:  strategy.URLSuffix,
		ServiceURL: opts.ServiceURL,
		Token:      opts.Token,
		Partner:    opts.Partner,
		Timeout:    opts.Timeout,
	}
	if endpoint == EndpointSuggest {
		req.URL = opts.URL
		req.Count = opts.Count
	}
	return req
}

// requestParams merges user params over the strategy defaults.
func (p *Provider) requestParams(ctx context.Context, query string, opts Options, strategy *Strategy) map[string]any {
	params := strategy.DefaultParams(query, opts)
	if opts.Params != nil {
		maps.Copy(params, opts.Params(ctx, query))
	}
	return params
}

// bindLifetime derives a context that is also canceled, with
// [ReasonDisposed], when the provider is disposed.
func (p *Provider) bindLifetime(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(p.lifetime, func() { cancel(ReasonDisposed) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// FetchSuggestions returns the suggestions for query.
//
// Queries the strategy refuses, or that OnSearchStart vetoes, yield an
// empty result without a request. Cached results are returned without
// a request. Otherwise the previous fetch is canceled and a new request
// is issued. When a newer fetch starts before this one completes, this
// one fails with an [*AbortError] and leaves the provider state alone.
func (p *Provider) FetchSuggestions(ctx context.Context, query string) ([]Suggestion, error) {
	opts, strategy := p.snapshot()
	if strategy == nil {
		return nil, ErrUnknownType
	}
	gen := p.nextGeneration()
	if !strategy.CanProcessQuery(query, opts) {
		p.commit(gen, nil, StateIdle)
		return []Suggestion{}, nil
	}

	ctx, stop := p.bindLifetime(ctx)
	defer stop()

	// claimed before computing params, which may wait for the location
	ctx, release, ok := p.claimSlot(ctx, gen)
	if !ok {
		return nil, &AbortError{Reason: ReasonSuperseded}
	}
	defer release()

	params := p.requestParams(ctx, query, opts, strategy)
	if ctx.Err() != nil {
		err := &AbortError{Reason: cancelReasonOf(ctx), Err: context.Cause(ctx)}
		if p.commitState(gen, StateAborted) && isReportable(err) && opts.OnSearchError != nil {
			opts.OnSearchError(query, err)
		}
		return nil, err
	}
	if opts.OnSearchStart != nil && !opts.OnSearchStart(query, maps.Clone(params)) {
		p.commit(gen, nil, StateIdle)
		return []Suggestion{}, nil
	}

	req := p.newRequest(opts, strategy, EndpointSuggest)
	req.Query = query
	req.Params = params

	key, cacheable := cacheKey(req.url()+"\x00"+query, params)
	cacheable = cacheable && !opts.noCache()
	if cacheable {
		if cached, found := p.cache.get(key); found {
			p.logger.Debug("suggestCacheHit", slog.String("query", query), slog.Int("count", len(cached)))
			if !p.commit(gen, cached, StateResolved) {
				return nil, &AbortError{Reason: ReasonSuperseded}
			}
			p.notifyComplete(opts, query, cached)
			return slices.Clone(cached), nil
		}
	}

	suggestions, err := p.fetch(ctx, req)
	if err != nil {
		state := StateErrored
		if IsAborted(err) {
			state = StateAborted
		}
		if !p.commitState(gen, state) {
			return nil, err
		}
		if isReportable(err) && opts.OnSearchError != nil {
			opts.OnSearchError(query, err)
		}
		return nil, err
	}
	if opts.OnSuggestionsFetch != nil {
		suggestions = opts.OnSuggestionsFetch(slices.Clone(suggestions))
	}
	if cacheable {
		p.cache.put(key, suggestions)
	}
	if !p.commit(gen, suggestions, StateResolved) {
		return nil, &AbortError{Reason: ReasonSuperseded}
	}
	p.notifyComplete(opts, query, suggestions)
	return slices.Clone(suggestions), nil
}

// claimSlot makes the fetch of generation gen the one in flight,
// canceling the previous one. It fails when a newer fetch started.
func (p *Provider) claimSlot(ctx context.Context, gen uint64) (context.Context, func(), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.fetchGen {
		return nil, nil, false
	}
	ctx, _, release := p.slot.Begin(ctx)
	p.state = StateFetching
	return ctx, release, true
}

func (p *Provider) fetch(ctx context.Context, req *Request) ([]Suggestion, error) {
	resp, err := p.services.Transport.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Suggestions()
}

func (p *Provider) notifyComplete(opts Options, query string, suggestions []Suggestion) {
	if opts.OnSearchComplete != nil {
		opts.OnSearchComplete(query, slices.Clone(suggestions))
	}
}

// nextGeneration starts a new fetch, canceling the one in flight.
func (p *Provider) nextGeneration() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slot.Cancel(ReasonSuperseded)
	p.fetchGen++
	return p.fetchGen
}

// commit installs suggestions if gen is still the latest fetch.
func (p *Provider) commit(gen uint64, suggestions []Suggestion, state State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.fetchGen {
		return false
	}
	p.suggestions = slices.Clone(suggestions)
	p.chosenIndex = -1
	p.state = state
	return true
}

func (p *Provider) commitState(gen uint64, state State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.fetchGen {
		return false
	}
	p.state = state
	return true
}

// SelectSuggestionByIndex selects the suggestion at index in the last
// fetched sequence. query is the input value at selection time.
func (p *Provider) SelectSuggestionByIndex(ctx context.Context, index int, query string) (Selection, error) {
	p.mu.Lock()
	opts, strategy := p.opts.clone(), p.strategy
	if index < 0 || index >= len(p.suggestions) || strategy == nil {
		p.mu.Unlock()
		p.notifyNothing(opts, query)
		return Selection{}, ErrNoSuggestion
	}
	suggestion := p.suggestions[index]
	p.chosenIndex = index
	gen := p.fetchGen
	p.mu.Unlock()
	return p.selectSuggestion(ctx, gen, suggestion, opts, strategy)
}

// SelectMatchingSuggestion selects the suggestion whose value equals
// query in the last fetched sequence.
func (p *Provider) SelectMatchingSuggestion(ctx context.Context, query string) (Selection, error) {
	p.mu.Lock()
	opts, strategy := p.opts.clone(), p.strategy
	index := slices.IndexFunc(p.suggestions, func(s Suggestion) bool {
		return s.Value == query
	})
	if index < 0 || strategy == nil {
		p.mu.Unlock()
		p.notifyNothing(opts, query)
		return Selection{}, ErrNoSuggestion
	}
	suggestion := p.suggestions[index]
	p.chosenIndex = index
	gen := p.fetchGen
	p.mu.Unlock()
	return p.selectSuggestion(ctx, gen, suggestion, opts, strategy)
}

func (p *Provider) notifyNothing(opts Options, query string) {
	if opts.OnSelectNothing != nil {
		opts.OnSelectNothing(query)
	}
}

// selectSuggestion resolves s, which belongs to the sequence fetched by
// generation gen.
func (p *Provider) selectSuggestion(ctx context.Context, gen uint64, s Suggestion, opts Options, strategy *Strategy) (Selection, error) {
	s = s.clone()
	if p.shouldEnrich(opts, strategy, s) {
		s = p.enrich(ctx, gen, opts, strategy, s)
	}
	value := p.formatSelected(opts, strategy, s)
	s.Value = value

	p.mu.Lock()
	previous := p.chosen
	chosen := s.clone()
	p.chosen = &chosen
	p.mu.Unlock()

	changed := previous == nil || previous.Value != s.Value || previous.UnrestrictedValue != s.UnrestrictedValue
	if opts.OnSelect != nil {
		opts.OnSelect(s.clone(), changed)
	}
	return Selection{SuggestionValue: value, Suggestion: s}, nil
}

// formatSelected prefers the user formatter unless it declines.
func (p *Provider) formatSelected(opts Options, strategy *Strategy, s Suggestion) string {
	if opts.FormatSelected != nil {
		if value, ok := opts.FormatSelected(s.clone()); ok {
			return value
		}
	}
	return strategy.FormatSelected(s, opts)
}

func (p *Provider) shouldEnrich(opts Options, strategy *Strategy, s Suggestion) bool {
	if !opts.enrichmentEnabled() || !strategy.IsEnrichable(s) {
		return false
	}
	p.mu.Lock()
	key := p.statusKey
	p.mu.Unlock()
	if rec, found := p.services.Status.Peek(key); found && !rec.Enrich {
		return false
	}
	return strategy.EnrichmentQuery(s) != ""
}

// enrich re-queries s by its identifier and returns it with the
// complete data. Failures keep the original suggestion. The state only
// moves while no newer fetch started after generation gen.
func (p *Provider) enrich(ctx context.Context, gen uint64, opts Options, strategy *Strategy, s Suggestion) Suggestion {
	p.commitState(gen, StateEnriching)
	defer p.commitState(gen, StateEnrichResolved)

	ctx, stop := p.bindLifetime(ctx)
	defer stop()

	req := p.newRequest(opts, strategy, strategy.EnrichmentEndpoint)
	req.Query = strategy.EnrichmentQuery(s)
	req.Count = 1
	p.logger.Info("enrichStart", slog.String("type", string(strategy.Type)), slog.String("query", req.Query))
	found, err := p.fetch(ctx, req)
	if err == nil && len(found) == 0 {
		err = ErrNoSuggestion
	}
	if err != nil {
		p.logger.Warn("enrichDone", slog.Any("err", err), slog.String("errClass", p.cfg.ErrClassifier.Classify(err)))
		return s
	}
	p.logger.Info("enrichDone", slog.Any("err", nil))
	s.Data = found[0].clone().Data
	return s
}

// SetSuggestion installs s as the chosen suggestion without a request.
func (p *Provider) SetSuggestion(s Suggestion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slot.Cancel(ReasonSuperseded)
	p.fetchGen++
	chosen := s.clone()
	p.chosen = &chosen
	p.suggestions = []Suggestion{s.clone()}
	p.chosenIndex = 0
	p.state = StateResolved
}

// Clear cancels the in-flight fetch, drops the fetched suggestions and
// the chosen one, and returns the latter (nil when nothing was chosen).
// OnInvalidateSelection is called when something was chosen.
func (p *Provider) Clear() *Suggestion {
	p.mu.Lock()
	p.slot.Cancel(ReasonDisposed)
	opts := p.opts
	previous := p.chosen
	p.fetchGen++
	p.chosen = nil
	p.chosenIndex = -1
	p.suggestions = nil
	p.state = StateIdle
	p.mu.Unlock()

	if previous != nil && opts.OnInvalidateSelection != nil {
		opts.OnInvalidateSelection(previous.clone())
	}
	return previous
}

// ClearCache empties this provider's cache.
func (p *Provider) ClearCache() {
	p.cache.purge()
}

// Dispose cancels every in-flight request of this provider, including
// enrichment and its status check wait, with [ReasonDisposed].
func (p *Provider) Dispose() {
	p.mu.Lock()
	p.slot.Cancel(ReasonDisposed)
	p.fetchGen++
	p.mu.Unlock()
	p.dispose(ReasonDisposed)
}

// Suggestions returns the last fetched sequence.
func (p *Provider) Suggestions() []Suggestion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.suggestions)
}

// Selection returns the chosen suggestion.
func (p *Provider) Selection() (Suggestion, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chosen == nil {
		return Suggestion{}, false
	}
	return p.chosen.clone(), true
}

// SelectedIndex returns the selection cursor, -1 meaning none.
func (p *Provider) SelectedIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chosenIndex
}

// SuggestionsAs decodes the data of the last fetched sequence.
func SuggestionsAs[T any](p *Provider) ([]T, error) {
	var out []T
	var errs []error
	for _, s := range p.Suggestions() {
		value, err := DecodeData[T](s)
		errs = append(errs, err)
		out = append(out, value)
	}
	return out, errors.Join(errs...)
}

// SelectionAs decodes the data of the chosen suggestion.
func SelectionAs[T any](p *Provider) (T, bool, error) {
	s, found := p.Selection()
	if !found {
		var zero T
		return zero, false, nil
	}
	value, err := DecodeData[T](s)
	return value, true, err
}
