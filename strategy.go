// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"fmt"
	"strings"
	"sync"
)

// Strategy encapsulates everything that differs between suggestion
// types: when a query may be sent, which parameters go with it, whether
// a selected record needs enrichment, and how it is formatted.
//
// A nil function field selects the default behavior documented on the
// method that uses it.
type Strategy struct {
	// Type is the suggestion type this strategy serves.
	Type Type

	// URLSuffix is the last path component of the suggest endpoint.
	URLSuffix string

	// GeoEnabled means the type accepts the IP-based locations boost.
	GeoEnabled bool

	// EnrichmentEnabled means partial records are re-queried on selection.
	EnrichmentEnabled bool

	// EnrichmentEndpoint is the endpoint used to re-query.
	EnrichmentEndpoint Endpoint

	// QueryRequestable overrides [Strategy.CanProcessQuery].
	QueryRequestable func(query string, opts Options) bool

	// Params overrides [Strategy.DefaultParams].
	Params func(query string, opts Options) map[string]any

	// EnrichmentKey overrides [Strategy.EnrichmentQuery].
	EnrichmentKey func(s Suggestion) string

	// Format overrides [Strategy.FormatSelected].
	Format func(s Suggestion, opts Options) string
}

// CanProcessQuery reports whether a request for query is worth sending.
// The default accepts any non-blank query.
func (st *Strategy) CanProcessQuery(query string, opts Options) bool {
	if st.QueryRequestable != nil {
		return st.QueryRequestable(query, opts)
	}
	return strings.TrimSpace(query) != ""
}

// DefaultParams returns the type-specific request parameters. User
// params are merged on top of these by the provider.
func (st *Strategy) DefaultParams(query string, opts Options) map[string]any {
	if st.Params == nil {
		return map[string]any{}
	}
	params := st.Params(query, opts)
	if params == nil {
		params = map[string]any{}
	}
	return params
}

// IsEnrichable reports whether s is a partial record worth re-querying:
// the type takes part in enrichment and the record has no "qc"
// completeness marker yet.
func (st *Strategy) IsEnrichable(s Suggestion) bool {
	if !st.EnrichmentEnabled || !s.hasData() {
		return false
	}
	return s.FieldString("qc") == ""
}

// EnrichmentQuery returns the identifier used to re-query s. The
// default is the unrestricted value.
func (st *Strategy) EnrichmentQuery(s Suggestion) string {
	if st.EnrichmentKey != nil {
		return st.EnrichmentKey(s)
	}
	if s.UnrestrictedValue != "" {
		return s.UnrestrictedValue
	}
	return s.Value
}

// FormatSelected returns the default text put in the input when s is
// selected. The default is the suggestion value.
func (st *Strategy) FormatSelected(s Suggestion, opts Options) string {
	if st.Format != nil {
		if value := st.Format(s, opts); value != "" {
			return value
		}
	}
	return s.Value
}

func addressParams(query string, opts Options) map[string]any {
	params := map[string]any{}
	if bounds := ParseBounds(opts.Bounds); !bounds.IsZero() {
		if bounds.From != "" {
			params["from_bound"] = map[string]any{"value": bounds.From}
		}
		if bounds.To != "" {
			params["to_bound"] = map[string]any{"value": bounds.To}
		}
	}
	if len(opts.Constraints) > 0 {
		params["locations"] = opts.Constraints
		if opts.restrictValue() {
			params["restrict_value"] = true
		}
	}
	return params
}

func addressFormat(s Suggestion, opts Options) string {
	bounds := ParseBounds(opts.Bounds)
	if bounds.IsZero() {
		return ""
	}
	return BoundedValue(opts.Type, s, bounds)
}

func partyEnrichmentKey(s Suggestion) string {
	if hid := s.FieldString("hid"); hid != "" {
		return hid
	}
	return s.FieldString("inn")
}

func bankEnrichmentKey(s Suggestion) string {
	return s.FieldString("bic")
}

func emailRequestable(query string, opts Options) bool {
	return opts.suggestLocal() || strings.Contains(query, "@")
}

// builtinStrategies returns fresh copies of the built-in strategies.
func builtinStrategies() []*Strategy {
	return []*Strategy{{
		Type:               TypeAddress,
		URLSuffix:          "address",
		GeoEnabled:         true,
		EnrichmentEnabled:  true,
		EnrichmentEndpoint: EndpointSuggest,
		Params:             addressParams,
		Format:             addressFormat,
	}, {
		Type:      TypeFIAS,
		URLSuffix: "fias",
		Params:    addressParams,
		Format:    addressFormat,
	}, {
		Type:      TypeName,
		URLSuffix: "fio",
	}, {
		Type:               TypeParty,
		URLSuffix:          "party",
		GeoEnabled:         true,
		EnrichmentEnabled:  true,
		EnrichmentEndpoint: EndpointFindByID,
		EnrichmentKey:      partyEnrichmentKey,
	}, {
		Type:               TypeBank,
		URLSuffix:          "bank",
		GeoEnabled:         true,
		EnrichmentEnabled:  true,
		EnrichmentEndpoint: EndpointFindByID,
		EnrichmentKey:      bankEnrichmentKey,
	}, {
		Type:             TypeEmail,
		URLSuffix:        "email",
		QueryRequestable: emailRequestable,
	}, {
		Type:      TypeMetro,
		URLSuffix: "metro",
	}}
}

// Registry maps suggestion types to strategies.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[Type]*Strategy
}

// NewRegistry returns a [*Registry] holding the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{byType: map[Type]*Strategy{}}
	for _, st := range builtinStrategies() {
		r.byType[st.Type] = st
	}
	return r
}

// Register adds or replaces the strategy for st.Type.
func (r *Registry) Register(st *Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[st.Type] = st
}

// Lookup returns the strategy for typ.
func (r *Registry) Lookup(typ Type) (*Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, found := r.byType[typ]
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return st, nil
}
