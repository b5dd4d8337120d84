// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"time"
)

// Type identifies a kind of suggestion and selects its [*Strategy].
type Type string

// Built-in suggestion types.
const (
	TypeAddress Type = "address"
	TypeName    Type = "name"
	TypeParty   Type = "party"
	TypeBank    Type = "bank"
	TypeEmail   Type = "email"
	TypeFIAS    Type = "fias"
	TypeMetro   Type = "metro"
)

// ParamsFunc computes the extra request parameters for a query.
//
// The returned map belongs to the caller, which may modify it.
type ParamsFunc func(ctx context.Context, query string) map[string]any

// StaticParams adapts a fixed parameters object to a [ParamsFunc].
func StaticParams(params map[string]any) ParamsFunc {
	frozen := maps.Clone(params)
	return func(context.Context, string) map[string]any {
		return maps.Clone(frozen)
	}
}

// Options configures a [*Provider].
//
// Options double as patches: a zero field means "not set", so merging a
// patch with [Options.Merge] only replaces the fields the patch sets.
// Tri-state flags are pointers for this reason; use [Bool] to set them.
// To clear Constraints, set it to an empty non-nil slice.
type Options struct {
	// Type selects the suggestion strategy.
	Type Type

	// Token is the API token.
	Token string

	// Partner is sent in the X-Partner header.
	Partner string

	// ServiceURL is the service base URL.
	ServiceURL string

	// URL replaces the full suggest URL when set.
	URL string

	// Timeout bounds each request.
	Timeout time.Duration

	// Count is the maximum number of suggestions to request.
	Count int

	// Params computes user request parameters; they win over the
	// strategy defaults on key conflicts.
	Params ParamsFunc

	// NoCache disables the per-provider cache.
	NoCache *bool

	// Bounds restricts address suggestions to a range of the address
	// hierarchy, written "from-to" (e.g., "city-settlement") or as a
	// single bound (e.g., "street").
	Bounds string

	// Constraints become the "locations" request parameter.
	Constraints []map[string]any

	// RestrictValue asks the service to drop the constrained part from
	// the suggestion value.
	RestrictValue *bool

	// Geolocation enables the IP-based locations boost (default true).
	Geolocation *bool

	// EnrichmentEnabled enables the follow-up request after selecting a
	// partial suggestion (default true).
	EnrichmentEnabled *bool

	// SuggestLocal lets email suggestions start before the "@".
	SuggestLocal *bool

	// FormatSelected formats the value put in the input on selection.
	// Returning ok=false falls back to the default formatting; returning
	// ("", true) clears the input.
	FormatSelected func(s Suggestion) (value string, ok bool)

	// OnSuggestionsFetch filters the fetched suggestions before caching.
	OnSuggestionsFetch func(suggestions []Suggestion) []Suggestion

	// OnSearchStart is called before a request; returning false
	// suppresses it.
	OnSearchStart func(query string, params map[string]any) bool

	// OnSearchComplete is called after a successful fetch.
	OnSearchComplete func(query string, suggestions []Suggestion)

	// OnSearchError is called for reportable failures.
	OnSearchError func(query string, err error)

	// OnSelect is called after a selection. changed is false when the
	// same suggestion was selected again.
	OnSelect func(s Suggestion, changed bool)

	// OnSelectNothing is called when a selection matches nothing.
	OnSelectNothing func(query string)

	// OnInvalidateSelection is called when a previous choice is dropped.
	OnInvalidateSelection func(s Suggestion)
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// Merge returns a copy of o where every field set in patch replaces the
// corresponding field of o. Neither o nor patch is modified.
func (o Options) Merge(patch Options) Options {
	merged := o
	dst := reflect.ValueOf(&merged).Elem()
	src := reflect.ValueOf(patch)
	for i := 0; i < src.NumField(); i++ {
		field := src.Field(i)
		if field.IsZero() {
			continue
		}
		dst.Field(i).Set(field)
	}
	return merged.clone()
}

// clone copies the slice fields so that the result shares no mutable
// state with o.
func (o Options) clone() Options {
	if o.Constraints != nil {
		o.Constraints = slices.Clone(o.Constraints)
		for i, c := range o.Constraints {
			o.Constraints[i] = maps.Clone(c)
		}
	}
	return o
}

func (o Options) noCache() bool           { return boolOr(o.NoCache, false) }
func (o Options) geolocation() bool       { return boolOr(o.Geolocation, true) }
func (o Options) enrichmentEnabled() bool { return boolOr(o.EnrichmentEnabled, true) }
func (o Options) restrictValue() bool     { return boolOr(o.RestrictValue, false) }
func (o Options) suggestLocal() bool      { return boolOr(o.SuggestLocal, false) }

// withDefaults fills connection fields left empty from cfg.
func (o Options) withDefaults(cfg *Config) Options {
	if o.ServiceURL == "" {
		o.ServiceURL = cfg.ServiceURL
	}
	if o.Token == "" {
		o.Token = cfg.Token
	}
	if o.Partner == "" {
		o.Partner = cfg.Partner
	}
	if o.Timeout == 0 {
		o.Timeout = cfg.Timeout
	}
	if o.Count == 0 {
		o.Count = DefaultCount
	}
	return o
}
