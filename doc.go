// SPDX-License-Identifier: GPL-3.0-or-later

// Package suggestions implements the core of an autocomplete widget backed
// by a remote suggestion service (addresses, names, companies, banks, emails
// and metro stations).
//
// # Core Abstraction
//
// Every blocking operation is a [Func]:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// The [*Transport] is a Func from [*Request] to [*Response] composed from
// smaller stages with [Compose3]. Everything above it only depends on the
// Func interface, so tests can replace it with a [FuncAdapter].
//
// # Components
//
// Leaf to root:
//   - [*Transport]: one cancelable, timeout-bounded call to the service
//   - [*Registry] and [*Strategy]: per-type query rules, parameters,
//     enrichment and formatting
//   - [BoundedValue]: formats a record between two hierarchy bounds
//   - [*StatusCoalescer]: one status check per (type, token)
//   - [*Provider]: fetch, filter, cache, select and enrich
//   - [*OptionsSpy]: threads option updates through ordered transforms
//   - [*Locator] and [Link]: the geolocation and granular transforms
//
// A [*Factory] wires these together and creates [*Instance] values, each
// pairing a provider with its spy. Instances of the same factory share
// [*Services]; instances of different factories share nothing.
//
// # Cancellation
//
// A provider has at most one primary fetch in flight. Starting a new one
// cancels the previous one with [ReasonSuperseded]. [Provider.Clear] and
// [Provider.Dispose] cancel with [ReasonDisposed], and request timeouts
// surface as [ReasonTimeout]. Only timeouts are reported through
// OnSearchError; see [AbortError].
//
// # Observability
//
// All components log through [SLogger] (compatible with [log/slog]).
// Logging is disabled by default. Service calls emit
// suggestRequestStart/suggestRequestDone span events carrying spanID,
// t0, t, err and errClass; errClass comes from the configured
// [ErrClassifier].
package suggestions
