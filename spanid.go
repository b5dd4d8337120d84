// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying a single transport call.
//
// Every request issued by [*Transport] logs its start and done events
// with the same spanID, so a suggest request, its enrichment follow-up
// and the shared status check can be told apart in the logs.
//
// This function panics if the system random number generator fails.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}

// newInstanceID returns the identifier of an [*Instance]. Random
// rather than time-ordered: it only needs to be unique.
func newInstanceID() string {
	return uuid.NewString()
}
