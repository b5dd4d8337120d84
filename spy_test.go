// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTarget records the options it receives.
type recordingTarget struct {
	updates []Options
}

func (r *recordingTarget) UpdateOptions(opts Options) {
	r.updates = append(r.updates, opts)
}

func (r *recordingTarget) last() Options {
	return r.updates[len(r.updates)-1]
}

// appendTransform appends suffix to Partner.
func appendTransform(suffix string) Transform {
	return func(opts Options) *Options {
		return &Options{Partner: opts.Partner + suffix}
	}
}

func TestOptionsSpy(t *testing.T) {
	t.Run("set options merges into the base and applies the chain", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Type: TypeAddress, Partner: "p"})
		spy.Subscribe("a", appendTransform("-a"))
		spy.Subscribe("b", appendTransform("-b"))

		spy.SetOptions(Options{Token: "t"})

		final := target.last()
		assert.Equal(t, TypeAddress, final.Type)
		assert.Equal(t, "t", final.Token)
		assert.Equal(t, "p-a-b", final.Partner)
		assert.Equal(t, "p", spy.BaseOptions().Partner)
	})

	t.Run("rerunning the chain over unchanged base options is idempotent", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Partner: "p", Constraints: []map[string]any{{"kladr_id": "77"}}})
		spy.Subscribe("a", appendTransform("-a"))

		spy.SetOptions(Options{})
		first := target.last()
		spy.SetOptions(Options{})
		second := target.last()
		spy.Refresh()
		third := target.last()

		assert.Equal(t, "p-a", first.Partner)
		assert.Equal(t, first.Partner, second.Partner)
		assert.Equal(t, first.Constraints, second.Constraints)
		assert.Equal(t, second.Partner, third.Partner)
	})

	t.Run("subscribe applies immediately", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Partner: "p"})
		assert.Empty(t, target.updates)

		spy.Subscribe("a", appendTransform("-a"))

		require.Len(t, target.updates, 1)
		assert.Equal(t, "p-a", target.last().Partner)
	})

	t.Run("resubscribing an id replaces it in place", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Partner: "p"})
		spy.Subscribe("a", appendTransform("-a"))
		spy.Subscribe("b", appendTransform("-b"))

		spy.Subscribe("a", appendTransform("-A"))

		assert.Equal(t, []string{"a", "b"}, spy.Subscribers())
		assert.Equal(t, "p-A-b", target.last().Partner)
	})

	t.Run("options before an id ignore later subscribers", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Partner: "p"})
		spy.Subscribe("a", appendTransform("-a"))
		spy.Subscribe("b", appendTransform("-b"))
		updates := len(target.updates)

		assert.Equal(t, "p-a", spy.Options("b").Partner)
		assert.Equal(t, "p", spy.Options("a").Partner)
		assert.Equal(t, "p-a-b", spy.Options("").Partner)
		assert.Equal(t, "p-a-b", spy.Options("unknown").Partner)
		assert.Len(t, target.updates, updates, "reading options must not touch the target")
	})

	t.Run("nil patches leave options unchanged", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Partner: "p"})

		spy.Subscribe("noop", func(Options) *Options { return nil })

		assert.Equal(t, "p", target.last().Partner)
	})

	t.Run("transforms cannot corrupt the base", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Constraints: []map[string]any{{"kladr_id": "77"}}})

		spy.Subscribe("evil", func(opts Options) *Options {
			opts.Constraints[0]["kladr_id"] = "00"
			return nil
		})

		assert.Equal(t, "77", spy.BaseOptions().Constraints[0]["kladr_id"])
	})

	t.Run("unsubscribe", func(t *testing.T) {
		target := &recordingTarget{}
		spy := NewOptionsSpy(target, Options{Partner: "p"})
		spy.Subscribe("a", appendTransform("-a"))

		assert.True(t, spy.Unsubscribe("a"))
		assert.False(t, spy.Unsubscribe("a"))
		assert.Equal(t, "p", target.last().Partner)
		assert.Empty(t, spy.Subscribers())
	})
}
