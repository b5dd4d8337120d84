// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

// Link makes the child instance follow the selection of the parent.
//
// Whenever the parent selection changes, the child is cleared and its
// queries are restricted to the area of the selected parent record,
// identified by its "kladr_id" (or "fias_id" when missing). Once the
// parent selection is cleared the child goes back to its own options.
//
// Link fails with [ErrSelfLink] when parent and child are the same
// instance and with [ErrForeignInstance] when they come from different
// factories. Linking the same pair again replaces the previous link.
func Link(parent, child *Instance) error {
	if parent == child {
		return ErrSelfLink
	}
	if parent.family == nil || parent.family != child.family {
		return ErrForeignInstance
	}
	child.Spy.Subscribe(granularChildID(parent), granularChildTransform(parent))
	parent.Spy.Subscribe(granularParentID(child), granularParentTransform(child))
	return nil
}

// Unlink undoes [Link]. It reports whether the two were linked.
func Unlink(parent, child *Instance) bool {
	unlinked := child.Spy.Unsubscribe(granularChildID(parent))
	return parent.Spy.Unsubscribe(granularParentID(child)) && unlinked
}

func granularChildID(parent *Instance) string {
	return "granular:" + parent.ID
}

func granularParentID(child *Instance) string {
	return "granular-parent:" + child.ID
}

// granularChildTransform restricts the child to the parent selection.
func granularChildTransform(parent *Instance) Transform {
	return func(opts Options) *Options {
		selection, found := parent.Provider.Selection()
		if !found {
			return nil
		}
		constraint := granularConstraint(selection)
		if constraint == nil {
			return nil
		}
		return &Options{
			Constraints:   []map[string]any{constraint},
			RestrictValue: Bool(true),
		}
	}
}

func granularConstraint(s Suggestion) map[string]any {
	if kladrID := s.FieldString("kladr_id"); kladrID != "" {
		return map[string]any{"kladr_id": kladrID}
	}
	if fiasID := s.FieldString("fias_id"); fiasID != "" {
		return map[string]any{"fias_id": fiasID}
	}
	return nil
}

// granularParentTransform chains the parent selection callbacks with
// a refresh of the child.
func granularParentTransform(child *Instance) Transform {
	return func(opts Options) *Options {
		onSelect := opts.OnSelect
		onInvalidate := opts.OnInvalidateSelection
		return &Options{
			OnSelect: func(s Suggestion, changed bool) {
				if onSelect != nil {
					onSelect(s, changed)
				}
				if changed {
					child.Provider.Clear()
				}
				child.Spy.Refresh()
			},
			OnInvalidateSelection: func(s Suggestion) {
				if onInvalidate != nil {
					onInvalidate(s)
				}
				child.Provider.Clear()
				child.Spy.Refresh()
			},
		}
	}
}
