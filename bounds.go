// SPDX-License-Identifier: GPL-3.0-or-later

package suggestions

import (
	"slices"
	"strings"
)

// addressHierarchy lists the address fields from the widest to the
// narrowest. Bounds name elements of this list.
var addressHierarchy = []string{
	"country",
	"region",
	"area",
	"city",
	"city_district",
	"settlement",
	"street",
	"house",
	"block",
	"flat",
}

// Bounds is an inclusive range of a type's field hierarchy.
type Bounds struct {
	From string
	To   string
}

// ParseBounds parses "from-to" (e.g., "city-settlement") or a single
// bound (e.g., "street", meaning "street-street").
func ParseBounds(spec string) Bounds {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Bounds{}
	}
	from, to, found := strings.Cut(spec, "-")
	if !found {
		return Bounds{From: from, To: from}
	}
	return Bounds{From: strings.TrimSpace(from), To: strings.TrimSpace(to)}
}

// IsZero reports whether no bound is set.
func (b Bounds) IsZero() bool {
	return b.From == "" && b.To == ""
}

// hierarchyFor returns the field hierarchy of typ, or nil when the type
// has no bounds.
func hierarchyFor(typ Type) []string {
	switch typ {
	case TypeAddress, TypeFIAS:
		return addressHierarchy
	default:
		return nil
	}
}

// span returns the indexes of the range within hierarchy. An empty From
// starts at the top and an empty To ends at the bottom. ok is false when
// a bound is unknown or From comes after To.
func (b Bounds) span(hierarchy []string) (from, to int, ok bool) {
	from, to = 0, len(hierarchy)-1
	if b.From != "" {
		if from = slices.Index(hierarchy, b.From); from < 0 {
			return 0, 0, false
		}
	}
	if b.To != "" {
		if to = slices.Index(hierarchy, b.To); to < 0 {
			return 0, 0, false
		}
	}
	return from, to, from <= to
}

// BoundedValue renders the fields of s within bounds, joined by ", ".
//
// Each field renders as its "<field>_with_type" companion when present,
// otherwise as "<field>_type <field>", otherwise as the bare value. A
// city named like its region (e.g., Moscow) is emitted once. The result
// is "" when nothing in range has a value, in which case callers fall
// back to the suggestion value.
func BoundedValue(typ Type, s Suggestion, bounds Bounds) string {
	hierarchy := hierarchyFor(typ)
	if hierarchy == nil || !s.hasData() {
		return ""
	}
	from, to, ok := bounds.span(hierarchy)
	if !ok {
		return ""
	}
	region := ""
	if from <= slices.Index(hierarchy, "region") {
		region = s.FieldString("region")
	}
	var parts []string
	for i := from; i <= to; i++ {
		name := hierarchy[i]
		value := s.FieldString(name)
		if value == "" {
			continue
		}
		if name == "city" && value == region {
			continue
		}
		parts = append(parts, formatBoundField(s, name, value))
	}
	return strings.Join(parts, ", ")
}

func formatBoundField(s Suggestion, name, value string) string {
	if withType := s.FieldString(name + "_with_type"); withType != "" {
		return withType
	}
	if typ := s.FieldString(name + "_type"); typ != "" {
		return typ + " " + value
	}
	return value
}
