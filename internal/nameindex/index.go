// Package nameindex maps display names to candidate numeric identifiers for
// the two identifier namespaces of the dataset: items and wallet currencies.
//
// Each namespace has two layers. The generated index is produced out-of-band
// by a bulk refresh against the game API ([Build]) and may map one item name
// to several ids (name collisions across item variants). The override layer is
// a hand-maintained flat name→id file that is absolute: an override hit
// short-circuits the generated index entirely. Overrides are never merged back
// into generated data, keeping provenance traceable.
//
// Matching is exact-string only. A name that differs from the index in casing
// or punctuation is not found — that is deliberate; callers get predictable
// results and fix their data (or add an override) instead of trusting an
// approximate match. [Index.Suggest] offers advisory near-miss names for
// error messages, never for resolution.
package nameindex

import (
	"fmt"
	"slices"

	"github.com/antzucaro/matchr"
)

// Namespace selects which identifier space a name belongs to.
type Namespace string

const (
	// NamespaceItem is the item-id namespace (many ids may share a name).
	NamespaceItem Namespace = "item"

	// NamespaceCurrency is the wallet-currency namespace (one id per name).
	NamespaceCurrency Namespace = "currency"
)

// IsValid reports whether n is a recognised namespace.
func (n Namespace) IsValid() bool {
	return n == NamespaceItem || n == NamespaceCurrency
}

// suggestThreshold is the minimum Jaro-Winkler similarity for a name to be
// offered as a "did you mean" hint.
const suggestThreshold = 0.92

// Index is the merged two-layer lookup. It is built once per run and
// read-only thereafter; concurrent readers need no locking.
type Index struct {
	items      map[string][]int
	currencies map[string]int

	itemOverrides     map[string]int
	currencyOverrides map[string]int
}

// New assembles an Index from pre-loaded generated layers and override
// layers. Any map may be nil. Candidate lists are copied and sorted so later
// lookups are reproducible regardless of input order.
func New(items map[string][]int, currencies map[string]int, itemOverrides, currencyOverrides map[string]int) *Index {
	ix := &Index{
		items:             make(map[string][]int, len(items)),
		currencies:        make(map[string]int, len(currencies)),
		itemOverrides:     make(map[string]int, len(itemOverrides)),
		currencyOverrides: make(map[string]int, len(currencyOverrides)),
	}
	for name, ids := range items {
		sorted := slices.Clone(ids)
		slices.Sort(sorted)
		ix.items[name] = slices.Compact(sorted)
	}
	for name, id := range currencies {
		ix.currencies[name] = id
	}
	for name, id := range itemOverrides {
		ix.itemOverrides[name] = id
	}
	for name, id := range currencyOverrides {
		ix.currencyOverrides[name] = id
	}
	return ix
}

// Lookup returns the candidate ids for name in the given namespace, sorted
// ascending. An override hit returns exactly that id. Otherwise the generated
// candidate set is returned: empty (unknown name), a singleton (unambiguous),
// or multi-valued (ambiguous — the caller decides what that means).
func (ix *Index) Lookup(ns Namespace, name string) []int {
	switch ns {
	case NamespaceItem:
		if id, ok := ix.itemOverrides[name]; ok {
			return []int{id}
		}
		return slices.Clone(ix.items[name])
	case NamespaceCurrency:
		if id, ok := ix.currencyOverrides[name]; ok {
			return []int{id}
		}
		if id, ok := ix.currencies[name]; ok {
			return []int{id}
		}
		return nil
	default:
		return nil
	}
}

// HasOverride reports whether name has an override in the given namespace.
// Used by diagnostics to report provenance.
func (ix *Index) HasOverride(ns Namespace, name string) bool {
	switch ns {
	case NamespaceItem:
		_, ok := ix.itemOverrides[name]
		return ok
	case NamespaceCurrency:
		_, ok := ix.currencyOverrides[name]
		return ok
	}
	return false
}

// Len returns the number of distinct generated names in the namespace.
func (ix *Index) Len(ns Namespace) int {
	switch ns {
	case NamespaceItem:
		return len(ix.items)
	case NamespaceCurrency:
		return len(ix.currencies)
	}
	return 0
}

// Suggest returns up to max known names similar to name, best match first.
// The hints are advisory text for diagnostics; resolution remains
// exact-string only.
func (ix *Index) Suggest(ns Namespace, name string, max int) []string {
	if max <= 0 {
		return nil
	}
	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	add := func(known string) {
		if known == name {
			return
		}
		if s := matchr.JaroWinkler(name, known, false); s >= suggestThreshold {
			candidates = append(candidates, scored{name: known, score: s})
		}
	}
	switch ns {
	case NamespaceItem:
		for known := range ix.items {
			add(known)
		}
		for known := range ix.itemOverrides {
			add(known)
		}
	case NamespaceCurrency:
		for known := range ix.currencies {
			add(known)
		}
		for known := range ix.currencyOverrides {
			add(known)
		}
	}
	slices.SortFunc(candidates, func(a, b scored) int {
		if a.score != b.score {
			if a.score > b.score {
				return -1
			}
			return 1
		}
		// Tie-break on name for deterministic output.
		if a.name < b.name {
			return -1
		}
		if a.name > b.name {
			return 1
		}
		return 0
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// DuplicateCurrencyError reports a one-to-one violation in the generated
// currency index. This is a data-integrity bug in the upstream refresh and
// fails the whole index load rather than resolving silently.
type DuplicateCurrencyError struct {
	Name string
	IDs  []int
}

func (e *DuplicateCurrencyError) Error() string {
	return fmt.Sprintf("nameindex: currency name %q maps to multiple ids %v; the currency index must be one-to-one", e.Name, e.IDs)
}
