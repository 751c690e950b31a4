// Package resolve turns classified entries with name-based references into
// acquisitions with numeric ids.
//
// Resolution is exact-string against the name index: a name that matches
// zero or several ids is ambiguous, and no fuzzy matching is attempted.
// Fuzzy candidates appear only as advisory suggestions inside the error, for
// a human reading the run log. Ingredient names carry no namespace tag, so
// the currency namespace is consulted first; currency names are rarer and
// unique, which keeps the common collisions (e.g. "Mystic Coin" the item vs
// the unrelated wallet entry) deterministic.
package resolve

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
	"github.com/krjackso/gw2-data-repo/internal/classify"
	"github.com/krjackso/gw2-data-repo/internal/extract"
	"github.com/krjackso/gw2-data-repo/internal/nameindex"
)

// Mode controls what happens when a reference cannot be resolved.
type Mode string

const (
	// ModeStrict fails the whole entry batch on the first unresolvable
	// reference.
	ModeStrict Mode = "strict"
	// ModeLenient drops the offending acquisition and keeps the rest.
	ModeLenient Mode = "lenient"
)

// IsValid reports whether the mode is one of the defined constants.
func (m Mode) IsValid() bool {
	return m == ModeStrict || m == ModeLenient
}

// maxSuggestions bounds the advisory near-match list on ambiguity errors.
const maxSuggestions = 3

// AmbiguousNameError reports a name that resolved to zero or several ids.
// Suggestions hold near-matches for log readers; they never influence
// resolution.
type AmbiguousNameError struct {
	Name        string
	Namespace   nameindex.Namespace
	Candidates  []int
	Suggestions []string
}

func (e *AmbiguousNameError) Error() string {
	if len(e.Candidates) == 0 {
		if len(e.Suggestions) > 0 {
			return fmt.Sprintf("resolve: %s name %q matches nothing (did you mean %v?)", e.Namespace, e.Name, e.Suggestions)
		}
		return fmt.Sprintf("resolve: %s name %q matches nothing", e.Namespace, e.Name)
	}
	return fmt.Sprintf("resolve: %s name %q matches multiple ids %v", e.Namespace, e.Name, e.Candidates)
}

// Resolver resolves name references through a fixed index snapshot. Aside
// from logging it is pure: the same entry against the same index always
// yields the same acquisitions.
type Resolver struct {
	index  *nameindex.Index
	logger *slog.Logger
}

// New constructs a Resolver over the given index.
func New(index *nameindex.Index, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{index: index, logger: logger}
}

// Resolve resolves one classified entry. Most entries yield exactly one
// acquisition; a salvage source name matching several item ids yields one
// acquisition per candidate, in ascending id order.
func (r *Resolver) Resolve(entry classify.Entry) ([]acquisition.Acquisition, error) {
	reqs, err := r.resolveIngredients(entry.Ingredients)
	if err != nil {
		return nil, err
	}

	base := acquisition.Acquisition{
		Kind:                entry.Kind,
		OutputQuantity:      entry.Quantity,
		OutputQuantityMin:   entry.QuantityMin,
		OutputQuantityMax:   entry.QuantityMax,
		Requirements:        reqs,
		VendorName:          entry.VendorName,
		TrackName:           entry.TrackName,
		ContainerName:       entry.ContainerName,
		NodeName:            entry.NodeName,
		AchievementName:     entry.AchievementName,
		AchievementCategory: entry.AchievementCategory,
		Metadata:            entry.Metadata,
	}

	switch entry.Kind {
	case acquisition.KindSalvage:
		ids := r.index.Lookup(nameindex.NamespaceItem, entry.SourceName)
		if len(ids) == 0 {
			return nil, r.ambiguous(nameindex.NamespaceItem, entry.SourceName, nil)
		}
		ids = slices.Clone(ids)
		slices.Sort(ids)
		out := make([]acquisition.Acquisition, 0, len(ids))
		for _, id := range ids {
			acq := base
			acq.SourceItemID = id
			out = append(out, acq)
		}
		return out, nil
	case acquisition.KindContainer:
		// Containers resolve opportunistically; an unresolvable or
		// ambiguous source keeps its display name only.
		ids := r.index.Lookup(nameindex.NamespaceItem, entry.SourceName)
		if len(ids) == 1 {
			base.SourceItemID = ids[0]
		} else {
			r.logger.Debug("container source not uniquely resolvable",
				"name", entry.SourceName, "candidates", len(ids))
		}
	}
	return []acquisition.Acquisition{base}, nil
}

// ResolveAll resolves a batch under a mode. In strict mode the first
// unresolvable reference aborts and err is non-nil. In lenient mode
// unresolvable entries are dropped and returned in dropped for reporting;
// err is always nil.
func (r *Resolver) ResolveAll(entries []classify.Entry, mode Mode) (acqs []acquisition.Acquisition, dropped []error, err error) {
	for _, entry := range entries {
		resolved, rerr := r.Resolve(entry)
		if rerr != nil {
			if mode == ModeStrict {
				return nil, nil, rerr
			}
			r.logger.Warn("dropping unresolvable acquisition", "kind", entry.Kind, "error", rerr)
			dropped = append(dropped, rerr)
			continue
		}
		acqs = append(acqs, resolved...)
	}
	return acqs, dropped, nil
}

func (r *Resolver) resolveIngredients(ingredients []extract.Ingredient) ([]acquisition.Requirement, error) {
	if len(ingredients) == 0 {
		return nil, nil
	}
	reqs := make([]acquisition.Requirement, 0, len(ingredients))
	for _, ing := range ingredients {
		req, err := r.resolveName(ing.Name)
		if err != nil {
			return nil, err
		}
		req.Quantity = ing.Quantity
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// resolveName resolves an untagged ingredient name, currency namespace
// first.
func (r *Resolver) resolveName(name string) (acquisition.Requirement, error) {
	if ids := r.index.Lookup(nameindex.NamespaceCurrency, name); len(ids) == 1 {
		return acquisition.Requirement{CurrencyID: ids[0]}, nil
	}
	ids := r.index.Lookup(nameindex.NamespaceItem, name)
	if len(ids) != 1 {
		return acquisition.Requirement{}, r.ambiguous(nameindex.NamespaceItem, name, ids)
	}
	return acquisition.Requirement{ItemID: ids[0]}, nil
}

func (r *Resolver) ambiguous(ns nameindex.Namespace, name string, candidates []int) *AmbiguousNameError {
	var suggestions []string
	if len(candidates) == 0 {
		suggestions = r.index.Suggest(ns, name, maxSuggestions)
	}
	return &AmbiguousNameError{
		Name:        name,
		Namespace:   ns,
		Candidates:  slices.Clone(candidates),
		Suggestions: suggestions,
	}
}
