// Package classify maps raw extracted wiki entries onto the closed set of
// acquisition kinds and validates each entry against its kind's structural
// schema.
//
// The section→kind mapping is a fixed table, not inferred: section tags come
// pre-labelled from the extraction collaborator, and an unrecognised tag is a
// classification error, never a guess. Metadata fields that are not legal for
// the assigned kind are dropped, so downstream consumers can trust an entry's
// kind_metadata to contain only fields belonging to that kind.
package classify

import (
	"fmt"
	"log/slog"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
	"github.com/krjackso/gw2-data-repo/internal/extract"
)

// DefaultMinConfidence is the extractor self-assessment threshold below
// which entries are silently dropped rather than classified.
const DefaultMinConfidence = 0.8

// Error reports an entry whose section maps to no recognised kind or whose
// shape violates its kind's structural precondition. Always fatal to the
// single entry.
type Error struct {
	Section    extract.Section
	Subsection extract.Subsection
	Name       string
	Reason     string
}

func (e *Error) Error() string {
	if e.Subsection != "" {
		return fmt.Sprintf("classify: entry %q (section %s/%s): %s", e.Name, e.Section, e.Subsection, e.Reason)
	}
	return fmt.Sprintf("classify: entry %q (section %s): %s", e.Name, e.Section, e.Reason)
}

// Entry is a raw entry with its assigned kind and a field set guaranteed to
// satisfy the kind's schema. Name references remain unresolved; the resolver
// replaces them with numeric ids.
type Entry struct {
	// Kind is the assigned acquisition kind.
	Kind acquisition.Kind

	// Quantity is the output quantity; QuantityMin/Max bound variable
	// yields.
	Quantity    int
	QuantityMin *int
	QuantityMax *int

	// Ingredients are the name-based cost references to resolve.
	Ingredients []extract.Ingredient

	// SourceName is the container/salvage/node source display name, for
	// kinds that have one. For salvage it must resolve; for container it
	// resolves opportunistically; for resource_node it is kept as text.
	SourceName string

	// Kind-specific top-level fields.
	VendorName          string
	TrackName           string
	ContainerName       string
	NodeName            string
	AchievementName     string
	AchievementCategory string

	// Metadata carries only fields legal for Kind.
	Metadata map[string]any
}

// NodeSet is the known-resource-node name index used to split the
// gathered_from section into resource_node vs container entries.
type NodeSet map[string]bool

// Classifier applies the fixed section table. The zero value is not usable;
// construct with [New].
type Classifier struct {
	nodes         NodeSet
	minConfidence float64
	logger        *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithNodeSet supplies the known resource-node names.
func WithNodeSet(nodes NodeSet) Option {
	return func(c *Classifier) { c.nodes = nodes }
}

// WithMinConfidence overrides [DefaultMinConfidence].
func WithMinConfidence(min float64) Option {
	return func(c *Classifier) { c.minConfidence = min }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New constructs a Classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		nodes:         NodeSet{},
		minConfidence: DefaultMinConfidence,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify assigns a kind to the raw entry and validates its structural
// preconditions. It returns (nil, nil) for entries the pipeline deliberately
// does not keep: low-confidence extractions, discontinued methods, and
// chance-only drops. A non-nil error is always a [*Error].
func (c *Classifier) Classify(raw extract.RawEntry) (*Entry, error) {
	if raw.Confidence < c.minConfidence {
		c.logger.Debug("dropping low-confidence entry", "name", raw.Name, "confidence", raw.Confidence)
		return nil, nil
	}
	if raw.Discontinued {
		c.logger.Debug("dropping discontinued entry", "name", raw.Name)
		return nil, nil
	}

	entry := &Entry{
		Quantity:    raw.Quantity,
		QuantityMin: raw.QuantityMin,
		QuantityMax: raw.QuantityMax,
		Ingredients: raw.Ingredients,
	}
	if entry.Quantity == 0 {
		entry.Quantity = 1
	}

	switch raw.Section {
	case extract.SectionRecipe:
		if err := c.classifyRecipe(raw, entry); err != nil {
			return nil, err
		}
	case extract.SectionVendor:
		if raw.Name == "" {
			return nil, classifyErr(raw, "vendor entry has no vendor name")
		}
		entry.Kind = acquisition.KindVendor
		entry.VendorName = raw.Name
	case extract.SectionGatheredFrom:
		if raw.Name == "" {
			return nil, classifyErr(raw, "gathered_from entry has no source name")
		}
		if c.nodes[raw.Name] {
			entry.Kind = acquisition.KindResourceNode
			entry.NodeName = raw.Name
		} else {
			entry.Kind = acquisition.KindContainer
			entry.ContainerName = raw.Name
			entry.SourceName = raw.Name
		}
	case extract.SectionContainedIn:
		if raw.Name == "" {
			return nil, classifyErr(raw, "contained_in entry has no container name")
		}
		entry.Kind = acquisition.KindContainer
		entry.ContainerName = raw.Name
		entry.SourceName = raw.Name
		// The subsection is authoritative over the extractor's metadata.
		switch raw.Subsection {
		case extract.SubsectionGuaranteed:
			raw.Metadata = withField(raw.Metadata, "guaranteed", true)
		case extract.SubsectionChance:
			raw.Metadata = withField(raw.Metadata, "guaranteed", false)
		}
	case extract.SectionSalvagedFrom:
		if raw.Name == "" {
			return nil, classifyErr(raw, "salvaged_from entry has no source name")
		}
		entry.Kind = acquisition.KindSalvage
		entry.SourceName = raw.Name
	case extract.SectionAchievement:
		if raw.Name == "" {
			return nil, classifyErr(raw, "achievement entry has no achievement name")
		}
		entry.Kind = acquisition.KindAchievement
		entry.AchievementName = raw.Name
		if cat, ok := raw.Metadata["achievementCategory"].(string); ok {
			entry.AchievementCategory = cat
		}
	case extract.SectionRewardTrack:
		if raw.Name == "" {
			return nil, classifyErr(raw, "reward_track entry has no track name")
		}
		// WvW is by far the more common track source; an untagged entry
		// defaults there.
		if raw.Subsection == extract.SubsectionPvP {
			entry.Kind = acquisition.KindPvPReward
		} else {
			entry.Kind = acquisition.KindWvWReward
		}
		entry.TrackName = raw.Name
	case extract.SectionMapReward:
		entry.Kind = acquisition.KindMapReward
	case extract.SectionWizardsVault:
		entry.Kind = acquisition.KindWizardsVault
	case extract.SectionOther:
		entry.Kind = acquisition.KindOther
	default:
		return nil, classifyErr(raw, fmt.Sprintf("unrecognised section %q", raw.Section))
	}

	entry.Metadata = filterMetadata(entry.Kind, raw.Metadata)
	switch entry.Kind {
	case acquisition.KindCrafting, acquisition.KindMysticForge:
		// Record the recipe flavour so consumers do not have to re-derive
		// it from the kind.
		entry.Metadata = withField(entry.Metadata, "recipeType", string(entry.Kind))
	}

	if isChanceDrop(entry) {
		c.logger.Debug("dropping chance-only drop", "name", raw.Name, "kind", entry.Kind)
		return nil, nil
	}
	return entry, nil
}

// ClassifyAll classifies a batch, dropping filtered entries and collecting
// per-entry errors without stopping; the caller decides what a non-empty
// error list means for the item.
func (c *Classifier) ClassifyAll(raws []extract.RawEntry) ([]Entry, []error) {
	var entries []Entry
	var errs []error
	for _, raw := range raws {
		entry, err := c.Classify(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if entry != nil {
			entries = append(entries, *entry)
		}
	}
	return entries, errs
}

func (c *Classifier) classifyRecipe(raw extract.RawEntry, entry *Entry) error {
	switch raw.Subsection {
	case extract.SubsectionMysticForge:
		if len(raw.Ingredients) != 4 {
			return classifyErr(raw, fmt.Sprintf("mystic_forge recipe needs exactly 4 ingredients, got %d", len(raw.Ingredients)))
		}
		entry.Kind = acquisition.KindMysticForge
	case extract.SubsectionCrafting, "":
		if len(raw.Ingredients) == 0 {
			return classifyErr(raw, "crafting recipe has no ingredients")
		}
		entry.Kind = acquisition.KindCrafting
	default:
		return classifyErr(raw, fmt.Sprintf("unrecognised recipe subsection %q", raw.Subsection))
	}
	return nil
}

func classifyErr(raw extract.RawEntry, reason string) *Error {
	return &Error{
		Section:    raw.Section,
		Subsection: raw.Subsection,
		Name:       raw.Name,
		Reason:     reason,
	}
}

func withField(m map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

// isChanceDrop reports whether a container or salvage entry offers no
// deterministic path to the item: not guaranteed and (for containers) not a
// player choice. Only those two kinds carry drop semantics.
func isChanceDrop(e *Entry) bool {
	switch e.Kind {
	case acquisition.KindContainer:
		return !boolField(e.Metadata, "guaranteed") && !boolField(e.Metadata, "choice")
	case acquisition.KindSalvage:
		return !boolField(e.Metadata, "guaranteed")
	}
	return false
}

func boolField(m map[string]any, key string) bool {
	v, ok := m[key].(bool)
	return ok && v
}
