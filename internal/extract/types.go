// Package extract defines the boundary to the wiki extraction collaborator:
// the raw, name-based entries an extractor produces from a wiki page, and an
// LLM-backed implementation of that boundary.
//
// Raw entries are ephemeral. They are consumed immediately by the classifier
// (internal/classify) and never persisted; only fully resolved acquisition
// records reach storage.
package extract

import "fmt"

// Section tags where on the wiki page an entry was found. The extractor
// labels entries with these fixed tags; the classifier maps them onto
// acquisition kinds and rejects anything it does not recognise.
type Section string

const (
	SectionRecipe       Section = "recipe"
	SectionVendor       Section = "vendor"
	SectionGatheredFrom Section = "gathered_from"
	SectionContainedIn  Section = "contained_in"
	SectionSalvagedFrom Section = "salvaged_from"
	SectionAchievement  Section = "achievement"
	SectionRewardTrack  Section = "reward_track"
	SectionMapReward    Section = "map_reward"
	SectionWizardsVault Section = "wizards_vault"
	SectionOther        Section = "other"
)

// Subsection refines a Section where one section covers several kinds.
type Subsection string

const (
	SubsectionCrafting    Subsection = "crafting"
	SubsectionMysticForge Subsection = "mystic_forge"
	SubsectionGuaranteed  Subsection = "guaranteed"
	SubsectionChance      Subsection = "chance"
	SubsectionWvW         Subsection = "wvw"
	SubsectionPvP         Subsection = "pvp"
)

// Ingredient is a name-based cost reference inside a raw entry. Names are
// display names exactly as the wiki renders them; resolution to numeric ids
// happens downstream.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// RawEntry is one loosely-structured acquisition candidate produced by the
// extractor. Everything in it is text from an unreliable source; the
// classifier and resolver decide what survives.
type RawEntry struct {
	// Name is the entry's display name: the recipe output, vendor,
	// container, node, achievement, or track, depending on Section.
	Name string `json:"name"`

	// Section and Subsection locate the entry on the wiki page.
	Section    Section    `json:"wikiSection"`
	Subsection Subsection `json:"wikiSubsection,omitempty"`

	// Quantity is the output quantity of one completion (default 1).
	// QuantityMin/Max bound variable-yield entries.
	Quantity    int  `json:"quantity"`
	QuantityMin *int `json:"quantityMin,omitempty"`
	QuantityMax *int `json:"quantityMax,omitempty"`

	// Ingredients are the name-based cost references.
	Ingredients []Ingredient `json:"ingredients"`

	// Metadata is free-form auxiliary data (disciplines, limits,
	// guaranteed flags, notes). The classifier drops fields not legal for
	// the entry's assigned kind.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Discontinued marks methods the wiki describes as no longer
	// available. The pipeline does not track these; the classifier drops
	// them.
	Discontinued bool `json:"discontinued,omitempty"`

	// Confidence is the extractor's 0.0–1.0 self-assessment. Entries
	// below the classifier's threshold are dropped.
	Confidence float64 `json:"confidence"`
}

// SourceUnavailableError reports that the upstream source for an item (wiki
// page, page HTML, or the extraction model) could not be consulted. The tree
// walker treats it as a per-item failure, not fatal to the run.
type SourceUnavailableError struct {
	ItemID   int
	ItemName string
	Err      error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("extract: source unavailable for item %d (%s): %v", e.ItemID, e.ItemName, e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *SourceUnavailableError) Unwrap() error { return e.Err }
