// Package acquisition defines the persisted record types for the curated
// acquisition dataset — items, their acquisition methods, and the resolved
// requirements each method costs — plus the validator that gates records
// before they are attached to an item and persisted.
//
// Records in this package are fully resolved: every reference to another item
// or currency is a numeric identifier, never a display name. Name resolution
// happens upstream in internal/resolve.
package acquisition

import "slices"

// Requirement is one resolved cost entry of an acquisition: a quantity of a
// specific item or of a specific currency. Exactly one of ItemID / CurrencyID
// is set; [Validate] rejects requirements violating that.
type Requirement struct {
	// ItemID is the referenced item, when this requirement costs an item.
	ItemID int `yaml:"itemId,omitempty" json:"itemId,omitempty"`

	// CurrencyID is the referenced wallet currency, when this requirement
	// costs a currency.
	CurrencyID int `yaml:"currencyId,omitempty" json:"currencyId,omitempty"`

	// Quantity is how many of the item or currency are consumed. Always ≥ 1.
	Quantity int `yaml:"quantity" json:"quantity"`
}

// IsItem reports whether the requirement references an item.
func (r Requirement) IsItem() bool { return r.ItemID > 0 }

// IsCurrency reports whether the requirement references a currency.
func (r Requirement) IsCurrency() bool { return r.CurrencyID > 0 }

// Acquisition is one method by which an item can be obtained. An item owns an
// ordered list of these; on re-population the whole list is replaced, never
// patched.
type Acquisition struct {
	// Kind selects the acquisition variant and with it the field schema
	// the validator enforces.
	Kind Kind `yaml:"type" json:"type"`

	// OutputQuantity is how many of the owning item one completion yields.
	OutputQuantity int `yaml:"outputQuantity" json:"outputQuantity"`

	// OutputQuantityMin / OutputQuantityMax bound variable-yield methods
	// (e.g. Mystic Forge promotions). Either both are set or neither;
	// when set, OutputQuantityMin equals OutputQuantity.
	OutputQuantityMin *int `yaml:"outputQuantityMin,omitempty" json:"outputQuantityMin,omitempty"`
	OutputQuantityMax *int `yaml:"outputQuantityMax,omitempty" json:"outputQuantityMax,omitempty"`

	// Requirements is the ordered cost list. Order is preserved through
	// serialisation round-trips.
	Requirements []Requirement `yaml:"requirements" json:"requirements"`

	// SourceItemID is the resolved id of the container or salvage source
	// item, when it resolved unambiguously. Optional for container kinds;
	// always set on salvage records.
	SourceItemID int `yaml:"itemId,omitempty" json:"itemId,omitempty"`

	// VendorName names the vendor for vendor acquisitions.
	VendorName string `yaml:"vendorName,omitempty" json:"vendorName,omitempty"`

	// TrackName names the reward track for wvw_reward / pvp_reward.
	TrackName string `yaml:"trackName,omitempty" json:"trackName,omitempty"`

	// ContainerName names the container for container acquisitions.
	ContainerName string `yaml:"containerName,omitempty" json:"containerName,omitempty"`

	// NodeName names the resource node for resource_node acquisitions.
	NodeName string `yaml:"nodeName,omitempty" json:"nodeName,omitempty"`

	// AchievementName names the achievement for achievement acquisitions.
	AchievementName string `yaml:"achievementName,omitempty" json:"achievementName,omitempty"`

	// AchievementCategory is the achievement's category, when known.
	AchievementCategory string `yaml:"achievementCategory,omitempty" json:"achievementCategory,omitempty"`

	// Metadata carries kind-legal auxiliary fields (disciplines, limits,
	// guaranteed flags, notes). The classifier guarantees only fields legal
	// for Kind ever appear here; this package treats it as opaque.
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Item is the unit of persistence: the item's API attributes plus its ordered
// acquisition list. An item is written or rejected as a whole.
type Item struct {
	ID     int      `yaml:"itemId" json:"itemId"`
	Name   string   `yaml:"itemName" json:"itemName"`
	Type   string   `yaml:"itemType,omitempty" json:"itemType,omitempty"`
	Rarity string   `yaml:"rarity,omitempty" json:"rarity,omitempty"`
	Level  int      `yaml:"level,omitempty" json:"level,omitempty"`
	Flags  []string `yaml:"flags,omitempty" json:"flags,omitempty"`

	// WikiURL is the source wiki page the acquisitions were extracted from.
	WikiURL string `yaml:"wikiUrl,omitempty" json:"wikiUrl,omitempty"`

	// LastUpdated is the ISO-8601 date the record was last re-populated.
	LastUpdated string `yaml:"lastUpdated" json:"lastUpdated"`

	Acquisitions []Acquisition `yaml:"acquisitions" json:"acquisitions"`
}

// RequiredItemIDs returns the distinct item ids referenced by the item's
// acquisition requirements and container/salvage sources, in ascending order.
// The tree walker uses this to discover children.
func (it *Item) RequiredItemIDs() []int {
	seen := map[int]bool{}
	for _, acq := range it.Acquisitions {
		if acq.SourceItemID > 0 {
			seen[acq.SourceItemID] = true
		}
		for _, req := range acq.Requirements {
			if req.IsItem() {
				seen[req.ItemID] = true
			}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
