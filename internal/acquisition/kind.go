package acquisition

// Kind classifies how an item can be obtained. The set is closed: every
// acquisition record carries exactly one Kind, and the validator enforces the
// field schema belonging to it.
type Kind string

const (
	// KindCrafting is a standard crafting-station recipe.
	KindCrafting Kind = "crafting"

	// KindMysticForge is a Mystic Forge recipe (always four ingredients).
	KindMysticForge Kind = "mystic_forge"

	// KindVendor is a purchase from a named vendor.
	KindVendor Kind = "vendor"

	// KindAchievement is an achievement reward.
	KindAchievement Kind = "achievement"

	// KindMapReward is a map/region/world completion reward.
	KindMapReward Kind = "map_reward"

	// KindContainer is a guaranteed drop from opening a named container.
	KindContainer Kind = "container"

	// KindSalvage is a guaranteed salvage result from a named source item.
	KindSalvage Kind = "salvage"

	// KindResourceNode is a gatherable resource node.
	KindResourceNode Kind = "resource_node"

	// KindWvWReward is a WvW reward-track completion.
	KindWvWReward Kind = "wvw_reward"

	// KindPvPReward is a PvP reward-track completion.
	KindPvPReward Kind = "pvp_reward"

	// KindWizardsVault is a Wizard's Vault purchase.
	KindWizardsVault Kind = "wizards_vault"

	// KindOther is a recognised acquisition that fits no structured kind.
	// Records of this kind carry their explanation in metadata notes.
	KindOther Kind = "other"
)

// Kinds lists every recognised acquisition kind in a stable order.
var Kinds = []Kind{
	KindCrafting,
	KindMysticForge,
	KindVendor,
	KindAchievement,
	KindMapReward,
	KindContainer,
	KindSalvage,
	KindResourceNode,
	KindWvWReward,
	KindPvPReward,
	KindWizardsVault,
	KindOther,
}

// IsValid reports whether k is a recognised acquisition kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindCrafting, KindMysticForge, KindVendor, KindAchievement,
		KindMapReward, KindContainer, KindSalvage, KindResourceNode,
		KindWvWReward, KindPvPReward, KindWizardsVault, KindOther:
		return true
	}
	return false
}

// String returns the wire name of the kind.
func (k Kind) String() string { return string(k) }
