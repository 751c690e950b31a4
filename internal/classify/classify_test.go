package classify

import (
	"errors"
	"testing"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
	"github.com/krjackso/gw2-data-repo/internal/extract"
)

func TestClassifySectionTable(t *testing.T) {
	t.Parallel()
	c := New(WithNodeSet(NodeSet{"Iron Ore Vein": true}))

	tests := []struct {
		name string
		raw  extract.RawEntry
		want acquisition.Kind
	}{
		{
			name: "crafting recipe",
			raw: extract.RawEntry{
				Section:     extract.SectionRecipe,
				Subsection:  extract.SubsectionCrafting,
				Ingredients: []extract.Ingredient{{Name: "Iron Ore", Quantity: 2}},
				Confidence:  0.95,
			},
			want: acquisition.KindCrafting,
		},
		{
			name: "mystic forge recipe",
			raw: extract.RawEntry{
				Section:    extract.SectionRecipe,
				Subsection: extract.SubsectionMysticForge,
				Ingredients: []extract.Ingredient{
					{Name: "A", Quantity: 1}, {Name: "B", Quantity: 1},
					{Name: "C", Quantity: 1}, {Name: "D", Quantity: 1},
				},
				Confidence: 0.95,
			},
			want: acquisition.KindMysticForge,
		},
		{
			name: "vendor",
			raw: extract.RawEntry{
				Section:    extract.SectionVendor,
				Name:       "Miyani",
				Confidence: 0.9,
			},
			want: acquisition.KindVendor,
		},
		{
			name: "gathered from known node",
			raw: extract.RawEntry{
				Section:    extract.SectionGatheredFrom,
				Name:       "Iron Ore Vein",
				Metadata:   map[string]any{"guaranteed": true},
				Confidence: 0.9,
			},
			want: acquisition.KindResourceNode,
		},
		{
			name: "gathered from unknown source becomes container",
			raw: extract.RawEntry{
				Section:    extract.SectionGatheredFrom,
				Name:       "Heavy Loot Bag",
				Metadata:   map[string]any{"guaranteed": true},
				Confidence: 0.9,
			},
			want: acquisition.KindContainer,
		},
		{
			name: "guaranteed container",
			raw: extract.RawEntry{
				Section:    extract.SectionContainedIn,
				Subsection: extract.SubsectionGuaranteed,
				Name:       "Black Lion Chest",
				Confidence: 0.9,
			},
			want: acquisition.KindContainer,
		},
		{
			name: "salvage",
			raw: extract.RawEntry{
				Section:    extract.SectionSalvagedFrom,
				Name:       "Rare Sword",
				Metadata:   map[string]any{"guaranteed": true},
				Confidence: 0.9,
			},
			want: acquisition.KindSalvage,
		},
		{
			name: "achievement",
			raw: extract.RawEntry{
				Section:    extract.SectionAchievement,
				Name:       "A Star to Guide Us",
				Confidence: 0.9,
			},
			want: acquisition.KindAchievement,
		},
		{
			name: "wvw reward track default",
			raw: extract.RawEntry{
				Section:    extract.SectionRewardTrack,
				Name:       "Gift of Battle Item Reward Track",
				Confidence: 0.9,
			},
			want: acquisition.KindWvWReward,
		},
		{
			name: "pvp reward track",
			raw: extract.RawEntry{
				Section:    extract.SectionRewardTrack,
				Subsection: extract.SubsectionPvP,
				Name:       "Balthazar Reward Track",
				Confidence: 0.9,
			},
			want: acquisition.KindPvPReward,
		},
		{
			name: "map reward",
			raw: extract.RawEntry{
				Section:    extract.SectionMapReward,
				Confidence: 0.9,
			},
			want: acquisition.KindMapReward,
		},
		{
			name: "wizards vault",
			raw: extract.RawEntry{
				Section:    extract.SectionWizardsVault,
				Confidence: 0.9,
			},
			want: acquisition.KindWizardsVault,
		},
		{
			name: "other",
			raw: extract.RawEntry{
				Section:    extract.SectionOther,
				Confidence: 0.9,
			},
			want: acquisition.KindOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entry, err := c.Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if entry == nil {
				t.Fatal("Classify() filtered an entry that should classify")
			}
			if entry.Kind != tt.want {
				t.Errorf("Classify() kind = %s, want %s", entry.Kind, tt.want)
			}
		})
	}
}

func TestClassifyStructuralErrors(t *testing.T) {
	t.Parallel()
	c := New()

	tests := []struct {
		name string
		raw  extract.RawEntry
	}{
		{
			name: "mystic forge with wrong ingredient count",
			raw: extract.RawEntry{
				Section:     extract.SectionRecipe,
				Subsection:  extract.SubsectionMysticForge,
				Ingredients: []extract.Ingredient{{Name: "A", Quantity: 1}, {Name: "B", Quantity: 1}},
				Confidence:  0.95,
			},
		},
		{
			name: "crafting with no ingredients",
			raw: extract.RawEntry{
				Section:    extract.SectionRecipe,
				Subsection: extract.SubsectionCrafting,
				Confidence: 0.95,
			},
		},
		{
			name: "vendor without name",
			raw: extract.RawEntry{
				Section:    extract.SectionVendor,
				Confidence: 0.9,
			},
		},
		{
			name: "salvage without source name",
			raw: extract.RawEntry{
				Section:    extract.SectionSalvagedFrom,
				Confidence: 0.9,
			},
		},
		{
			name: "unrecognised section",
			raw: extract.RawEntry{
				Section:    extract.Section("trading_post"),
				Confidence: 0.9,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := c.Classify(tt.raw)
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Classify() error = %v, want *classify.Error", err)
			}
		})
	}
}

func TestClassifyFilters(t *testing.T) {
	t.Parallel()
	c := New()

	tests := []struct {
		name string
		raw  extract.RawEntry
	}{
		{
			name: "low confidence",
			raw: extract.RawEntry{
				Section:    extract.SectionVendor,
				Name:       "Miyani",
				Confidence: 0.5,
			},
		},
		{
			name: "discontinued",
			raw: extract.RawEntry{
				Section:      extract.SectionVendor,
				Name:         "Miyani",
				Discontinued: true,
				Confidence:   0.9,
			},
		},
		{
			name: "chance-only container",
			raw: extract.RawEntry{
				Section:    extract.SectionContainedIn,
				Subsection: extract.SubsectionChance,
				Name:       "Unidentified Gear",
				Confidence: 0.9,
			},
		},
		{
			name: "container with neither guaranteed nor choice",
			raw: extract.RawEntry{
				Section:    extract.SectionGatheredFrom,
				Name:       "Heavy Loot Bag",
				Metadata:   map[string]any{"guaranteed": false, "choice": false},
				Confidence: 0.9,
			},
		},
		{
			name: "chance-only salvage",
			raw: extract.RawEntry{
				Section:    extract.SectionSalvagedFrom,
				Name:       "Rare Sword",
				Confidence: 0.9,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entry, err := c.Classify(tt.raw)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if entry != nil {
				t.Errorf("Classify() = %+v, want filtered", entry)
			}
		})
	}
}

func TestClassifyChoiceContainerKept(t *testing.T) {
	t.Parallel()
	c := New()

	entry, err := c.Classify(extract.RawEntry{
		Section:    extract.SectionContainedIn,
		Name:       "Chest of Loyalty",
		Metadata:   map[string]any{"choice": true},
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if entry == nil {
		t.Fatal("Classify() filtered a choice container")
	}
	if entry.Kind != acquisition.KindContainer {
		t.Errorf("kind = %s, want %s", entry.Kind, acquisition.KindContainer)
	}
}

func TestClassifyMetadataFiltering(t *testing.T) {
	t.Parallel()
	c := New()

	entry, err := c.Classify(extract.RawEntry{
		Section:    extract.SectionVendor,
		Name:       "Miyani",
		Confidence: 0.9,
		Metadata: map[string]any{
			"limitType":   "daily",
			"limitAmount": 5,
			"guaranteed":  true,
			"disciplines": []string{"Weaponsmith"},
		},
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if entry == nil {
		t.Fatal("Classify() unexpectedly filtered entry")
	}
	if _, ok := entry.Metadata["guaranteed"]; ok {
		t.Error("vendor metadata kept kind-illegal field guaranteed")
	}
	if _, ok := entry.Metadata["disciplines"]; ok {
		t.Error("vendor metadata kept kind-illegal field disciplines")
	}
	if entry.Metadata["limitType"] != "daily" {
		t.Errorf("limitType = %v, want daily", entry.Metadata["limitType"])
	}
}

func TestClassifyRecipeTypeRecorded(t *testing.T) {
	t.Parallel()
	c := New()

	entry, err := c.Classify(extract.RawEntry{
		Section:     extract.SectionRecipe,
		Subsection:  extract.SubsectionCrafting,
		Ingredients: []extract.Ingredient{{Name: "Iron Ore", Quantity: 2}},
		Confidence:  0.95,
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got := entry.Metadata["recipeType"]; got != string(acquisition.KindCrafting) {
		t.Errorf("recipeType = %v, want %s", got, acquisition.KindCrafting)
	}
}

func TestClassifyDefaultQuantity(t *testing.T) {
	t.Parallel()
	c := New()

	entry, err := c.Classify(extract.RawEntry{
		Section:    extract.SectionVendor,
		Name:       "Miyani",
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if entry.Quantity != 1 {
		t.Errorf("Quantity = %d, want 1", entry.Quantity)
	}
}
