package nameindex

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func testIndex() *Index {
	return New(
		map[string][]int{
			"Rare Sword":        {9, 5},
			"Glob of Ectoplasm": {19721},
			"Iron Ore":          {19699},
		},
		map[string]int{
			"Karma":       2,
			"Mystic Coin": 62, // also an item name, deliberately
		},
		map[string]int{
			"Rare Sword":    5,
			"Lost Artifact": 71000, // override with no generated entry
		},
		map[string]int{"Gold": 1},
	)
}

func TestLookupSingleCandidate(t *testing.T) {
	t.Parallel()
	ix := testIndex()

	if got := ix.Lookup(NamespaceItem, "Glob of Ectoplasm"); !slices.Equal(got, []int{19721}) {
		t.Errorf("Lookup() = %v, want [19721]", got)
	}
}

func TestLookupReturnsSortedCandidates(t *testing.T) {
	t.Parallel()
	ix := New(map[string][]int{"Rare Sword": {9, 5, 9}}, nil, nil, nil)

	if got := ix.Lookup(NamespaceItem, "Rare Sword"); !slices.Equal(got, []int{5, 9}) {
		t.Errorf("Lookup() = %v, want deduplicated ascending [5 9]", got)
	}
}

func TestLookupOverridePrecedence(t *testing.T) {
	t.Parallel()
	ix := testIndex()

	// Ambiguous in the generated index, pinned by override.
	if got := ix.Lookup(NamespaceItem, "Rare Sword"); !slices.Equal(got, []int{5}) {
		t.Errorf("Lookup() = %v, want override id [5]", got)
	}
	// Override with zero generated candidates still resolves.
	if got := ix.Lookup(NamespaceItem, "Lost Artifact"); !slices.Equal(got, []int{71000}) {
		t.Errorf("Lookup() = %v, want override id [71000]", got)
	}
	if !ix.HasOverride(NamespaceItem, "Rare Sword") {
		t.Error("HasOverride() = false for overridden name")
	}
}

func TestLookupExactStringOnly(t *testing.T) {
	t.Parallel()
	ix := testIndex()

	for _, name := range []string{"glob of ectoplasm", "Glob of Ectoplasm ", "Glob-of-Ectoplasm"} {
		if got := ix.Lookup(NamespaceItem, name); len(got) != 0 {
			t.Errorf("Lookup(%q) = %v, want no match", name, got)
		}
	}
}

func TestLookupCurrency(t *testing.T) {
	t.Parallel()
	ix := testIndex()

	if got := ix.Lookup(NamespaceCurrency, "Karma"); !slices.Equal(got, []int{2}) {
		t.Errorf("Lookup() = %v, want [2]", got)
	}
	if got := ix.Lookup(NamespaceCurrency, "Gold"); !slices.Equal(got, []int{1}) {
		t.Errorf("Lookup() = %v, want override [1]", got)
	}
	if got := ix.Lookup(NamespaceCurrency, "Gems"); got != nil {
		t.Errorf("Lookup() = %v, want nil for unknown currency", got)
	}
}

func TestSuggestNearMisses(t *testing.T) {
	t.Parallel()
	ix := testIndex()

	got := ix.Suggest(NamespaceItem, "Glob of Ectoplasmm", 3)
	if len(got) == 0 || got[0] != "Glob of Ectoplasm" {
		t.Errorf("Suggest() = %v, want leading %q", got, "Glob of Ectoplasm")
	}

	if got := ix.Suggest(NamespaceItem, "Completely Unrelated", 3); len(got) != 0 {
		t.Errorf("Suggest() = %v, want none for a distant name", got)
	}
	if got := ix.Suggest(NamespaceItem, "Glob of Ectoplasmm", 0); got != nil {
		t.Errorf("Suggest() with max 0 = %v, want nil", got)
	}
}

func TestCleanName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Iron Ore", "Iron Ore"},
		{"  Iron   Ore  ", "Iron Ore"},
		{"Iron\nOre", "Iron Ore"},
		{"Iron\r\nOre", "Iron Ore"},
		{"\n", ""},
	}
	for _, tc := range tests {
		if got := CleanName(tc.in); got != tc.want {
			t.Errorf("CleanName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildItemIndex(t *testing.T) {
	t.Parallel()

	index, report := BuildItemIndex([]Entry{
		{ID: 9, Name: "Rare Sword"},
		{ID: 5, Name: "Rare Sword"},
		{ID: 19699, Name: "Iron\nOre"},
		{ID: 100, Name: "   "},
	})

	if !slices.Equal(index["Rare Sword"], []int{5, 9}) {
		t.Errorf("colliding name ids = %v, want [5 9]", index["Rare Sword"])
	}
	if !slices.Equal(index["Iron Ore"], []int{19699}) {
		t.Errorf("cleaned name ids = %v, want [19699]", index["Iron Ore"])
	}
	if report.Indexed != 3 {
		t.Errorf("Indexed = %d, want 3", report.Indexed)
	}
	if !slices.Equal(report.SkippedEmpty, []int{100}) {
		t.Errorf("SkippedEmpty = %v, want [100]", report.SkippedEmpty)
	}
	if !slices.Equal(report.CleanedNames, []int{19699}) {
		t.Errorf("CleanedNames = %v, want [19699]", report.CleanedNames)
	}
	if report.CollidingNames != 1 {
		t.Errorf("CollidingNames = %d, want 1", report.CollidingNames)
	}
}

func TestBuildCurrencyIndexRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := BuildCurrencyIndex([]Entry{
		{ID: 2, Name: "Karma"},
		{ID: 61, Name: "Karma"},
	})
	var derr *DuplicateCurrencyError
	if !errors.As(err, &derr) {
		t.Fatalf("BuildCurrencyIndex() error = %v, want *DuplicateCurrencyError", err)
	}
	if derr.Name != "Karma" || !slices.Equal(derr.IDs, []int{2, 61}) {
		t.Errorf("error = %+v, want Karma [2 61]", derr)
	}
}

func TestDecodeOverrides(t *testing.T) {
	t.Parallel()

	m, err := decodeOverrides(strings.NewReader("Rare Sword: 5\nLost Artifact: 71000\n"))
	if err != nil {
		t.Fatalf("decodeOverrides() error = %v", err)
	}
	if m["Rare Sword"] != 5 || m["Lost Artifact"] != 71000 {
		t.Errorf("decodeOverrides() = %v", m)
	}

	if m, err := decodeOverrides(strings.NewReader("")); err != nil || len(m) != 0 {
		t.Errorf("empty file: got %v, %v; want empty map", m, err)
	}

	if _, err := decodeOverrides(strings.NewReader("Bad Entry: 0\n")); err == nil {
		t.Error("decodeOverrides() accepted non-positive id")
	}
}
