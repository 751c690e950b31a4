package treewalk

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/krjackso/gw2-data-repo/internal/acquisition"
	"github.com/krjackso/gw2-data-repo/internal/classify"
	"github.com/krjackso/gw2-data-repo/internal/dataset"
	"github.com/krjackso/gw2-data-repo/internal/extract"
	"github.com/krjackso/gw2-data-repo/internal/gw2api"
	"github.com/krjackso/gw2-data-repo/internal/nameindex"
	"github.com/krjackso/gw2-data-repo/internal/observe"
	"github.com/krjackso/gw2-data-repo/internal/resolve"
)

type fakeSource struct {
	items map[int]*gw2api.Item
	calls map[int]int
}

func (f *fakeSource) Item(_ context.Context, id int) (*gw2api.Item, error) {
	if f.calls == nil {
		f.calls = map[int]int{}
	}
	f.calls[id]++
	item, ok := f.items[id]
	if !ok {
		return nil, &gw2api.APIError{StatusCode: 404, Body: "no such id"}
	}
	return item, nil
}

type fakeExtractor struct {
	entries     map[int][]extract.RawEntry
	unavailable map[int]bool
}

func (f *fakeExtractor) Extract(_ context.Context, itemID int, itemName string) ([]extract.RawEntry, error) {
	if f.unavailable[itemID] {
		return nil, &extract.SourceUnavailableError{ItemID: itemID, ItemName: itemName, Err: fmt.Errorf("page missing")}
	}
	return f.entries[itemID], nil
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m
}

func testIndex() *nameindex.Index {
	return nameindex.New(
		map[string][]int{
			"Iron Ore":        {19699},
			"Iron Ingot":      {19683},
			"Copper Ore":      {19697},
			"Lucky Draw":      {77, 78},
			"Ore Synthesizer": {55},
		},
		map[string]int{"Karma": 2},
		nil, nil,
	)
}

// newTestWalker wires a walker over fakes: item 19683 (Iron Ingot) crafts
// from Iron Ore, 19699 (Iron Ore) comes from a guaranteed container.
func newTestWalker(t *testing.T, store Store, opts ...Option) (*Walker, *fakeSource) {
	t.Helper()
	source := &fakeSource{items: map[int]*gw2api.Item{
		19683: {ID: 19683, Name: "Iron Ingot", Type: "CraftingMaterial", Rarity: "Basic"},
		19699: {ID: 19699, Name: "Iron Ore", Type: "CraftingMaterial", Rarity: "Basic"},
		55:    {ID: 55, Name: "Ore Synthesizer", Type: "Container"},
	}}
	extractor := &fakeExtractor{entries: map[int][]extract.RawEntry{
		19683: {{
			Section:     extract.SectionRecipe,
			Subsection:  extract.SubsectionCrafting,
			Quantity:    1,
			Ingredients: []extract.Ingredient{{Name: "Iron Ore", Quantity: 3}},
			Confidence:  0.95,
		}},
		19699: {{
			Section:    extract.SectionContainedIn,
			Subsection: extract.SubsectionGuaranteed,
			Name:       "Ore Synthesizer",
			Quantity:   10,
			Confidence: 0.9,
		}},
		55: {},
	}}

	base := []Option{WithMetrics(testMetrics(t))}
	w := New(source, extractor,
		classify.New(),
		resolve.New(testIndex(), nil),
		store,
		append(base, opts...)...,
	)
	return w, source
}

func TestWalkFollowsRequirements(t *testing.T) {
	store := dataset.NewMemStore()
	w, _ := newTestWalker(t, store)

	summary, err := w.Walk(context.Background(), []int{19683})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	// Root, its ingredient, and the ingredient's container source.
	if summary.Counts[StatusDone] != 3 {
		t.Fatalf("done = %d, want 3 (results: %+v)", summary.Counts[StatusDone], summary.Results)
	}

	ingot, ok, _ := store.Load(context.Background(), 19683)
	if !ok {
		t.Fatal("root item was not stored")
	}
	if len(ingot.Acquisitions) != 1 || ingot.Acquisitions[0].Kind != acquisition.KindCrafting {
		t.Errorf("root acquisitions = %+v", ingot.Acquisitions)
	}
	if reqs := ingot.Acquisitions[0].Requirements; len(reqs) != 1 || reqs[0].ItemID != 19699 {
		t.Errorf("requirements = %+v, want Iron Ore 19699", ingot.Acquisitions[0].Requirements)
	}

	ore, ok, _ := store.Load(context.Background(), 19699)
	if !ok {
		t.Fatal("ingredient item was not stored")
	}
	if ore.Acquisitions[0].SourceItemID != 55 {
		t.Errorf("container source = %d, want 55", ore.Acquisitions[0].SourceItemID)
	}
	if summary.RunID == "" {
		t.Error("summary carries no run id")
	}
}

func TestWalkIdempotent(t *testing.T) {
	store := dataset.NewMemStore()
	w, source := newTestWalker(t, store)

	if _, err := w.Walk(context.Background(), []int{19683}); err != nil {
		t.Fatalf("first Walk() error = %v", err)
	}
	fetchesAfterFirst := source.calls[19683]

	summary, err := w.Walk(context.Background(), []int{19683})
	if err != nil {
		t.Fatalf("second Walk() error = %v", err)
	}
	if summary.Counts[StatusDone] != 0 {
		t.Errorf("second walk re-populated %d items", summary.Counts[StatusDone])
	}
	if summary.Counts[StatusSkipped] != 3 {
		t.Errorf("skipped = %d, want 3", summary.Counts[StatusSkipped])
	}
	if source.calls[19683] != fetchesAfterFirst {
		t.Error("second walk refetched a stored item")
	}
}

func TestWalkForceRepopulates(t *testing.T) {
	store := dataset.NewMemStore()
	w, _ := newTestWalker(t, store)
	if _, err := w.Walk(context.Background(), []int{19683}); err != nil {
		t.Fatalf("first Walk() error = %v", err)
	}

	forced, _ := newTestWalker(t, store, WithForce(true))
	summary, err := forced.Walk(context.Background(), []int{19683})
	if err != nil {
		t.Fatalf("forced Walk() error = %v", err)
	}
	if summary.Counts[StatusDone] != 3 {
		t.Errorf("forced walk populated %d items, want 3", summary.Counts[StatusDone])
	}
}

func TestWalkDepthLimit(t *testing.T) {
	store := dataset.NewMemStore()
	w, _ := newTestWalker(t, store, WithMaxDepth(0))

	summary, err := w.Walk(context.Background(), []int{19683})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if got := summary.Counts[StatusDone]; got != 1 {
		t.Errorf("done = %d, want only the root", got)
	}
	if _, ok, _ := store.Load(context.Background(), 19699); ok {
		t.Error("child beyond depth limit was stored")
	}

	// The out-of-depth child is recorded so the summary names it.
	var skipped *Result
	for i := range summary.Results {
		if summary.Results[i].ItemID == 19699 {
			skipped = &summary.Results[i]
		}
	}
	if skipped == nil {
		t.Fatal("child beyond depth limit missing from results")
	}
	if skipped.Status != StatusSkipped || !errors.Is(skipped.Err, ErrDepthExceeded) {
		t.Errorf("child result = %v %v, want skipped with ErrDepthExceeded", skipped.Status, skipped.Err)
	}
}

func TestWalkDepthBoundSharedChild(t *testing.T) {
	// Iron Ingot crafts from Copper Ore and Iron Ore, and Copper Ore itself
	// crafts from Iron Ore. Iron Ore is first reached at depth 1, inside the
	// bound, so it must be populated even though Copper Ore sits exactly at
	// the bound and references it again from there.
	store := dataset.NewMemStore()
	source := &fakeSource{items: map[int]*gw2api.Item{
		19683: {ID: 19683, Name: "Iron Ingot", Type: "CraftingMaterial", Rarity: "Basic"},
		19697: {ID: 19697, Name: "Copper Ore", Type: "CraftingMaterial", Rarity: "Basic"},
		19699: {ID: 19699, Name: "Iron Ore", Type: "CraftingMaterial", Rarity: "Basic"},
	}}
	extractor := &fakeExtractor{entries: map[int][]extract.RawEntry{
		19683: {{
			Section:    extract.SectionRecipe,
			Subsection: extract.SubsectionCrafting,
			Quantity:   1,
			Ingredients: []extract.Ingredient{
				{Name: "Copper Ore", Quantity: 2},
				{Name: "Iron Ore", Quantity: 3},
			},
			Confidence: 0.95,
		}},
		19697: {{
			Section:     extract.SectionRecipe,
			Subsection:  extract.SubsectionCrafting,
			Quantity:    1,
			Ingredients: []extract.Ingredient{{Name: "Iron Ore", Quantity: 1}},
			Confidence:  0.95,
		}},
		19699: {},
	}}
	w := New(source, extractor, classify.New(), resolve.New(testIndex(), nil), store,
		WithMetrics(testMetrics(t)), WithMaxDepth(1))

	summary, err := w.Walk(context.Background(), []int{19683})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if got := summary.Counts[StatusDone]; got != 3 {
		t.Fatalf("done = %d, want 3 (results: %+v)", got, summary.Results)
	}
	if got := summary.Counts[StatusSkipped]; got != 0 {
		t.Errorf("skipped = %d, want 0 (results: %+v)", got, summary.Results)
	}
	if _, ok, _ := store.Load(context.Background(), 19699); !ok {
		t.Error("child reachable inside the depth bound was not stored")
	}
	for _, r := range summary.Results {
		if r.ItemID == 19699 && r.Status != StatusDone {
			t.Errorf("shared child result = %v (err %v), want done", r.Status, r.Err)
		}
	}
}

func TestWalkLimitTruncates(t *testing.T) {
	store := dataset.NewMemStore()
	w, _ := newTestWalker(t, store, WithLimit(1))

	summary, err := w.Walk(context.Background(), []int{19683})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if len(summary.Results) != 1 {
		t.Errorf("processed %d items, want 1", len(summary.Results))
	}
	if !summary.Truncated {
		t.Error("summary not marked truncated")
	}
}

func TestWalkSourceUnavailableSkips(t *testing.T) {
	store := dataset.NewMemStore()
	source := &fakeSource{items: map[int]*gw2api.Item{
		7: {ID: 7, Name: "Obscure Trinket"},
	}}
	extractor := &fakeExtractor{unavailable: map[int]bool{7: true}}
	w := New(source, extractor, classify.New(), resolve.New(testIndex(), nil), store,
		WithMetrics(testMetrics(t)))

	summary, err := w.Walk(context.Background(), []int{7})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if summary.Counts[StatusSkipped] != 1 || summary.SourceUnavailable != 1 {
		t.Errorf("summary = %+v, want one source-unavailable skip", summary)
	}
	if _, ok, _ := store.Load(context.Background(), 7); ok {
		t.Error("unavailable item was stored")
	}
}

func TestWalkStrictVsLenient(t *testing.T) {
	mkWalker := func(store Store, mode resolve.Mode) *Walker {
		source := &fakeSource{items: map[int]*gw2api.Item{
			9: {ID: 9, Name: "Puzzle Box"},
		}}
		extractor := &fakeExtractor{entries: map[int][]extract.RawEntry{
			9: {
				{
					Section:    extract.SectionVendor,
					Name:       "Miyani",
					Quantity:   1,
					Confidence: 0.9,
					Ingredients: []extract.Ingredient{
						{Name: "No Such Material", Quantity: 1},
					},
				},
				{
					Section:    extract.SectionVendor,
					Name:       "Lion's Arch Merchant",
					Quantity:   1,
					Confidence: 0.9,
					Ingredients: []extract.Ingredient{
						{Name: "Karma", Quantity: 500},
					},
				},
			},
		}}
		return New(source, extractor, classify.New(), resolve.New(testIndex(), nil), store,
			WithMetrics(testMetrics(t)), WithMode(mode))
	}

	t.Run("strict fails the item", func(t *testing.T) {
		store := dataset.NewMemStore()
		summary, err := mkWalker(store, resolve.ModeStrict).Walk(context.Background(), []int{9})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if summary.Counts[StatusFailed] != 1 {
			t.Errorf("failed = %d, want 1", summary.Counts[StatusFailed])
		}
		if summary.Ambiguous != 1 {
			t.Errorf("ambiguous = %d, want 1", summary.Ambiguous)
		}
		if _, ok, _ := store.Load(context.Background(), 9); ok {
			t.Error("strict mode stored an item with an unresolvable entry")
		}
	})

	t.Run("lenient drops the entry and keeps the item", func(t *testing.T) {
		store := dataset.NewMemStore()
		summary, err := mkWalker(store, resolve.ModeLenient).Walk(context.Background(), []int{9})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if summary.Counts[StatusDone] != 1 {
			t.Fatalf("done = %d, want 1", summary.Counts[StatusDone])
		}
		item, ok, _ := store.Load(context.Background(), 9)
		if !ok {
			t.Fatal("lenient mode did not store the item")
		}
		if len(item.Acquisitions) != 1 {
			t.Fatalf("acquisitions = %d, want 1 (the resolvable vendor)", len(item.Acquisitions))
		}
		if item.Acquisitions[0].VendorName != "Lion's Arch Merchant" {
			t.Errorf("kept acquisition = %+v", item.Acquisitions[0])
		}
	})
}

func TestWalkFetchFailure(t *testing.T) {
	store := dataset.NewMemStore()
	source := &fakeSource{items: map[int]*gw2api.Item{}}
	w := New(source, &fakeExtractor{}, classify.New(), resolve.New(testIndex(), nil), store,
		WithMetrics(testMetrics(t)))

	summary, err := w.Walk(context.Background(), []int{123})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	if summary.Counts[StatusFailed] != 1 {
		t.Errorf("failed = %d, want 1", summary.Counts[StatusFailed])
	}
}

func TestWalkFailFast(t *testing.T) {
	store := dataset.NewMemStore()
	source := &fakeSource{items: map[int]*gw2api.Item{}}
	w := New(source, &fakeExtractor{}, classify.New(), resolve.New(testIndex(), nil), store,
		WithMetrics(testMetrics(t)), WithFailFast(true))

	_, err := w.Walk(context.Background(), []int{123, 456})
	if err == nil {
		t.Fatal("Walk() did not abort on first failure")
	}
}
