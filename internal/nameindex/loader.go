package nameindex

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Files names the on-disk locations of the four index layers. Empty override
// paths are allowed (no overrides); empty generated paths are an error for
// [LoadFiles] since the engine cannot resolve without a generated index.
type Files struct {
	Items             string
	Currencies        string
	ItemOverrides     string
	CurrencyOverrides string
}

// LoadFiles reads the generated indexes and override files and assembles a
// ready [Index]. The currency layer's one-to-one invariant is re-asserted on
// load; a violation fails the whole load.
func LoadFiles(f Files) (*Index, error) {
	items, err := loadItemIndex(f.Items)
	if err != nil {
		return nil, err
	}
	currencies, err := loadCurrencyIndex(f.Currencies)
	if err != nil {
		return nil, err
	}

	itemOverrides := map[string]int{}
	if f.ItemOverrides != "" {
		itemOverrides, err = LoadOverrides(f.ItemOverrides)
		if err != nil {
			return nil, err
		}
	}
	currencyOverrides := map[string]int{}
	if f.CurrencyOverrides != "" {
		currencyOverrides, err = LoadOverrides(f.CurrencyOverrides)
		if err != nil {
			return nil, err
		}
	}

	return New(items, currencies, itemOverrides, currencyOverrides), nil
}

// LoadOverrides reads a hand-maintained flat name→id YAML mapping. The file
// is edited by a human between runs and read-only to this process; ids must
// be positive and names non-empty.
func LoadOverrides(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nameindex: open overrides %q: %w", path, err)
	}
	defer f.Close()

	m, err := decodeOverrides(f)
	if err != nil {
		return nil, fmt.Errorf("nameindex: parse overrides %q: %w", path, err)
	}
	return m, nil
}

func decodeOverrides(r io.Reader) (map[string]int, error) {
	var m map[string]int
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]int{}, nil
		}
		return nil, err
	}
	var errs []error
	for name, id := range m {
		if name == "" {
			errs = append(errs, errors.New("override with empty name"))
		}
		if id <= 0 {
			errs = append(errs, fmt.Errorf("override %q has non-positive id %d", name, id))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if m == nil {
		m = map[string]int{}
	}
	return m, nil
}

func loadItemIndex(path string) (map[string][]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nameindex: open item index %q: %w", path, err)
	}
	defer f.Close()

	var m map[string][]int
	if err := yaml.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("nameindex: parse item index %q: %w", path, err)
	}
	return m, nil
}

// loadCurrencyIndex reads the generated currency index. The file format is a
// name→list mapping so that a corrupted refresh cannot hide a collision: any
// list longer than one fails the load with [*DuplicateCurrencyError].
func loadCurrencyIndex(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nameindex: open currency index %q: %w", path, err)
	}
	defer f.Close()

	var raw map[string][]int
	if err := yaml.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("nameindex: parse currency index %q: %w", path, err)
	}
	m := make(map[string]int, len(raw))
	for name, ids := range raw {
		if len(ids) != 1 {
			return nil, &DuplicateCurrencyError{Name: name, IDs: ids}
		}
		m[name] = ids[0]
	}
	return m, nil
}
