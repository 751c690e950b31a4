package nameindex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one named identifier delivered by the bulk refresh (an item or a
// currency from the game API).
type Entry struct {
	ID   int
	Name string
}

// BuildReport summarises what a generated-index build kept and discarded.
type BuildReport struct {
	// Indexed is the number of entries that made it into the index.
	Indexed int

	// SkippedEmpty lists ids whose names were empty after cleaning.
	SkippedEmpty []int

	// CleanedNames lists ids whose names contained embedded newlines or
	// runs of whitespace that were normalised before indexing.
	CleanedNames []int

	// CollidingNames is the number of names mapping to more than one id.
	CollidingNames int
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanName normalises a display name for indexing: embedded newlines become
// spaces and whitespace runs collapse to a single space. Callers that accept
// user-typed names (the CLI root lookup) apply the same normalisation before
// querying; resolution of extracted names stays exact-string.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(name, " "))
}

// BuildItemIndex constructs the many-to-many generated item index from bulk
// API entries. Names are cleaned, empty names skipped, and id lists sorted so
// the output is reproducible for identical input.
func BuildItemIndex(entries []Entry) (map[string][]int, BuildReport) {
	index := map[string][]int{}
	var report BuildReport

	for _, e := range entries {
		name := CleanName(e.Name)
		if name == "" {
			report.SkippedEmpty = append(report.SkippedEmpty, e.ID)
			continue
		}
		if name != e.Name {
			report.CleanedNames = append(report.CleanedNames, e.ID)
		}
		index[name] = append(index[name], e.ID)
		report.Indexed++
	}

	for name, ids := range index {
		slices.Sort(ids)
		index[name] = slices.Compact(ids)
		if len(index[name]) > 1 {
			report.CollidingNames++
		}
	}
	return index, report
}

// BuildCurrencyIndex constructs the one-to-one generated currency index.
// Two currencies sharing a cleaned name is a data-integrity bug upstream and
// fails the whole build with [*DuplicateCurrencyError].
func BuildCurrencyIndex(entries []Entry) (map[string]int, error) {
	index := map[string]int{}
	for _, e := range entries {
		name := CleanName(e.Name)
		if name == "" {
			slog.Warn("skipping currency with empty name", "id", e.ID)
			continue
		}
		if existing, ok := index[name]; ok {
			ids := []int{existing, e.ID}
			slices.Sort(ids)
			return nil, &DuplicateCurrencyError{Name: name, IDs: ids}
		}
		index[name] = e.ID
	}
	return index, nil
}

// WriteItemIndex writes a generated item index as YAML with names in sorted
// order, so re-running the refresh against unchanged data produces an
// identical file.
func WriteItemIndex(path string, index map[string][]int) error {
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	slices.Sort(names)

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range names {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		val := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, id := range index[name] {
			val.Content = append(val.Content, &yaml.Node{
				Kind:  yaml.ScalarNode,
				Value: fmt.Sprintf("%d", id),
			})
		}
		root.Content = append(root.Content, key, val)
	}
	return writeYAML(path, root)
}

// WriteCurrencyIndex writes the currency index in the name→[id] list form
// that [LoadFiles] re-asserts on load.
func WriteCurrencyIndex(path string, index map[string]int) error {
	names := make([]string, 0, len(index))
	for name := range index {
		names = append(names, name)
	}
	slices.Sort(names)

	listed := make(map[string][]int, len(index))
	for name, id := range index {
		listed[name] = []int{id}
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range names {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		val := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, id := range listed[name] {
			val.Content = append(val.Content, &yaml.Node{
				Kind:  yaml.ScalarNode,
				Value: fmt.Sprintf("%d", id),
			})
		}
		root.Content = append(root.Content, key, val)
	}
	return writeYAML(path, root)
}

func writeYAML(path string, root *yaml.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("nameindex: create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("nameindex: create %q: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	defer enc.Close()
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("nameindex: encode %q: %w", path, err)
	}
	return nil
}
