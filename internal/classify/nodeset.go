package classify

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadNodeSet reads a YAML list of resource-node display names. A missing
// file is not an error; gathered_from entries then classify as containers.
func LoadNodeSet(path string) (NodeSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NodeSet{}, nil
		}
		return nil, fmt.Errorf("classify: opening node index %s: %w", path, err)
	}
	defer f.Close()

	nodes, err := ReadNodeSet(f)
	if err != nil {
		return nil, fmt.Errorf("classify: reading node index %s: %w", path, err)
	}
	return nodes, nil
}

// ReadNodeSet decodes a YAML list of node names.
func ReadNodeSet(r io.Reader) (NodeSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var names []string
	if err := dec.Decode(&names); err != nil {
		if err == io.EOF {
			return NodeSet{}, nil
		}
		return nil, fmt.Errorf("decoding node names: %w", err)
	}

	nodes := make(NodeSet, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		nodes[name] = true
	}
	return nodes, nil
}
