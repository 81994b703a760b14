package interaction

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout read by the CLI.
type File struct {
	Title        string      `yaml:"title"`
	Duration     float64     `yaml:"duration"`
	Interactions []fileEntry `yaml:"interactions"`
}

type fileEntry struct {
	Def    `yaml:",inline"`
	Params map[string]any `yaml:"params"`
}

func LoadYAML(r io.Reader) (*File, []Def, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, nil, fmt.Errorf("decode interactions: %w", err)
	}

	defs := make([]Def, 0, len(f.Interactions))
	for i, e := range f.Interactions {
		d := e.Def
		if e.Params != nil {
			raw, err := json.Marshal(e.Params)
			if err != nil {
				return nil, nil, fmt.Errorf("interaction %d params: %w", i, err)
			}
			d.Params = raw
		}
		defs = append(defs, d)
	}

	if err := Validate(defs); err != nil {
		return nil, nil, fmt.Errorf("invalid interactions: %w", err)
	}
	return &f, defs, nil
}

func LoadFile(path string) (*File, []Def, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return LoadYAML(f)
}
