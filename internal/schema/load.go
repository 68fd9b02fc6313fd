package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads descriptor files and builds a registry. A file may hold one
// geno per YAML document. Relative choices_file paths are resolved against
// the directory of the descriptor that names them.
func Load(paths ...string) (*Registry, error) {
	var genos []*Geno
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read descriptor: %w", err)
		}
		gs, err := Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, g := range gs {
			if err := resolveChoiceFiles(g, filepath.Dir(path)); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		genos = append(genos, gs...)
	}
	return New(genos...)
}

// Decode parses every YAML document in r as a geno.
func Decode(r io.Reader) ([]*Geno, error) {
	dec := yaml.NewDecoder(r)
	var genos []*Geno
	for {
		var g Geno
		err := dec.Decode(&g)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode descriptor: %w", err)
		}
		genos = append(genos, &g)
	}
	if len(genos) == 0 {
		return nil, errors.New("descriptor is empty")
	}
	return genos, nil
}

func resolveChoiceFiles(g *Geno, dir string) error {
	for _, c := range g.Resources {
		for i := range c.Fields {
			f := &c.Fields[i]
			if f.ChoicesFile == "" || len(f.Choices) > 0 {
				continue
			}
			path := f.ChoicesFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%s.%s: choices file: %w", c.ResourceName, f.DatastoreID, err)
			}
			// JSON is a subset of YAML, so both formats decode here.
			var choices Choices
			if err := yaml.Unmarshal(data, &choices); err != nil {
				return fmt.Errorf("%s.%s: choices file: %w", c.ResourceName, f.DatastoreID, err)
			}
			f.Choices = choices
		}
	}
	return nil
}
