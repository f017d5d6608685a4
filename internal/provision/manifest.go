package provision

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forgo/docrepo/internal/docstore"
)

// Manifest is the set of collections a deployment expects.
type Manifest struct {
	Collections []Collection `yaml:"collections"`
}

// Collection is one manifest entry.
type Collection struct {
	Name    string           `yaml:"name"`
	Indexes []docstore.Index `yaml:"indexes,omitempty"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseManifest(f)
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Names returns the collection names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Collections))
	for i, c := range m.Collections {
		names[i] = c.Name
	}
	return names
}

// Validate checks names, index definitions and duplicates.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(m.Collections))
	for _, c := range m.Collections {
		if err := docstore.ValidateCollection(c.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[c.Name] {
			errs = append(errs, fmt.Errorf("collection %s listed twice", c.Name))
		}
		seen[c.Name] = true

		indexes := make(map[string]bool, len(c.Indexes))
		for _, ix := range c.Indexes {
			if err := ix.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("collection %s: %w", c.Name, err))
				continue
			}
			if indexes[ix.Name] {
				errs = append(errs, fmt.Errorf("collection %s: index %s listed twice", c.Name, ix.Name))
			}
			indexes[ix.Name] = true
		}
	}
	return errors.Join(errs...)
}
