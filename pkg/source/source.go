// Package source produces ordered sequences of containers for the
// extraction pipeline. A sequence only reports construction results; it has
// no say in how records are processed.
package source

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/snapshotetl/pkg/container"
)

// Sequence is a finite, ordered pull iterator of container construction
// results. Each successful Container is owned by the caller, who must Close it.
type Sequence interface {
	Next() bool
	// Container constructs the current item. A construction error is
	// returned here rather than ending the sequence.
	Container() (*container.Container, error)
	// Name identifies the current item for logging.
	Name() string
	Close() error
}

// Opener constructs one container.
type Opener func() (*container.Container, error)

// Item is one entry of a sequence.
type Item struct {
	Name string
	Open Opener
}

type sliceSequence struct {
	items []Item
	pos   int
}

// Slice returns a sequence over items in order.
func Slice(items ...Item) Sequence {
	return &sliceSequence{items: items, pos: -1}
}

func (s *sliceSequence) Next() bool {
	if s.pos+1 >= len(s.items) {
		s.pos = len(s.items)
		return false
	}
	s.pos++
	return true
}

func (s *sliceSequence) current() (Item, bool) {
	if s.pos < 0 || s.pos >= len(s.items) {
		return Item{}, false
	}
	return s.items[s.pos], true
}

func (s *sliceSequence) Container() (*container.Container, error) {
	item, ok := s.current()
	if !ok {
		return nil, errors.New("source: Container called without a current item")
	}
	return item.Open()
}

func (s *sliceSequence) Name() string {
	item, _ := s.current()
	return item.Name
}

func (s *sliceSequence) Close() error {
	s.pos = len(s.items)
	return nil
}

// Manifest declares the logical length of container files by base name.
// Files missing from the manifest are assumed to be fully populated.
type Manifest struct {
	Lengths map[string]int `yaml:"lengths"`
}

// LoadManifest reads a yaml manifest from path
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse manifest")
	}
	return &m, nil
}

// Dir returns a sequence over the regular files of dir in lexical order.
// manifest may be nil. A manifest file stored inside dir is skipped.
func Dir(dir string, manifest *Manifest, manifestPath string) (Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list containers")
	}

	skip := ""
	if manifestPath != "" {
		if abs, err := filepath.Abs(manifestPath); err == nil {
			skip = abs
		}
	}

	var items []Item
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil && abs == skip {
			continue
		}
		items = append(items, Item{Name: path, Open: fileOpener(path, entry.Name(), manifest)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return Slice(items...), nil
}

func fileOpener(path, name string, manifest *Manifest) Opener {
	return func() (*container.Container, error) {
		if manifest != nil {
			if length, ok := manifest.Lengths[name]; ok {
				return container.Open(path, length)
			}
		}

		fi, err := os.Stat(path)
		if err != nil {
			return nil, &container.ConstructionError{Path: path, Err: err}
		}
		return container.Open(path, int(fi.Size()))
	}
}
