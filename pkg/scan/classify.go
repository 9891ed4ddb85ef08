// Package scan turns an asset directory tree into component records. It
// classifies texture files against a taxonomy, detects material variants
// and partitions components into valid and rejected. Nothing in this
// package writes to the filesystem.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/chazu/usdassemble/pkg/asset"
)

// Classifier maps the files of one texture directory onto taxonomy slots.
type Classifier struct {
	Taxonomy asset.Taxonomy
}

// NewClassifier returns a classifier for tax.
func NewClassifier(tax asset.Taxonomy) *Classifier {
	return &Classifier{Taxonomy: tax}
}

// Classify builds the texture map for dir. Paths in the map are POSIX paths
// relative to base. A missing directory yields an empty map. Every candidate
// file must match exactly one slot and no slot may be matched twice;
// otherwise an error is returned and no map is produced.
func (c *Classifier) Classify(dir, base string) (asset.TextureMap, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return asset.TextureMap{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan: read texture dir %s: %w", dir, err)
	}

	files := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && !isHidden(e.Name())
	})
	slices.Sort(files)

	bySlot := make(map[asset.TextureSlot][]string)
	var unmatched []string
	var ambiguous *asset.AmbiguousTextureError
	for _, name := range files {
		slots := c.Taxonomy.Match(name)
		switch {
		case len(slots) == 0:
			unmatched = append(unmatched, name)
			continue
		case len(slots) > 1 && ambiguous == nil:
			ambiguous = &asset.AmbiguousTextureError{Dir: dir, Filename: name, Slots: slots}
		}
		for _, s := range slots {
			bySlot[s] = append(bySlot[s], name)
		}
	}

	for _, s := range c.Taxonomy.SlotNames() {
		if names := bySlot[s]; len(names) > 1 {
			return nil, &asset.DuplicateTextureError{Dir: dir, Slot: s, Filenames: names}
		}
	}
	if len(unmatched) > 0 {
		return nil, &asset.UnrecognizedTextureError{Dir: dir, Filenames: unmatched}
	}
	if ambiguous != nil {
		return nil, ambiguous
	}

	out := make(asset.TextureMap, len(bySlot))
	for s, names := range bySlot {
		rel, err := filepath.Rel(base, filepath.Join(dir, names[0]))
		if err != nil {
			return nil, fmt.Errorf("scan: relative path for %s: %w", names[0], err)
		}
		out[s] = filepath.ToSlash(rel)
	}
	return out, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
