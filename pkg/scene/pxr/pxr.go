//go:build pxr

// Package pxr provides a scene backend bound to the native USD toolchain.
// Documents are converted through usdcat so any format the installed USD
// build reads (crate, usdz) can be opened; authoring is done on the textual
// form and converted back on save.
//
// Build with: go build -tags=pxr
package pxr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chazu/usdassemble/pkg/scene"
	"github.com/chazu/usdassemble/pkg/scene/usda"
)

// ConvertTimeout bounds a single usdcat invocation.
const ConvertTimeout = 30 * time.Second

// Backend converts documents with usdcat.
type Backend struct {
	usdcat string
	text   *usda.Backend
}

// New locates usdcat on PATH.
func New() (scene.Backend, error) {
	bin, err := exec.LookPath("usdcat")
	if err != nil {
		return nil, fmt.Errorf("pxr: usdcat not found: %w", err)
	}
	return &Backend{usdcat: bin, text: usda.New()}, nil
}

func (b *Backend) convert(src, dst string) error {
	ctx, cancel := context.WithTimeout(context.Background(), ConvertTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, b.usdcat, src, "-o", dst).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pxr: usdcat %s -> %s: %w: %s", src, dst, err, out)
	}
	return nil
}

func (b *Backend) Open(path string) (scene.Stage, error) {
	tmp, err := os.MkdirTemp("", "usdassemble-pxr-")
	if err != nil {
		return nil, err
	}
	text := filepath.Join(tmp, "stage.usda")
	if err := b.convert(path, text); err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	st, err := b.text.Open(text)
	if err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	return &stage{Stage: st, backend: b, path: path, tmp: tmp}, nil
}

func (b *Backend) Create(path string) (scene.Stage, error) {
	tmp, err := os.MkdirTemp("", "usdassemble-pxr-")
	if err != nil {
		return nil, err
	}
	st, err := b.text.Create(filepath.Join(tmp, "stage.usda"))
	if err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	return &stage{Stage: st, backend: b, path: path, tmp: tmp}, nil
}

// stage authors on a textual working copy and converts on save.
type stage struct {
	scene.Stage
	backend *Backend
	path    string
	tmp     string
}

func (s *stage) Path() string { return s.path }

func (s *stage) Save() error { return s.Export(s.path) }

func (s *stage) Export(path string) error {
	if err := s.Stage.Save(); err != nil {
		return err
	}
	return s.backend.convert(s.Stage.Path(), path)
}

func (s *stage) Close() error {
	err := s.Stage.Close()
	if rmErr := os.RemoveAll(s.tmp); err == nil {
		err = rmErr
	}
	return err
}
