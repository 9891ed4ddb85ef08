package compose_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/compose"
	"github.com/chazu/usdassemble/pkg/material/mtlx"
	"github.com/chazu/usdassemble/pkg/scan"
	"github.com/chazu/usdassemble/pkg/scene"
	"github.com/chazu/usdassemble/pkg/scene/usda"
	"github.com/chazu/usdassemble/pkg/template"
)

func touch(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, nil, 0o644))
	}
}

// assetRoot returns a fresh asset root whose base name is a valid prim name.
func assetRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "Chair")
	require.NoError(t, os.Mkdir(root, 0o755))
	return root
}

func scanTree(t *testing.T, root string) *scan.Result {
	t.Helper()
	res, err := scan.New(asset.DefaultTaxonomy(), nil).Scan(context.Background(), root)
	require.NoError(t, err)
	return res
}

func component(t *testing.T, res *scan.Result, name string) asset.ComponentInfo {
	t.Helper()
	for _, c := range res.Components {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("component %s not scanned", name)
	return asset.ComponentInfo{}
}

func newComposer(logger *zap.Logger, opts compose.Options) *compose.Composer {
	return compose.New(usda.New(), mtlx.New(), template.Default(), asset.DefaultShaderMapping(), opts, logger)
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func openStage(t *testing.T, path string) scene.Stage {
	t.Helper()
	st, err := usda.New().Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// leftovers lists temporary documents left in dir.
func leftovers(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	for _, pattern := range []string{"*.temp.*", ".*.temp.*"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		require.NoError(t, err)
		out = append(out, m...)
	}
	return out
}

// templatesWith returns the default templates with kind replaced by src.
func templatesWith(t *testing.T, kind template.Kind, src string) *template.Set {
	t.Helper()
	fsys := fstest.MapFS{}
	for _, k := range template.Kinds() {
		raw, err := template.Default().Raw(k)
		require.NoError(t, err)
		fsys[k.Path()] = &fstest.MapFile{Data: raw}
	}
	fsys[kind.Path()] = &fstest.MapFile{Data: []byte(src)}
	return template.FromFS(fsys, "test templates")
}

var errInjected = errors.New("injected failure")

// faultyBackend wraps a backend and fails one prim authoring stage.
type faultyBackend struct {
	scene.Backend
	fail compose.Stage
}

func (b faultyBackend) Open(path string) (scene.Stage, error) {
	st, err := b.Backend.Open(path)
	if err != nil {
		return nil, err
	}
	return faultyStage{Stage: st, fail: b.fail}, nil
}

type faultyStage struct {
	scene.Stage
	fail compose.Stage
}

func (s faultyStage) PrimAtPath(path string) (scene.Prim, bool) {
	p, ok := s.Stage.PrimAtPath(path)
	if !ok {
		return nil, false
	}
	return faultyPrim{Prim: p, fail: s.fail}, true
}

type faultyPrim struct {
	scene.Prim
	fail compose.Stage
}

func (p faultyPrim) SetKind(kind string) error {
	if p.fail == compose.StageSetKind {
		return errInjected
	}
	return p.Prim.SetKind(kind)
}

func (p faultyPrim) SetAssetInfo(identifier, name string) error {
	if p.fail == compose.StageAssetInfo {
		return errInjected
	}
	return p.Prim.SetAssetInfo(identifier, name)
}
