package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/scene"
	"github.com/chazu/usdassemble/pkg/shading"
	"github.com/chazu/usdassemble/pkg/template"
)

// ComposeComponent writes the material, main, payload and look documents of
// info under its directory in root. Artifacts already written stay on disk
// when a later one fails.
func (c *Composer) ComposeComponent(ctx context.Context, root string, info asset.ComponentInfo) error {
	if !info.IsValid() {
		return &ComponentError{
			Component: info.Name,
			Artifact:  "geometry",
			Err:       &asset.MissingGeometryError{Component: info.Name, Path: info.GeometryPath(root)},
		}
	}
	log := c.Logger.With(zap.String("component", info.Name))

	dir := info.Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &ComponentError{Component: info.Name, Artifact: "directory", Err: err}
	}
	vars := c.vars().With(template.ComponentVars(info.Name))

	if info.HasMaterial() {
		if err := c.writeMaterial(dir, info, vars); err != nil {
			return &ComponentError{Component: info.Name, Artifact: template.Material.String(), Err: err}
		}
	} else {
		log.Warn("component has no textures, material document skipped")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.composeMain(ctx, dir, info, vars); err != nil {
		return err
	}

	for _, k := range []template.Kind{template.Payload, template.Look} {
		if err := c.writeFile(k, vars, filepath.Join(dir, k.OutputName(info.Name))); err != nil {
			return &ComponentError{Component: info.Name, Artifact: k.String(), Err: err}
		}
	}

	log.Info("component composed",
		zap.String("type", info.Type.Kind()),
		zap.Int("variants", len(info.Variants)),
		zap.Int("textures", info.TextureCount()),
	)
	return nil
}

// writeMaterial generates the material document through a temporary sibling
// that is renamed into place.
func (c *Composer) writeMaterial(dir string, info asset.ComponentInfo, vars template.Vars) error {
	src, err := c.Templates.Render(template.Material, vars)
	if err != nil {
		return err
	}
	doc, err := c.Material.Parse(src)
	if err != nil {
		return err
	}
	if err := c.Shading.Generate(doc, info); err != nil {
		return err
	}

	target := filepath.Join(dir, template.Material.OutputName(info.Name))
	tmp := strings.TrimSuffix(target, ".mtlx") + ".temp.mtlx"
	defer os.Remove(tmp)

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	_, err = doc.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// composeMain runs the main document state machine. The rendered template
// is opened from a temporary file and exported to <name>.usd only when every
// required stage succeeded.
func (c *Composer) composeMain(ctx context.Context, dir string, info asset.ComponentInfo, vars template.Vars) error {
	target := filepath.Join(dir, template.Main.OutputName(info.Name))
	fail := func(s Stage, err error) error {
		return &VariantCompositionError{Component: info.Name, Stage: s, Err: err}
	}

	err := c.withTemp(template.Main, vars, target, func(tmp string) error {
		stage, err := c.Scene.Open(tmp)
		if err != nil {
			return fail(StageOpen, err)
		}
		defer stage.Close()

		if err := c.authorMain(ctx, stage, info, fail); err != nil {
			return err
		}
		if err := stage.Export(target); err != nil {
			return fail(StageSave, err)
		}
		return nil
	})
	var vce *VariantCompositionError
	if err != nil && !errors.As(err, &vce) && ctx.Err() == nil {
		err = &ComponentError{Component: info.Name, Artifact: template.Main.String(), Err: err}
	}
	return err
}

func (c *Composer) authorMain(ctx context.Context, stage scene.Stage, info asset.ComponentInfo, fail func(Stage, error) error) error {
	step := func(s Stage, err error) error {
		if err == nil {
			return nil
		}
		if c.bestEffort(s) {
			c.Logger.Warn("best-effort stage failed",
				zap.String("component", info.Name),
				zap.String("stage", string(s)),
				zap.Error(err),
			)
			return nil
		}
		return fail(s, err)
	}

	primPath := scene.JoinPath(info.Name)
	p, ok := stage.PrimAtPath(primPath)
	if !ok {
		return fail(StageLocatePrim, &asset.MissingPrimError{Document: template.Main.OutputName(info.Name), Path: primPath})
	}
	if err := step(StageSetKind, p.SetKind(info.Type.Kind())); err != nil {
		return err
	}
	if err := step(StageAssetInfo, p.SetAssetInfo("./"+template.Main.OutputName(info.Name), info.Name)); err != nil {
		return err
	}
	if !info.HasVariants() {
		return nil
	}

	vset, err := p.VariantSets().Add(asset.VariantSetName)
	if err != nil {
		return fail(StageVariantSet, err)
	}
	for _, v := range info.Variants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(StageRegister, vset.AddVariant(v.Name)); err != nil {
			return err
		}
		if err := step(StageSelect, vset.SetSelection(v.Name)); err != nil {
			return err
		}
		err := vset.Edit(v.Name, func() error { return c.authorVariant(stage, info, v) })
		if err := step(StageEditVariant, err); err != nil {
			return err
		}
	}
	first, _ := info.DefaultVariant()
	return step(StageDefault, vset.SetSelection(first.Name))
}

// authorVariant points the Materials prim at the component material document
// and binds the variant material on the render prim. It runs inside the
// variant's edit scope.
func (c *Composer) authorVariant(stage scene.Stage, info asset.ComponentInfo, v asset.VariantInfo) error {
	mats, err := stage.OverridePrim(scene.JoinPath(info.Name, "Materials"))
	if err != nil {
		return err
	}
	refs := mats.References()
	if err := refs.Clear(); err != nil {
		return err
	}
	if err := refs.Add("./"+template.Material.OutputName(info.Name), "/MaterialX/Materials"); err != nil {
		return err
	}

	render, err := stage.OverridePrim(scene.JoinPath(info.Name, c.Options.RenderPrim))
	if err != nil {
		return err
	}
	binding := BindingPath(info, v.Name)
	if err := render.SetRelationship("material:binding", binding); err != nil {
		return fmt.Errorf("bind %s: %w", binding, err)
	}
	return nil
}

// BindingPath is the material a variant binds on the render prim.
func BindingPath(info asset.ComponentInfo, variant string) string {
	return scene.JoinPath(info.Name, "Materials", shading.MaterialName(info.MaterialKey(variant)))
}
