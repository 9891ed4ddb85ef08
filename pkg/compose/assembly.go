package compose

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/scan"
	"github.com/chazu/usdassemble/pkg/scene"
	"github.com/chazu/usdassemble/pkg/template"
)

// AssemblyPath is where the assembly document of res is written.
func AssemblyPath(res *scan.Result) string {
	return filepath.Join(res.Root, template.Assembly.OutputName(res.Name))
}

// ComposeAssembly writes <root>/<asset>.usda referencing every valid
// component of res in scan order. A tree of subcomponents is itself a
// component, so its root prim gets kind "component".
func (c *Composer) ComposeAssembly(ctx context.Context, res *scan.Result) error {
	if !scene.ValidName(res.Name) {
		return &asset.InvalidNameError{What: "asset", Name: res.Name}
	}
	target := AssemblyPath(res)
	vars := c.vars().With(template.AssemblyVars(res.Name))

	err := c.withTemp(template.Assembly, vars, target, func(tmp string) error {
		stage, err := c.Scene.Open(tmp)
		if err != nil {
			return err
		}
		defer stage.Close()

		primPath := scene.JoinPath(res.Name)
		p, ok := stage.PrimAtPath(primPath)
		if !ok {
			return &asset.MissingPrimError{Document: template.Assembly.OutputName(res.Name), Path: primPath}
		}
		if res.Type == asset.Subcomponent {
			if err := p.SetKind(asset.Component.Kind()); err != nil {
				return err
			}
		}

		for _, info := range res.Components {
			if err := ctx.Err(); err != nil {
				return err
			}
			child, err := stage.OverridePrim(scene.JoinPath(res.Name, info.Name))
			if err != nil {
				return err
			}
			if err := child.SetTypeName("Xform"); err != nil {
				return err
			}
			if err := child.References().Add(asset.ComponentRef(res.Type, info.Name), ""); err != nil {
				return err
			}
		}
		return stage.Export(target)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &ComponentError{Component: res.Name, Artifact: template.Assembly.String(), Err: err}
	}

	c.Logger.Info("assembly composed",
		zap.String("asset", res.Name),
		zap.String("path", target),
		zap.Int("components", len(res.Components)),
	)
	return nil
}
