// Package compose writes the documents of a scanned asset. For each
// component it renders the templates, generates the material document and
// drives a scene backend to author kind, asset info and the
// material_variant variant set; for the asset it writes the assembly
// document that references every component.
package compose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/chazu/usdassemble/pkg/asset"
	"github.com/chazu/usdassemble/pkg/material"
	"github.com/chazu/usdassemble/pkg/scene"
	"github.com/chazu/usdassemble/pkg/shading"
	"github.com/chazu/usdassemble/pkg/template"
)

// Stage names one step of the main document state machine.
type Stage string

const (
	StageOpen        Stage = "open"
	StageLocatePrim  Stage = "locate-prim"
	StageSetKind     Stage = "set-kind"
	StageAssetInfo   Stage = "asset-info"
	StageVariantSet  Stage = "create-variant-set"
	StageRegister    Stage = "register-variant"
	StageSelect      Stage = "select-variant"
	StageEditVariant Stage = "edit-variant"
	StageDefault     Stage = "select-default"
	StageSave        Stage = "save"
)

// Stages lists every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageOpen, StageLocatePrim, StageSetKind, StageAssetInfo, StageVariantSet,
		StageRegister, StageSelect, StageEditVariant, StageDefault, StageSave,
	}
}

// BestEffortStages lists the stages that may be downgraded to a warning.
// Every other stage shapes the variant set or the exported document and
// always aborts the component.
func BestEffortStages() []Stage {
	return []Stage{StageAssetInfo}
}

// Options tune how documents are authored.
type Options struct {
	// RenderPrim is the prim receiving the material binding, relative to
	// the component prim.
	RenderPrim string
	// BestEffort lists stages whose failure is logged instead of aborting.
	// Only stages from BestEffortStages are accepted.
	BestEffort    []Stage
	UpAxis        string
	MetersPerUnit string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		RenderPrim:    "Geometry/Render",
		BestEffort:    []Stage{StageAssetInfo},
		UpAxis:        "Y",
		MetersPerUnit: "1",
	}
}

// Validate checks that the render prim is a relative prim path and that
// every best-effort stage is allowed to be one.
func (o Options) Validate() error {
	var errs []error
	if o.RenderPrim == "" {
		errs = append(errs, errors.New("compose: render prim is empty"))
	} else if _, err := scene.SplitPath("/" + o.RenderPrim); err != nil {
		errs = append(errs, fmt.Errorf("compose: render prim: %w", err))
	}
	for _, s := range o.BestEffort {
		switch {
		case !slices.Contains(Stages(), s):
			errs = append(errs, fmt.Errorf("compose: best-effort: unknown stage %q", s))
		case !slices.Contains(BestEffortStages(), s):
			errs = append(errs, fmt.Errorf("compose: best-effort: stage %q is required", s))
		}
	}
	return errors.Join(errs...)
}

// VariantCompositionError reports a scene backend failure while authoring a
// component's main document. Nothing is exported when it is returned.
type VariantCompositionError struct {
	Component string
	Stage     Stage
	Err       error
}

func (e *VariantCompositionError) Error() string {
	return fmt.Sprintf("component %s: %s: %v", e.Component, e.Stage, e.Err)
}

func (e *VariantCompositionError) Unwrap() error { return e.Err }

// Kind is the kind of the cause, or backend when the cause has none.
func (e *VariantCompositionError) Kind() asset.ErrorKind {
	if k := asset.KindOf(e.Err); k != asset.KindUnknown {
		return k
	}
	return asset.KindBackend
}

// ComponentError reports a failure writing one artifact of a component.
type ComponentError struct {
	Component string
	Artifact  string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s: %s: %v", e.Component, e.Artifact, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }

func (e *ComponentError) Kind() asset.ErrorKind {
	if k := asset.KindOf(e.Err); k != asset.KindUnknown {
		return k
	}
	return asset.KindBackend
}

// Composer writes component and assembly documents.
type Composer struct {
	Scene     scene.Backend
	Material  material.Backend
	Templates *template.Set
	Shading   *shading.Generator
	Options   Options
	Logger    *zap.Logger
}

// New returns a Composer. A nil logger discards output.
func New(sc scene.Backend, mat material.Backend, tmpl *template.Set, mapping asset.ShaderMapping, opts Options, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		Scene:     sc,
		Material:  mat,
		Templates: tmpl,
		Shading:   shading.New(mapping, logger),
		Options:   opts,
		Logger:    logger,
	}
}

// bestEffort ignores stages outside BestEffortStages even when an
// unvalidated Options lists them.
func (c *Composer) bestEffort(s Stage) bool {
	return slices.Contains(BestEffortStages(), s) && slices.Contains(c.Options.BestEffort, s)
}

// vars returns the template variables shared by every document.
func (c *Composer) vars() template.Vars {
	return template.Vars{
		template.TokenUpAxis:        c.Options.UpAxis,
		template.TokenMetersPerUnit: c.Options.MetersPerUnit,
	}
}

// withTemp renders kind into a temporary sibling of target and calls fn with
// its path. The temporary file is removed when fn returns.
func (c *Composer) withTemp(kind template.Kind, vars template.Vars, target string, fn func(tmp string) error) error {
	src, err := c.Templates.Render(kind, vars)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.temp.usda")
	if err != nil {
		return fmt.Errorf("compose: create temporary %s document: %w", kind, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	_, err = f.Write(src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("compose: write temporary %s document: %w", kind, err)
	}
	return fn(tmp)
}

// writeFile renders kind straight to target.
func (c *Composer) writeFile(kind template.Kind, vars template.Vars, target string) error {
	src, err := c.Templates.Render(kind, vars)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, src, 0o644); err != nil {
		return fmt.Errorf("compose: write %s: %w", target, err)
	}
	return nil
}
