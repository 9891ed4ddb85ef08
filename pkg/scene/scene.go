// Package scene defines the abstract scene-description backend used to
// compose component and assembly documents. Implementations (usda, pxr)
// provide prim authoring, composition arcs and variant sets behind these
// interfaces so the composition code never depends on a concrete format.
package scene

import "errors"

// Backend opens and creates scene documents.
type Backend interface {
	// Open loads an existing document.
	Open(path string) (Stage, error)
	// Create starts an empty document that will be saved to path.
	Create(path string) (Stage, error)
}

// Stage is an open, mutable document. Callers must Close it.
type Stage interface {
	Path() string
	PrimAtPath(path string) (Prim, bool)
	// DefinePrim authors a "def" spec at path, creating ancestors as overs.
	DefinePrim(path, typeName string) (Prim, error)
	// OverridePrim authors an "over" spec at path unless one already exists.
	OverridePrim(path string) (Prim, error)
	SetDefaultPrim(name string) error
	Save() error
	Export(path string) error
	Close() error
}

// Prim is a handle on one prim path of a stage. Authoring calls land in the
// stage's current edit target.
type Prim interface {
	Path() string
	Name() string
	TypeName() string
	SetTypeName(name string) error
	Kind() string
	SetKind(kind string) error
	SetAssetInfo(identifier, name string) error
	References() ArcList
	Payloads() ArcList
	VariantSets() VariantSets
	SetRelationship(name string, targets ...string) error
	Relationship(name string) ([]string, bool)
}

// Arc is one reference or payload: an asset path and an optional prim path.
type Arc struct {
	AssetPath string
	PrimPath  string
}

// ArcList edits a reference or payload list. Add after Clear authors an
// explicit list that replaces weaker opinions; Add alone prepends.
type ArcList interface {
	Add(assetPath, primPath string) error
	Clear() error
	Items() []Arc
}

// VariantSets gives access to the variant sets of a prim.
type VariantSets interface {
	Add(name string) (VariantSet, error)
	Get(name string) (VariantSet, bool)
	Names() []string
}

// VariantSet is one named variant set.
type VariantSet interface {
	Name() string
	AddVariant(name string) error
	Variants() []string
	SetSelection(name string) error
	Selection() string
	// Edit runs fn with the stage edit target redirected into variant. The
	// previous target is restored before Edit returns.
	Edit(variant string, fn func() error) error
}

var (
	// ErrClosed is returned by every operation on a closed stage.
	ErrClosed = errors.New("scene: stage is closed")
	// ErrEditScopeActive is returned when a second edit scope is opened on a stage.
	ErrEditScopeActive = errors.New("scene: an edit scope is already active")
	// ErrUnknownVariant is returned when selecting or editing an unregistered variant.
	ErrUnknownVariant = errors.New("scene: variant not registered")
	// ErrInvalidPath is returned for malformed prim paths.
	ErrInvalidPath = errors.New("scene: invalid prim path")
)
