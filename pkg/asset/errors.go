package asset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every error produced by usdassemble.
type ErrorKind int

const (
	KindUnknown    ErrorKind = iota
	KindValidation           // input tree violates a naming or layout rule
	KindStructural           // a template or container is missing or malformed
	KindBackend              // a document backend rejected an operation
	KindAggregate            // nothing valid was left to compose
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStructural:
		return "structural"
	case KindBackend:
		return "backend"
	case KindAggregate:
		return "aggregate"
	default:
		return "unknown"
	}
}

// Kinded is implemented by every error type that reports its kind.
type Kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of the outermost kinded error in err's chain.
func KindOf(err error) ErrorKind {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// DuplicateTextureError reports two or more files matching one slot.
type DuplicateTextureError struct {
	Dir       string
	Slot      TextureSlot
	Filenames []string
}

func (e *DuplicateTextureError) Error() string {
	return fmt.Sprintf("duplicate textures for slot %q in %s: %s", e.Slot, e.Dir, strings.Join(e.Filenames, ", "))
}

func (e *DuplicateTextureError) Kind() ErrorKind { return KindValidation }

// UnrecognizedTextureError lists files that match no slot.
type UnrecognizedTextureError struct {
	Dir       string
	Filenames []string
}

func (e *UnrecognizedTextureError) Error() string {
	return fmt.Sprintf("unrecognized texture files in %s: %s", e.Dir, strings.Join(e.Filenames, ", "))
}

func (e *UnrecognizedTextureError) Kind() ErrorKind { return KindValidation }

// AmbiguousTextureError reports a file matching more than one slot.
type AmbiguousTextureError struct {
	Dir      string
	Filename string
	Slots    []TextureSlot
}

func (e *AmbiguousTextureError) Error() string {
	names := make([]string, len(e.Slots))
	for i, s := range e.Slots {
		names[i] = string(s)
	}
	return fmt.Sprintf("texture %s in %s matches several slots: %s", e.Filename, e.Dir, strings.Join(names, ", "))
}

func (e *AmbiguousTextureError) Kind() ErrorKind { return KindValidation }

// VariantError wraps a classification failure inside one variant directory.
type VariantError struct {
	Component string
	Variant   string
	Err       error
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("component %s: variant %q: %v", e.Component, e.Variant, e.Err)
}

func (e *VariantError) Unwrap() error { return e.Err }

func (e *VariantError) Kind() ErrorKind { return KindValidation }

// MissingGeometryError explains why a component was rejected as invalid.
type MissingGeometryError struct {
	Component string
	Path      string
}

func (e *MissingGeometryError) Error() string {
	return fmt.Sprintf("component %s: missing geometry file %s", e.Component, e.Path)
}

func (e *MissingGeometryError) Kind() ErrorKind { return KindValidation }

// NoContainerError reports an asset root without a components or
// subcomponents directory.
type NoContainerError struct {
	Root string
}

func (e *NoContainerError) Error() string {
	return fmt.Sprintf("%s: neither components/ nor subcomponents/ exists", e.Root)
}

func (e *NoContainerError) Kind() ErrorKind { return KindStructural }

// Rejected is a component excluded from composition, with the reason.
type Rejected struct {
	Name   string
	Reason error
}

// NoValidComponentsError reports a container where every component was rejected.
type NoValidComponentsError struct {
	Root     string
	Type     ComponentType
	Rejected []Rejected
}

func (e *NoValidComponentsError) Error() string {
	msg := fmt.Sprintf("%s: no valid %s found", e.Root, e.Type)
	if len(e.Rejected) == 0 {
		return msg
	}
	names := make([]string, len(e.Rejected))
	for i, r := range e.Rejected {
		names[i] = r.Name
	}
	return msg + " (rejected: " + strings.Join(names, ", ") + ")"
}

func (e *NoValidComponentsError) Kind() ErrorKind { return KindAggregate }

// Unwrap exposes the individual rejection reasons.
func (e *NoValidComponentsError) Unwrap() []error {
	out := make([]error, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		if r.Reason != nil {
			out = append(out, r.Reason)
		}
	}
	return out
}

// MissingPrimError reports a scene document without the expected prim.
type MissingPrimError struct {
	Document string
	Path     string
}

func (e *MissingPrimError) Error() string {
	return fmt.Sprintf("%s: prim %s not found", e.Document, e.Path)
}

func (e *MissingPrimError) Kind() ErrorKind { return KindStructural }

// TaxonomyError reports an inconsistent slot table.
type TaxonomyError struct {
	Reason string
}

func (e *TaxonomyError) Error() string {
	return "invalid taxonomy: " + e.Reason
}

func (e *TaxonomyError) Kind() ErrorKind { return KindStructural }

// InvalidNameError reports an asset root, component or variant directory
// whose name cannot be used as a prim name.
type InvalidNameError struct {
	What string // "asset", "component" or "variant"
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("%s name %q is not a valid identifier", e.What, e.Name)
}

func (e *InvalidNameError) Kind() ErrorKind { return KindValidation }
