//go:build !pxr

// Package pxr provides a scene backend bound to the native USD libraries.
// When the "pxr" build tag is not set, this stub package is compiled
// instead, returning an error from New().
//
// Build with: go build -tags=pxr
package pxr

import (
	"errors"

	"github.com/chazu/usdassemble/pkg/scene"
)

// ErrUnavailable is returned by New in builds without the pxr tag.
var ErrUnavailable = errors.New("pxr scene backend not available: build with -tags=pxr")

// New returns an error indicating the native backend is not available.
// Build with -tags=pxr to enable.
func New() (scene.Backend, error) {
	return nil, ErrUnavailable
}
