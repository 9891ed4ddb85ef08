package scene

import (
	"fmt"
	"strings"
)

// SplitPath splits an absolute prim path into its names. "/" yields none.
func SplitPath(p string) ([]string, error) {
	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, p)
	}
	if p == "/" {
		return nil, nil
	}
	parts := strings.Split(p[1:], "/")
	for _, n := range parts {
		if !ValidName(n) {
			return nil, fmt.Errorf("%w: %q has invalid element %q", ErrInvalidPath, p, n)
		}
	}
	return parts, nil
}

// JoinPath builds an absolute prim path from names.
func JoinPath(names ...string) string {
	return "/" + strings.Join(names, "/")
}

// ValidName reports whether n is a legal prim name (an identifier).
func ValidName(n string) bool {
	return validName(n, false)
}

// ValidVariantName reports whether n is a legal variant name. Variant names
// additionally allow '-' after the first character.
func ValidVariantName(n string) bool {
	return validName(n, true)
}

func validName(n string, dash bool) bool {
	if n == "" {
		return false
	}
	for i, r := range n {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		case dash && i > 0 && r == '-':
		default:
			return false
		}
	}
	return true
}

// IsUnder reports whether p equals prefix or lies below it.
func IsUnder(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
