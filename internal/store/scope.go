package store

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxScopeLength is the maximum length of a scope.
	MaxScopeLength = 128
	// MaxScopeSegments is the maximum number of path segments.
	MaxScopeSegments = 4
	// DefaultScope is used when no scope is configured.
	DefaultScope = "default"
)

// scopeSegmentPattern matches a single valid segment.
// Segment must start and end with alphanumeric, can contain hyphens in middle.
var scopeSegmentPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateScope validates a scope against format rules. Scopes separate
// independent questionnaires (one per browser profile, user or household)
// and may be namespaced with "/", e.g. "household/smith".
func ValidateScope(scope string) error {
	if scope == "" {
		return fmt.Errorf("%w: empty scope", ErrInvalidScope)
	}

	if len(scope) > MaxScopeLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidScope, MaxScopeLength)
	}

	segments := strings.Split(scope, "/")
	if len(segments) > MaxScopeSegments {
		return fmt.Errorf("%w: exceeds %d path segments", ErrInvalidScope, MaxScopeSegments)
	}

	for i, seg := range segments {
		if seg == "" {
			return fmt.Errorf("%w: empty segment at position %d", ErrInvalidScope, i)
		}
		if !scopeSegmentPattern.MatchString(seg) {
			return fmt.Errorf("%w: invalid segment %q (must be lowercase alphanumeric with hyphens)",
				ErrInvalidScope, seg)
		}
	}

	return nil
}
