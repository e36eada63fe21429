package rbac

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// CodeDelimiter separates the category from the action in a
	// permission code (e.g., "reports:export").
	CodeDelimiter = ":"

	// CodeWildcard matches any action within a category ("reports:*"),
	// or any code at all when used alone.
	CodeWildcard = "*"
)

// ParseCode splits a permission code into its category and action parts.
func ParseCode(code string) (category, action string, err error) {
	category, action, ok := strings.Cut(code, CodeDelimiter)
	if !ok || category == "" || action == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return category, action, nil
}

// ValidCode reports whether code is a well-formed "{category}:{action}"
// permission code. The global wildcard is considered valid.
func ValidCode(code string) bool {
	if code == CodeWildcard {
		return true
	}
	_, _, err := ParseCode(code)
	return err == nil
}

// MatchCode checks if a single code satisfies a pattern.
//
// Matching rules:
//   - Direct match: "reports:export" matches "reports:export"
//   - Global wildcard: "*" matches any code
//   - Category wildcard: "reports:*" matches any code in the category
func MatchCode(code, pattern string) bool {
	if code == pattern || pattern == CodeWildcard {
		return true
	}

	if strings.HasSuffix(pattern, CodeDelimiter+CodeWildcard) {
		prefix := strings.TrimSuffix(pattern, CodeWildcard)
		return strings.HasPrefix(code, prefix)
	}

	return false
}

// HasCode checks if any held code satisfies the wanted code, honoring
// wildcards held by the principal.
func HasCode(held []string, code string) bool {
	for _, h := range held {
		if MatchCode(code, h) {
			return true
		}
	}
	return false
}

// HasAllCodes checks that every wanted code is satisfied by the held set.
// An empty wanted set is satisfied vacuously.
func HasAllCodes(held, wanted []string) bool {
	for _, w := range wanted {
		if !HasCode(held, w) {
			return false
		}
	}
	return true
}

// HasAnyCodes checks that at least one wanted code is satisfied by the
// held set. An empty wanted set is never satisfied.
func HasAnyCodes(held, wanted []string) bool {
	for _, w := range wanted {
		if HasCode(held, w) {
			return true
		}
	}
	return false
}

// NormalizeCodes deduplicates and sorts a code list. Returns nil for an
// empty input to keep comparisons cheap.
func NormalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}

	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return out
}
