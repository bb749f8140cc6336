// Package refdata resolves named reference data: EDMs, portfolios and
// other server-side records addressed by a human readable name.
package refdata

import (
	"strconv"
	"strings"

	"github.com/rossigee/irp-integration/internal/irperr"
)

// maxListed caps how many names a not-found error lists.
const maxListed = 5

// ExactlyOne returns the single match of a server-side name search. Zero
// and multiple matches are both ReferenceData errors.
func ExactlyOne[T any](matches []T, kind, name string) (T, error) {
	var zero T
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return zero, irperr.ReferenceData("%s '%s' not found", kind, name)
	default:
		return zero, irperr.ReferenceData("%d %ss found with name %s, please use a unique name", len(matches), kind, name)
	}
}

// FindByName returns the first item whose nameOf equals target. The error
// lists up to five available names.
func FindByName[T any](items []T, target, kind string, nameOf func(T) string) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, irperr.ReferenceData("No %s available to search", kind)
	}

	for _, item := range items {
		if nameOf(item) == target {
			return item, nil
		}
	}

	names := make([]string, 0, maxListed)
	for i := 0; i < len(items) && i < maxListed; i++ {
		n := nameOf(items[i])
		if n == "" {
			n = "<unnamed>"
		}
		names = append(names, n)
	}
	available := strings.Join(names, ", ")
	if len(items) > maxListed {
		available += ", ... (" + strconv.Itoa(len(items)-maxListed) + " more)"
	}
	return zero, irperr.ReferenceData("%s '%s' not found. Available: %s", kind, target, available)
}
