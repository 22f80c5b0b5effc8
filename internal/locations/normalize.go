package locations

import (
	"strings"

	"golang.org/x/text/cases"
)

// CollapseSpace trims query and joins its words with single spaces.
func CollapseSpace(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

// Normalize turns a user-supplied place name into a store key: whitespace
// runs collapse to one space, the ends are trimmed and the rest is Unicode
// case-folded. Normalize(Normalize(q)) == Normalize(q) for every q.
func Normalize(query string) string {
	// Casers keep state, so a fresh one per call keeps this safe for concurrent use.
	return cases.Fold().String(CollapseSpace(query))
}
