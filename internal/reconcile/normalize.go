package reconcile

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// marketingPrefixes are stripped from the front of product names before
// matching. The expected-price source and the live site disagree on brand
// prefixes and "NEW" markers for the same product.
var marketingPrefixes = []string{"panago", "new"}

// NormalizeName maps a product name to its canonical matching form: collapse
// whitespace, strip marketing prefixes, fold hyphens into spaces, lowercase.
func NormalizeName(name string) string {
	s := collapseWhitespace(strings.TrimSpace(name))

	for stripped := true; stripped; {
		stripped = false
		for _, prefix := range marketingPrefixes {
			if len(s) > len(prefix)+1 &&
				strings.EqualFold(s[:len(prefix)], prefix) &&
				s[len(prefix)] == ' ' {
				s = strings.TrimSpace(s[len(prefix)+1:])
				stripped = true
			}
		}
	}

	s = strings.ReplaceAll(s, "-", " ")
	s = collapseWhitespace(s)
	return strings.ToLower(s)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// namesSimilar reports whether two already-normalized names are close enough
// to be the same product. Used as a fallback after exact-key matching fails,
// scoped to rows sharing category and pricing tier.
func namesSimilar(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	return matchr.JaroWinkler(a, b, false) >= threshold
}
