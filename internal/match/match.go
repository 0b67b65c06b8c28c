// Package match scores how well a Google Maps title matches an account name.
// The score gates every write to Salesforce, so a false positive here puts
// another business's data on the account.
package match

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Threshold is the default inclusive pass mark.
const Threshold = 80

// Salesforce field names reported as the matched field.
const (
	FieldName    = "Name"
	FieldAltName = "Nom_du_restaurant__c"
)

// indel distance: a substitution costs a delete plus an insert.
var indel = levenshtein.NewParams().SubCost(2)

// Result is the best score across the candidate name fields.
type Result struct {
	Score int
	Field string
}

// Pass reports whether the score meets threshold (inclusive).
func (r Result) Pass(threshold int) bool {
	return r.Score >= threshold
}

// Best scores the primary and alternate names against title. Ties favor the
// primary name.
func Best(primary, alternate, title string) Result {
	a := TokenSortRatio(primary, title)
	b := TokenSortRatio(alternate, title)
	if b > a {
		return Result{Score: b, Field: FieldAltName}
	}
	return Result{Score: a, Field: FieldName}
}

// TokenSortRatio returns a 0-100 similarity that ignores case, accents,
// punctuation and word order. An empty side scores 0.
func TokenSortRatio(a, b string) int {
	sa, sb := sortedTokens(a), sortedTokens(b)
	if sa == "" || sb == "" {
		return 0
	}
	return ratio(sa, sb)
}

func ratio(a, b string) int {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	dist := levenshtein.Distance(a, b, indel)
	return int(math.RoundToEven(100 * float64(total-dist) / float64(total)))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(fold(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
}
