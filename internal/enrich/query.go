// Package enrich drives Salesforce accounts through search, match scoring and
// staging.
package enrich

import (
	"strings"

	"github.com/sells-group/maps-enrich/internal/model"
)

// DefaultQueryTerm is appended to every search query.
const DefaultQueryTerm = "Restaurant"

// BuildQuery joins the account's name and billing address with the search
// term. It returns "" when the account has none of those fields.
func BuildQuery(acct model.Account, term string) string {
	var parts []string
	for _, p := range []string{acct.Name, acct.BillingStreet, acct.BillingCity, acct.BillingCountry} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	if term = strings.TrimSpace(term); term != "" {
		parts = append(parts, term)
	}
	return strings.Join(parts, " ")
}
