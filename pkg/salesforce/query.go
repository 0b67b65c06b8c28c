package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-enrich/internal/model"
)

// Account is a Salesforce Account as read by the enricher.
type Account struct {
	ID             string      `json:"Id" salesforce:"Id"`
	Name           string      `json:"Name" salesforce:"Name"`
	AltName        string      `json:"Nom_du_restaurant__c" salesforce:"Nom_du_restaurant__c"`
	BillingStreet  string      `json:"BillingStreet" salesforce:"BillingStreet"`
	BillingCity    string      `json:"BillingCity" salesforce:"BillingCity"`
	BillingCountry string      `json:"BillingCountry" salesforce:"BillingCountry"`
	Website        string      `json:"Website" salesforce:"Website"`
	Phone          string      `json:"Phone" salesforce:"Phone"`
	Type           string      `json:"Type" salesforce:"Type"`
	IsCustomer     bool        `json:"IsCustomer__c" salesforce:"IsCustomer__c"`
	RecordType     *RecordType `json:"RecordType" salesforce:"RecordType"`
}

// RecordType is the related record type of an Account.
type RecordType struct {
	Name string `json:"Name" salesforce:"Name"`
}

// ToModel converts the Salesforce record into the enricher's input type.
func (a Account) ToModel() model.Account {
	return model.Account{
		ID:             a.ID,
		Name:           a.Name,
		AltName:        a.AltName,
		BillingStreet:  a.BillingStreet,
		BillingCity:    a.BillingCity,
		BillingCountry: a.BillingCountry,
		Website:        a.Website,
		Phone:          a.Phone,
		Type:           a.Type,
	}
}

// PlaceAccount is an Account already carrying a Google place ID.
type PlaceAccount struct {
	ID               string `json:"Id" salesforce:"Id"`
	Name             string `json:"Name" salesforce:"Name"`
	GooglePlaceID    string `json:"Google_Place_ID__c" salesforce:"Google_Place_ID__c"`
	LastActivityDate string `json:"LastActivityDate" salesforce:"LastActivityDate"`
	Type             string `json:"Type" salesforce:"Type"`
}

var accountFields = []string{
	"Id", "Name", "Nom_du_restaurant__c",
	"BillingStreet", "BillingCity", "BillingCountry",
	"Website", "Phone", "Type", "IsCustomer__c", "RecordType.Name",
}

// unenrichedFilter selects accounts with no place ID that are neither hotel
// restaurants nor parent records.
const unenrichedFilter = "Google_Place_ID__c = null AND Hotel_Restaurant__c = false AND RecordType.Name != 'Parent'"

// ListUnenrichedAccounts returns up to limit unenriched accounts with Id
// greater than afterID, ordered by Id. An empty afterID starts from the top.
func ListUnenrichedAccounts(ctx context.Context, c Client, afterID string, limit int) ([]Account, error) {
	if limit <= 0 {
		return nil, eris.New("sf: limit must be positive")
	}

	where := unenrichedFilter
	if afterID != "" {
		where += fmt.Sprintf(" AND Id > '%s'", escapeSoql(afterID))
	}
	soql := fmt.Sprintf(
		"SELECT %s FROM Account WHERE %s ORDER BY Id ASC LIMIT %d",
		strings.Join(accountFields, ", "), where, limit,
	)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: list unenriched accounts after %q", afterID))
	}
	return accounts, nil
}

// CountUnenrichedAccounts returns how many accounts still need enrichment.
func CountUnenrichedAccounts(ctx context.Context, c Client) (int, error) {
	n, err := c.Count(ctx, "SELECT COUNT() FROM Account WHERE "+unenrichedFilter)
	if err != nil {
		return 0, eris.Wrap(err, "sf: count unenriched accounts")
	}
	return n, nil
}

// FindAccountsByPlaceID returns every account carrying the given place ID.
func FindAccountsByPlaceID(ctx context.Context, c Client, placeID string) ([]PlaceAccount, error) {
	if placeID == "" {
		return nil, eris.New("sf: place id is required")
	}
	soql := fmt.Sprintf(
		"SELECT Id, Name, Google_Place_ID__c, LastActivityDate, Type FROM Account WHERE Google_Place_ID__c = '%s' ORDER BY Id ASC",
		escapeSoql(placeID),
	)

	var accounts []PlaceAccount
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find accounts by place id %s", placeID))
	}
	return accounts, nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
