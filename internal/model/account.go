// Package model defines the records that flow through an enrichment run.
package model

// Account is the subset of a Salesforce Account the enricher reads.
type Account struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AltName        string `json:"alt_name,omitempty"` // Nom_du_restaurant__c
	BillingStreet  string `json:"billing_street,omitempty"`
	BillingCity    string `json:"billing_city,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`
	Website        string `json:"website,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Type           string `json:"type,omitempty"`
}
