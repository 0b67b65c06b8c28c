package model

// Closure labels written to Prospection_Status__c.
const (
	ClosurePermanent = "Permanently Closed"
	ClosureTemporary = "Temporarily Closed"
)

// Place is a Google Maps listing after mapping from the provider payload.
type Place struct {
	PlaceID         string   `json:"place_id,omitempty"`
	DataID          string   `json:"data_id,omitempty"`
	Title           string   `json:"title,omitempty"`
	Address         string   `json:"address,omitempty"`
	Type            string   `json:"type,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	Reviews         *int     `json:"reviews,omitempty"`
	Price           string   `json:"price,omitempty"`     // normalized tier, "" when unknown
	PriceRaw        string   `json:"price_raw,omitempty"` // provider token, audit only
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	WebsiteURL      string   `json:"website_url,omitempty"`
	AcceptsBookings bool     `json:"accepts_bookings"`
	Delivery        bool     `json:"delivery"`
	Takeout         bool     `json:"takeout"`
	ClosureStatus   string   `json:"closure_status,omitempty"`
	UpdatedDate     string   `json:"updated_date,omitempty"` // YYYY-MM-DD
}
