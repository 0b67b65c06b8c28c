package reconcile

import (
	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/internal/price"
)

// maxURLLen is the length of the Salesforce URL fields.
const maxURLLen = 255

// Payload maps a staged place onto Account fields. Empty values are dropped so
// existing Salesforce data is never blanked.
func Payload(p *model.Place) map[string]any {
	if p == nil {
		return nil
	}

	fields := map[string]any{
		"HasGoogleAcceptBookingsExtension__c": p.AcceptsBookings,
		"HasGoogleDeliveryExtension__c":       p.Delivery,
		"HasGoogleTakeoutExtension__c":        p.Takeout,
	}
	setString := func(name, v string) {
		if v != "" {
			fields[name] = v
		}
	}

	setString("Google_Place_ID__c", p.PlaceID)
	setString("Google_Data_ID__c", p.DataID)
	setString("Google_Type__c", p.Type)
	setString("Google_Price__c", price.NormalizeString(p.Price))
	setString("Google_Updated_Date__c", p.UpdatedDate)
	setString("Google_Thumbnail_URL__c", truncate(p.ThumbnailURL, maxURLLen))
	setString("Google_URL__c", truncate(p.WebsiteURL, maxURLLen))
	setString("Prospection_Status__c", p.ClosureStatus)

	if p.Rating != nil {
		fields["Google_Rating__c"] = *p.Rating
	}
	if p.Reviews != nil {
		fields["Google_Reviews__c"] = *p.Reviews
	}
	return fields
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
