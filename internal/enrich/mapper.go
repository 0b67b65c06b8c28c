package enrich

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/internal/price"
	"github.com/sells-group/maps-enrich/pkg/serpapi"
)

// MapResult converts a search listing into a Place stamped with now's date.
func MapResult(r *serpapi.LocalResult, now time.Time) *model.Place {
	if r == nil {
		return nil
	}

	return &model.Place{
		PlaceID:         r.PlaceID,
		DataID:          r.DataID,
		Title:           r.Title,
		Address:         r.Address,
		Type:            r.Type.String(),
		Rating:          r.Rating,
		Reviews:         r.Reviews,
		Price:           price.Normalize(r.Price).String(),
		PriceRaw:        rawPrice(r.Price),
		ThumbnailURL:    r.Thumbnail,
		WebsiteURL:      r.Website,
		AcceptsBookings: acceptsBookings(r),
		Delivery:        r.ServiceOptions.Has("delivery"),
		Takeout:         r.ServiceOptions.Has("takeout", "pickup"),
		ClosureStatus:   closureStatus(r.OperatingStatus),
		UpdatedDate:     now.Format(time.DateOnly),
	}
}

func acceptsBookings(r *serpapi.LocalResult) bool {
	if r.ReserveATable != "" {
		return true
	}
	for _, ext := range r.Extensions {
		s := strings.ToLower(string(ext))
		if strings.Contains(s, "booking") || strings.Contains(s, "reserve") {
			return true
		}
	}
	return false
}

func closureStatus(operating string) string {
	switch operating {
	case "PERMANENTLY_CLOSED":
		return model.ClosurePermanent
	case "TEMPORARILY_CLOSED":
		return model.ClosureTemporary
	default:
		return ""
	}
}

func rawPrice(v any) string {
	switch p := v.(type) {
	case nil:
		return ""
	case string:
		return p
	default:
		return fmt.Sprint(p)
	}
}
