// Package price maps the many shapes of a Google Maps price token onto the
// four-tier "$".."$$$$" scale used by the Salesforce picklist.
package price

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Tier is a price level from 1 to 4. The zero value means no opinion.
type Tier int

// None is the no-opinion tier.
const None Tier = 0

// String renders the tier as repeated "$", or "" for None.
func (t Tier) String() string {
	if t < 1 || t > 4 {
		return ""
	}
	return strings.Repeat("$", int(t))
}

// Valid reports whether t is one of the four tiers.
func (t Tier) Valid() bool {
	return t >= 1 && t <= 4
}

var (
	rangeRe  = regexp.MustCompile(`(\d+)\s*[-–—]\s*(\d+)`)
	numberRe = regexp.MustCompile(`\d+`)
)

// Normalize converts a raw price into a Tier. Accepted inputs are nil, Go
// numeric kinds, json.Number and strings; anything else is None.
//
// A magnitude between 1 and 4 is read as the tier itself, so a range such as
// "2-4" (mean 3) yields tier 3 even when it was a currency amount. Larger
// magnitudes are bucketed as amounts: <20, <30, <50, >=50.
func Normalize(raw any) Tier {
	var v float64
	switch p := raw.(type) {
	case nil:
		return None
	case string:
		return fromString(p)
	case json.Number:
		return fromString(p.String())
	case float64:
		v = p
	case float32:
		v = float64(p)
	case int:
		v = float64(p)
	case int32:
		v = float64(p)
	case int64:
		v = float64(p)
	case uint:
		v = float64(p)
	case uint32:
		v = float64(p)
	case uint64:
		v = float64(p)
	default:
		return None
	}
	if v == 0 {
		return None
	}
	return fromMagnitude(v)
}

// NormalizeString re-normalizes an already stored price string.
func NormalizeString(s string) string {
	return fromString(s).String()
}

func fromString(s string) Tier {
	if s == "" {
		return None
	}
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		lo, err1 := strconv.ParseFloat(m[1], 64)
		hi, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil {
			return fromMagnitude((lo + hi) / 2)
		}
	}
	if m := numberRe.FindString(s); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return fromMagnitude(v)
		}
	}
	if n := strings.Count(s, "$"); n >= 1 && n <= 4 {
		return Tier(n)
	}
	return None
}

func fromMagnitude(v float64) Tier {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return None
	case v >= 1 && v <= 4:
		return Tier(int(v))
	case v < 20:
		return 1
	case v < 30:
		return 2
	case v < 50:
		return 3
	default:
		return 4
	}
}
