package serpapi

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Response is the subset of a google_maps search response the enricher uses.
type Response struct {
	Error          string         `json:"error,omitempty"`
	SearchMetadata SearchMetadata `json:"search_metadata"`
	LocalResults   []LocalResult  `json:"local_results,omitempty"`
	PlaceResults   *LocalResult   `json:"place_results,omitempty"`
}

// SearchMetadata identifies the search on SerpAPI's side.
type SearchMetadata struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Best returns the top local result, falling back to place_results, or nil.
func (r *Response) Best() *LocalResult {
	if r == nil {
		return nil
	}
	if len(r.LocalResults) > 0 {
		return &r.LocalResults[0]
	}
	return r.PlaceResults
}

// LocalResult is one Google Maps listing.
type LocalResult struct {
	Position        int               `json:"position,omitempty"`
	Title           string            `json:"title"`
	PlaceID         string            `json:"place_id"`
	DataID          string            `json:"data_id"`
	Address         string            `json:"address"`
	Type            Categories        `json:"type"`
	Rating          *float64          `json:"rating,omitempty"`
	Reviews         *int              `json:"reviews,omitempty"`
	Price           any               `json:"price,omitempty"`
	Thumbnail       string            `json:"thumbnail,omitempty"`
	Website         string            `json:"website,omitempty"`
	ReserveATable   string            `json:"reserve_a_table,omitempty"`
	Extensions      []json.RawMessage `json:"extensions,omitempty"`
	ServiceOptions  ServiceOptions    `json:"service_options"`
	OperatingStatus string            `json:"operating_status,omitempty"`
}

// Categories holds the listing type, which SerpAPI returns either as a single
// string or as a list of strings.
type Categories []string

// UnmarshalJSON accepts a string, a list of strings, or null.
func (c *Categories) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = nil
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "serpapi: decode type")
		}
		if s == "" {
			*c = nil
		} else {
			*c = Categories{s}
		}
		return nil
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return eris.Wrap(err, "serpapi: decode type list")
		}
		*c = list
		return nil
	}
}

// String joins the categories with ", ".
func (c Categories) String() string {
	return strings.Join(c, ", ")
}

// OptionsKind tags which shape a ServiceOptions value arrived in.
type OptionsKind int

const (
	// OptionsAbsent means the field was missing or of an unknown shape.
	OptionsAbsent OptionsKind = iota
	// OptionsMapping is an object of option name to bool.
	OptionsMapping
	// OptionsLabelList is a list of free-text labels such as "Dine-in".
	OptionsLabelList
)

// ServiceOptions is a tagged variant over the two shapes of service_options.
type ServiceOptions struct {
	Kind    OptionsKind
	Mapping map[string]bool
	Labels  map[string]struct{} // lower-cased
}

// UnmarshalJSON sets Kind from the JSON shape. Unknown shapes decode to
// OptionsAbsent rather than failing the whole response.
func (o *ServiceOptions) UnmarshalJSON(data []byte) error {
	*o = ServiceOptions{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '{':
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			return eris.Wrap(err, "serpapi: decode service_options")
		}
		o.Kind = OptionsMapping
		o.Mapping = make(map[string]bool, len(raw))
		for k, v := range raw {
			b, _ := v.(bool)
			o.Mapping[strings.ToLower(k)] = b
		}
	case '[':
		var raw []any
		if err := json.Unmarshal(data, &raw); err != nil {
			return eris.Wrap(err, "serpapi: decode service_options")
		}
		o.Kind = OptionsLabelList
		o.Labels = make(map[string]struct{}, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				o.Labels[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
			}
		}
	}
	return nil
}

// Has reports whether any of the named options is offered.
func (o ServiceOptions) Has(names ...string) bool {
	switch o.Kind {
	case OptionsMapping:
		for _, n := range names {
			if o.Mapping[n] {
				return true
			}
		}
	case OptionsLabelList:
		for _, n := range names {
			if _, ok := o.Labels[n]; ok {
				return true
			}
		}
	}
	return false
}
