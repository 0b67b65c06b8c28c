package enrich

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/maps-enrich/internal/model"
	"github.com/sells-group/maps-enrich/pkg/serpapi"
)

func decodeResult(t *testing.T, raw string) *serpapi.LocalResult {
	t.Helper()
	var r serpapi.LocalResult
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return &r
}

var mapNow = time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)

func TestMapResult_Full(t *testing.T) {
	r := decodeResult(t, `{
		"title": "Le Chat Noir",
		"place_id": "ChIJ123",
		"data_id": "0x47e6:0xabc",
		"address": "12 Rue Oberkampf, 75011 Paris",
		"type": ["French restaurant", "Bistro"],
		"rating": 4.6,
		"reviews": 812,
		"price": "€20–30",
		"thumbnail": "https://lh5.googleusercontent.com/p/abc",
		"website": "https://chatnoir.example",
		"reserve_a_table": "https://reserve.example",
		"service_options": {"dine_in": true, "delivery": false, "takeout": true},
		"operating_status": "TEMPORARILY_CLOSED"
	}`)

	p := MapResult(r, mapNow)
	require.NotNil(t, p)
	assert.Equal(t, "ChIJ123", p.PlaceID)
	assert.Equal(t, "0x47e6:0xabc", p.DataID)
	assert.Equal(t, "French restaurant, Bistro", p.Type)
	require.NotNil(t, p.Rating)
	assert.InDelta(t, 4.6, *p.Rating, 0.0001)
	require.NotNil(t, p.Reviews)
	assert.Equal(t, 812, *p.Reviews)
	assert.Equal(t, "$$", p.Price)
	assert.Equal(t, "€20–30", p.PriceRaw)
	assert.True(t, p.AcceptsBookings)
	assert.False(t, p.Delivery)
	assert.True(t, p.Takeout)
	assert.Equal(t, model.ClosureTemporary, p.ClosureStatus)
	assert.Equal(t, "2024-03-04", p.UpdatedDate)
}

func TestMapResult_LabelOptionsAndExtensions(t *testing.T) {
	r := decodeResult(t, `{
		"title": "Sushi Zen",
		"type": "Sushi restaurant",
		"price": 3,
		"extensions": [{"highlights": ["Online booking"]}],
		"service_options": ["Dine-in", "Pickup", "Delivery"],
		"operating_status": "PERMANENTLY_CLOSED"
	}`)

	p := MapResult(r, mapNow)
	assert.Equal(t, "Sushi restaurant", p.Type)
	assert.Equal(t, "$$$", p.Price)
	assert.Equal(t, "3", p.PriceRaw)
	assert.True(t, p.AcceptsBookings)
	assert.True(t, p.Delivery)
	assert.True(t, p.Takeout)
	assert.Equal(t, model.ClosurePermanent, p.ClosureStatus)
}

func TestMapResult_Sparse(t *testing.T) {
	p := MapResult(decodeResult(t, `{"title": "Cafe"}`), mapNow)
	assert.Nil(t, p.Rating)
	assert.Nil(t, p.Reviews)
	assert.Equal(t, "", p.Price)
	assert.Equal(t, "", p.Type)
	assert.False(t, p.AcceptsBookings)
	assert.False(t, p.Delivery)
	assert.Equal(t, "", p.ClosureStatus)

	assert.Nil(t, MapResult(nil, mapNow))
}
