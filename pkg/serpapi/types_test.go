package serpapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Categories
	}{
		{"string", `{"type": "Pizza restaurant"}`, Categories{"Pizza restaurant"}},
		{"list", `{"type": ["Bar", "Tapas bar"]}`, Categories{"Bar", "Tapas bar"}},
		{"null", `{"type": null}`, nil},
		{"empty string", `{"type": ""}`, nil},
		{"absent", `{}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r LocalResult
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			assert.Equal(t, tt.want, r.Type)
		})
	}
}

func TestServiceOptions_Unmarshal(t *testing.T) {
	t.Parallel()

	var r LocalResult
	require.NoError(t, json.Unmarshal([]byte(`{"service_options": ["Dine-in", "Pickup", " Delivery "]}`), &r))
	assert.Equal(t, OptionsLabelList, r.ServiceOptions.Kind)
	assert.True(t, r.ServiceOptions.Has("delivery"))
	assert.True(t, r.ServiceOptions.Has("takeout", "pickup"))
	assert.False(t, r.ServiceOptions.Has("takeout"))

	r = LocalResult{}
	require.NoError(t, json.Unmarshal([]byte(`{"service_options": {"Delivery": true, "takeout": "yes"}}`), &r))
	assert.Equal(t, OptionsMapping, r.ServiceOptions.Kind)
	assert.True(t, r.ServiceOptions.Has("delivery"))
	assert.False(t, r.ServiceOptions.Has("takeout"))

	r = LocalResult{}
	require.NoError(t, json.Unmarshal([]byte(`{"service_options": "dine-in"}`), &r))
	assert.Equal(t, OptionsAbsent, r.ServiceOptions.Kind)
	assert.False(t, r.ServiceOptions.Has("delivery"))
}

func TestResponseBest_Nil(t *testing.T) {
	t.Parallel()

	var r *Response
	assert.Nil(t, r.Best())
	assert.Nil(t, (&Response{}).Best())
}
