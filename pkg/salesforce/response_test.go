package salesforce

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "ok", status: 200, body: `{}`},
		{name: "no content", status: 204},
		{
			name:    "error array",
			status:  400,
			body:    `[{"message":"entity is locked","errorCode":"ENTITY_IS_LOCKED"}]`,
			wantErr: "status 400: ENTITY_IS_LOCKED: entity is locked",
		},
		{
			name:    "error with fields",
			status:  400,
			body:    `[{"message":"bad value","errorCode":"INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST","fields":["Google_Price__c"]}]`,
			wantErr: "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST: bad value [Google_Price__c]",
		},
		{name: "plain body", status: 503, body: "Service Unavailable\n", wantErr: "status 503: Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkResponse(response(tt.status, tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
