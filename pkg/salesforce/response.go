package salesforce

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
)

// apiErrorItem is one entry of the error array the REST API returns on 4xx/5xx.
type apiErrorItem struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return eris.Wrap(err, "decode json")
	}
	return nil
}

// checkResponse returns nil for 2xx responses. Otherwise it folds the
// Salesforce error array, when present, into a single error.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var items []apiErrorItem
	if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
		return eris.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	msgs := make([]string, 0, len(items))
	for _, it := range items {
		msg := fmt.Sprintf("%s: %s", it.ErrorCode, it.Message)
		if len(it.Fields) > 0 {
			msg += " [" + strings.Join(it.Fields, ", ") + "]"
		}
		msgs = append(msgs, msg)
	}
	return eris.Errorf("status %d: %s", resp.StatusCode, strings.Join(msgs, "; "))
}
