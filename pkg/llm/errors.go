package llm

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError carries the provider status and message of a failed request.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Message)
}

// parseAPIError extracts the error payload of a failed response. Providers
// return {"error":{"message":...}}; anything else falls back to the raw
// body.
func parseAPIError(provider string, resp *http.Response) *APIError {
	apiErr := &APIError{
		Provider: provider,
		Status:   resp.StatusCode,
		Message:  resp.Status,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		apiErr.Message = payload.Error.Message
	} else {
		apiErr.Message = string(body)
	}
	return apiErr
}
