//go:build integration
// +build integration

package integration

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rossigee/irp-integration/pkg/types"
)

// JournalClient handles HTTP communication with the journal server
type JournalClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func (jc *JournalClient) get(path string, v any) (int, error) {
	req, err := http.NewRequest(http.MethodGet, jc.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	if jc.token != "" {
		req.Header.Set("Authorization", "Bearer "+jc.token)
	}

	resp, err := jc.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if v == nil || resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// ListSubmissions lists journalled submissions of kind
func (jc *JournalClient) ListSubmissions(kind string) (*types.SubmissionListResponse, int, error) {
	var out types.SubmissionListResponse
	code, err := jc.get("/api/v1/submissions?kind="+kind, &out)
	return &out, code, err
}

// Health reads the health endpoint
func (jc *JournalClient) Health() (*types.HealthResponse, int, error) {
	var out types.HealthResponse
	code, err := jc.get("/health", &out)
	return &out, code, err
}
