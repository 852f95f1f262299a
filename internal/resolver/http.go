package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mediagrab/api/internal/model"
)

// getJSON fetches a platform metadata document and decodes it into out.
// Every failure is reported as ExtractionFailed.
func getJSON(ctx context.Context, httpClient *http.Client, op, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.NewError(model.KindExtractionFailed, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return model.NewError(model.KindExtractionFailed, op, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.NewError(model.KindExtractionFailed, op, &model.HTTPError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewError(model.KindExtractionFailed, op, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}
