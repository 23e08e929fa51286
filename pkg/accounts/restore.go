package accounts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Restorer triggers the remote data restore pipeline for a user after a
// successful login. Calls are best-effort; the engine never fails a login
// over a restore error.
type Restorer interface {
	Restore(ctx context.Context, userID string) error
}

// NopRestorer does nothing
type NopRestorer struct{}

// Restore is a no-op
func (NopRestorer) Restore(ctx context.Context, userID string) error { return nil }

// HTTPRestorer kicks the restore service over HTTP
type HTTPRestorer struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewHTTPRestorer creates a restorer posting to baseURL/restore/{userID}
func NewHTTPRestorer(baseURL, authToken string, timeout time.Duration) (*HTTPRestorer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRestorer{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Restore posts the restore trigger
func (r *HTTPRestorer) Restore(ctx context.Context, userID string) error {
	endpoint := fmt.Sprintf("%s/restore/%s", r.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build restore request: %w", err)
	}
	if r.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.authToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("restore service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("restore service returned %d", resp.StatusCode)
	}
	return nil
}
