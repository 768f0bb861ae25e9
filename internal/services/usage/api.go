// Package usage fetches quota usage from the remote service, caches the
// last result and polls it on an interval.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/j-veylop/glm-usage-tui/internal/logger"
	"github.com/j-veylop/glm-usage-tui/internal/models"
)

// Request headers carrying the credentials.
const (
	headerAuthorization = "authorization"
	headerOrganization  = "bigmodel-organization"
	headerProject       = "bigmodel-project"
)

// maxBodyLog caps how much of a response body is logged at debug level.
const maxBodyLog = 2048

// Client calls the usage endpoint.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates an API client. A nil httpClient gets one with timeout.
func NewClient(url string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient, url: url}
}

// FetchUsage retrieves the raw usage envelope for creds. Transport failures,
// non-2xx statuses and unparseable bodies are returned as *models.TransportError.
// Service-level error envelopes are returned as data.
func (c *Client) FetchUsage(ctx context.Context, creds models.Credentials) (*models.RawUsageResponse, error) {
	const op = "fetch usage"

	if !creds.Complete() {
		return nil, models.ErrIncompleteConfig
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set(headerAuthorization, creds.Token)
	req.Header.Set(headerOrganization, creds.Organization)
	req.Header.Set(headerProject, creds.Project)
	req.Header.Set("Accept", "application/json")

	logger.Debug("fetching usage", "url", c.url, "token", creds.MaskedToken(),
		"organization", creds.Organization, "project", creds.Project)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.TransportError{Op: op, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	logger.Debug("usage response", "status", resp.StatusCode, "body", truncate(body, maxBodyLog))

	if resp.StatusCode == http.StatusUnauthorized {
		logger.Warn("token expired or invalid")
		return nil, &models.TransportError{Op: op, StatusCode: resp.StatusCode, Body: "token expired or invalid"}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error("usage request failed", "status", resp.StatusCode, "body", truncate(body, maxBodyLog))
		return nil, &models.TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw models.RawUsageResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &models.TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if raw.Success == nil && raw.Data == nil && raw.Code == "" && raw.Message == "" && raw.Msg == "" {
		return nil, &models.TransportError{Op: op, Err: errors.New("response has neither data nor error")}
	}

	return &raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
