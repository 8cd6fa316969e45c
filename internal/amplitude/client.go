// Package amplitude talks to the Amplitude Export API.
package amplitude

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/j-veylop/amplitude-export/internal/logger"
	"github.com/j-veylop/amplitude-export/internal/models"
)

// DefaultEndpoint is the production export endpoint.
const DefaultEndpoint = "https://amplitude.com/api/2/export"

// ErrMissingCredentials is returned before any request when the key pair is incomplete.
var ErrMissingCredentials = errors.New("api key and secret key are required")

// StatusError reports a non-2xx answer from the export endpoint.
// The response body has already been written when it is returned.
type StatusError struct {
	Status     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("export request failed (status %d): %s", e.StatusCode, e.Status)
}

// Client issues export requests for a single project.
type Client struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	creds      models.Credentials
}

// NewClient creates a client. A nil httpClient means http.DefaultClient and an
// empty endpoint means DefaultEndpoint.
func NewClient(httpClient *http.Client, endpoint string, creds models.Credentials) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		userAgent:  "amplitude-export",
		creds:      creds,
	}
}

// SetUserAgent overrides the User-Agent header sent with each request.
func (c *Client) SetUserAgent(ua string) {
	if ua != "" {
		c.userAgent = ua
	}
}

// ExportURL returns the request URL for r. Parameters are always start then end.
func (c *Client) ExportURL(r models.TimeRange) string {
	return c.endpoint + "?start=" + r.StartParam() + "&end=" + r.EndParam()
}

// Check reports whether an export of r could be attempted: the range must be
// valid and both credentials set. It does no I/O.
func (c *Client) Check(r models.TimeRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if !c.creds.Complete() {
		return ErrMissingCredentials
	}
	return nil
}

// Export performs one GET for r and copies the response body to w unchanged.
// The body is copied for every status; a non-2xx status is reported as a
// *StatusError alongside the filled result.
func (c *Client) Export(ctx context.Context, r models.TimeRange, w io.Writer) (*models.ExportResult, error) {
	if err := c.Check(r); err != nil {
		return nil, err
	}

	result := &models.ExportResult{
		RequestedAt: time.Now(),
		URL:         c.ExportURL(r),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, result.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create export request: %w", err)
	}
	req.SetBasicAuth(c.creds.APIKey, c.creds.SecretKey)
	req.Header.Set("User-Agent", c.userAgent)

	logger.Debug("requesting export", "url", result.URL, "hours", r.Hours())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	result.Status = resp.Status
	result.StatusCode = resp.StatusCode

	n, err := io.Copy(w, resp.Body)
	result.Bytes = n
	result.Duration = time.Since(result.RequestedAt)
	if err != nil {
		return result, fmt.Errorf("failed to read export response: %w", err)
	}

	if !result.OK() {
		return result, &StatusError{Status: resp.Status, StatusCode: resp.StatusCode}
	}
	return result, nil
}
