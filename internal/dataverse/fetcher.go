package dataverse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var (
	errRequest = errors.New("dataverse: request failed")
	errDecode  = errors.New("dataverse: decode failed")
)

// StatusError is returned when the API answers with anything but 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dataverse: received status %d", e.Code)
}

// Client reads ticket records from a single Web API collection URL.
type Client struct {
	URL        string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// NewClient returns a Client for url. A zero timeout leaves the http.Client
// without one.
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// FetchTickets issues one GET with the bearer token and returns the records
// under "value". On a non-200 answer it logs the status and body and returns
// an empty slice together with a *StatusError.
func (c *Client) FetchTickets(ctx context.Context, token string) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return []Record{}, fmt.Errorf("%w: %w", errRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return []Record{}, fmt.Errorf("%w: %w", errRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []Record{}, fmt.Errorf("%w: read body: %w", errRequest, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Error("ticket source responded with non-200 status",
			zap.Int("code", resp.StatusCode), zap.String("body", string(body)))
		return []Record{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	records, next, err := ParseRecords(body)
	if err != nil {
		return []Record{}, fmt.Errorf("%w: %w", errDecode, err)
	}
	if next != "" {
		c.Logger.Warn("ticket source returned more pages; only the first page is synced",
			zap.String("nextLink", next))
	}
	c.Logger.Debug("fetched tickets", zap.Int("count", len(records)))
	return records, nil
}

// IsDecodeError reports whether err came from an unparseable 200 body.
func IsDecodeError(err error) bool {
	return errors.Is(err, errDecode)
}
