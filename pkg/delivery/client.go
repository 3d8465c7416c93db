package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wasender/internal/retry"

	"github.com/sirupsen/logrus"
)

// Sender is the delivery surface the dispatch pipeline depends on.
type Sender interface {
	SendBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error)
}

// Client talks to the message delivery gateway over HTTP. Transient failures
// (network errors, 5xx) are retried with exponential backoff; client errors
// are returned immediately.
type Client struct {
	baseURL    string
	httpClient *http.Client
	backoff    *retry.Backoff
	logger     *logrus.Logger
}

func NewClient(baseURL string, timeout time.Duration, maxAttempts int, logger *logrus.Logger) *Client {
	cfg := retry.DefaultBackoffConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    retry.NewBackoff(cfg),
		logger:     logger,
	}
}

// SendBatch submits one batch for delivery. The returned response is valid
// only when the error is nil.
func (c *Client) SendBatch(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	var resp *BatchResponse

	err := c.backoff.RetryWithPredicate(ctx, func() error {
		var sendErr error
		resp, sendErr = c.sendOnce(ctx, req)
		return sendErr
	}, func(err error) bool {
		_, permanent := err.(*requestError)
		return !permanent
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) sendOnce(ctx context.Context, req *BatchRequest) (*BatchResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sendBatch", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send batch: %w", err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	var result BatchResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway error %d: %s", httpResp.StatusCode, result.Error)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, &requestError{status: httpResp.StatusCode, message: result.Error}
	}

	return &result, nil
}

// requestError marks a non-retryable gateway rejection.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("batch rejected with status %d: %s", e.status, e.message)
}
