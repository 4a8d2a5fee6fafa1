package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/models"
)

const (
	// maxResponseBytes caps how much of a reply body is read
	maxResponseBytes = 4 << 20
	// maxDiagnosticBytes caps how much body is kept on errors
	maxDiagnosticBytes = 4096
)

// Query posts text to the /query endpoint and returns the decoded reply.
// The reply is accepted regardless of HTTP status as long as it carries
// response_message.
func (c *Client) Query(ctx context.Context, text string) (*models.QueryResponse, error) {
	if text == "" {
		return nil, apierrors.ErrEmptyInput
	}

	if c.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.Endpoint()

	payload, err := json.Marshal(models.QueryRequest{Query: text})
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, c.transportError(ctx, endpoint, err)
	}
	if len(body) > maxResponseBytes {
		return nil, &apierrors.ParseError{
			Message: fmt.Sprintf("response exceeds %d MiB", maxResponseBytes>>20),
			Body:    truncate(body, maxDiagnosticBytes),
		}
	}

	c.log.Debug().
		Str("endpoint", endpoint).
		Int("request_bytes", len(payload)).
		Int("response_bytes", len(body)).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("query")

	return parseQueryResponse(body, resp.StatusCode, endpoint)
}

// transportError classifies a failed round trip as timeout or network error
func (c *Client) transportError(ctx context.Context, endpoint string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		msg := "query abandoned"
		if ctxErr == context.DeadlineExceeded {
			msg = fmt.Sprintf("no reply within %s", c.timeout)
		}
		return &apierrors.TimeoutError{Message: msg, Cause: ctxErr}
	}
	return apierrors.NewNetworkErrorWithEndpoint("query", endpoint, err)
}

// parseQueryResponse extracts response_message from a reply body
func parseQueryResponse(body []byte, statusCode int, endpoint string) (*models.QueryResponse, error) {
	diag := truncate(body, maxDiagnosticBytes)

	if !gjson.ValidBytes(body) {
		return nil, &apierrors.ParseError{Message: "response is not valid JSON", Body: diag}
	}

	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return nil, &apierrors.ParseError{Message: "response is not a JSON object", Body: diag}
	}

	msg := result.Get(models.FieldResponseMessage)
	if !msg.Exists() || msg.Type == gjson.Null || msg.IsObject() || msg.IsArray() {
		if errField := result.Get(models.FieldError); errField.Exists() {
			return nil, apierrors.NewAPIErrorWithBody(statusCode, endpoint, errField.String(), diag)
		}
		return nil, &apierrors.ParseError{
			Message: "field not found",
			Path:    models.FieldResponseMessage,
			Body:    diag,
		}
	}

	out := &models.QueryResponse{
		ResponseMessage: msg.String(),
		StatusCode:      statusCode,
		Raw:             body,
	}

	if jobs := result.Get(models.FieldRetrievedJobs); jobs.IsArray() {
		out.Matches = int(result.Get(models.FieldRetrievedJobs + ".#").Int())
	} else if trending := result.Get(models.FieldTrending); trending.IsArray() {
		out.Matches = int(result.Get(models.FieldTrending + ".#").Int())
	}

	return out, nil
}

// truncate returns at most n bytes of b as a string
func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
