// Package portal talks to the invoicing platforms: Chorus Pro (public sector),
// Pennylane and SAGE.
package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/facture-electronique/internal/domain"
)

// DefaultTimeout bounds every portal call that has no deadline of its own.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 2048

// HTTPStatusError is a non-2xx answer from a portal.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// jsonClient posts JSON documents to one base URL.
type jsonClient struct {
	name    string
	baseURL string
	http    *http.Client
	headers func(*http.Request)
}

// post sends body as JSON to path and decodes the answer into out (when non-nil).
// Transport and status failures are *domain.ExternalError.
func (c *jsonClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode %s: %w", c.name, path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	if c.headers != nil {
		c.headers(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.ExternalError{Collaborator: c.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.ExternalError{
			Collaborator: c.name,
			Err:          &HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))},
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ExternalError{Collaborator: c.name, Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}

func httpClientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: DefaultTimeout}
}
