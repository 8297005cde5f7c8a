package enrich

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps provider response bodies.
const maxResponseBytes = 4 << 20

// StatusError is returned for unexpected provider HTTP statuses.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.Code, e.Body)
}

// DoJSON waits for limiter, sends req and decodes a JSON body into out.
// 404 maps to ErrNotFound.
func DoJSON(client *http.Client, limiter *rate.Limiter, provider string, req *http.Request, out any) error {
	if limiter != nil {
		if err := limiter.Wait(req.Context()); err != nil {
			return fmt.Errorf("%s rate limit wait: %w", provider, err)
		}
	}

	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s read response: %w", provider, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &StatusError{Provider: provider, Code: resp.StatusCode, Body: snippet}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode response: %w", provider, err)
	}
	return nil
}
