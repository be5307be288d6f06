package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// UserAgent is sent with every provider request.
var UserAgent = "newsrelay/dev"

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

// requester issues GET requests for one provider, honouring its rate limit.
type requester struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
}

func newRequester(provider string, client *http.Client, ratePerMinute int) *requester {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	r := &requester{provider: provider, client: client}
	if ratePerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), 1)
	}
	return r
}

// getJSON performs the request and decodes a 2xx JSON body into out.
func (r *requester) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, err := r.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return sourceErr(r.provider, 0, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// get performs the request and returns the response for a 2xx status. The
// caller closes the body.
func (r *requester) get(ctx context.Context, rawURL string, header http.Header) (*http.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, sourceErr(r.provider, 0, fmt.Errorf("waiting for rate limit: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, sourceErr(r.provider, 0, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Prefer the context error so callers can detect timeouts.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, sourceErr(r.provider, 0, ctxErr)
		}
		return nil, sourceErr(r.provider, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = "empty body"
		}
		return nil, sourceErr(r.provider, resp.StatusCode, errors.New(msg))
	}
	return resp, nil
}

// parseTime tries each layout in turn and returns the zero time when none match.
func parseTime(value string, layouts ...string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func clampLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}
