package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lingyjava/page-parser/internal/metrics"
)

// ErrNoExistsURL is returned when no existence-check endpoint is configured.
var ErrNoExistsURL = errors.New("existence check url is not configured")

// ExistenceChecker asks an endpoint whether a page was already collected.
//
// The request is GET <BaseURL>?url=<page URL without query string>. The
// response is {"code": <int>, "data": <bool>}; the page exists when code is
// 200 and data is true.
type ExistenceChecker struct {
	BaseURL string
	Client  *http.Client
}

type existsResponse struct {
	Code int  `json:"code"`
	Data bool `json:"data"`
}

// StripQuery drops everything from the first '?' on.
func StripQuery(pageURL string) string {
	before, _, _ := strings.Cut(pageURL, "?")
	return before
}

// RequestURL builds the check URL for pageURL.
func (c *ExistenceChecker) RequestURL(pageURL string) (string, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return "", ErrNoExistsURL
	}
	u, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return "", fmt.Errorf("parse exists url: %w", err)
	}
	q := u.Query()
	q.Set("url", StripQuery(pageURL))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *ExistenceChecker) Exists(ctx context.Context, pageURL string) (bool, error) {
	reqURL, err := c.RequestURL(pageURL)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		metrics.ObserveHTTP("exists", 0, time.Since(start), err)
		return false, fmt.Errorf("exists check: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveHTTP("exists", resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out existsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode exists response: %w", err)
	}
	return out.Code == 200 && out.Data, nil
}
