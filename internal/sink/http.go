package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/extracthtml"
	"github.com/lingyjava/page-parser/internal/metrics"
)

// DefaultEndpoint receives results when no endpoint is configured.
const DefaultEndpoint = "http://localhost:8080/newshub/api/add"

// HTTPSink POSTs results as JSON.
type HTTPSink struct {
	Endpoint string
	Client   *http.Client
	Logger   *zap.Logger
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += " - " + e.Body
	}
	return msg
}

func (s *HTTPSink) endpoint() string {
	if strings.TrimSpace(s.Endpoint) == "" {
		return DefaultEndpoint
	}
	return strings.TrimSpace(s.Endpoint)
}

func (s *HTTPSink) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

// Send posts res, _meta included. A non-2xx response is a *StatusError.
func (s *HTTPSink) Send(ctx context.Context, res *extracthtml.Result) error {
	return s.SendRaw(ctx, res)
}

// SendRaw posts any JSON-encodable value, e.g. a result read back from a
// saved file.
func (s *HTTPSink) SendRaw(ctx context.Context, v any) error {
	var buf bytes.Buffer
	if err := Encode(&buf, v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	endpoint := s.endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client().Do(req)
	if err != nil {
		metrics.ObserveHTTP("sink", 0, time.Since(start), err)
		metrics.IncCounter(metrics.SinkTotal, 1, metrics.Labels{"kind": "http", "status": "error"})
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveHTTP("sink", resp.StatusCode, time.Since(start), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.IncCounter(metrics.SinkTotal, 1, metrics.Labels{"kind": "http", "status": "error"})
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	metrics.IncCounter(metrics.SinkTotal, 1, metrics.Labels{"kind": "http", "status": "ok"})
	if s.Logger != nil {
		s.Logger.Info("result sent", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
	}
	return nil
}
