// Package sink delivers extraction results: to a JSON file, to an HTTP
// endpoint, and asks an endpoint whether a page was already collected.
//
// Every network call is a single attempt. Callers decide what to do with a
// failure.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lingyjava/page-parser/internal/extracthtml"
	"github.com/lingyjava/page-parser/internal/metrics"
)

// Encode writes v as 2-space indented JSON without HTML escaping.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FileSink saves results as <domain>_<unix millis>.json under Dir.
type FileSink struct {
	Dir string

	now func() time.Time
}

// FileName returns the file name for a result of domain saved at t.
func FileName(domain string, t time.Time) string {
	if domain == "" {
		domain = "page"
	}
	return domain + "_" + strconv.FormatInt(t.UnixMilli(), 10) + ".json"
}

// Save writes res and returns the file path.
func (s *FileSink) Save(res *extracthtml.Result) (string, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, res); err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	path := filepath.Join(dir, FileName(res.Domain(), now()))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		metrics.IncCounter(metrics.SinkTotal, 1, metrics.Labels{"kind": "file", "status": "error"})
		return "", err
	}
	metrics.IncCounter(metrics.SinkTotal, 1, metrics.Labels{"kind": "file", "status": "ok"})
	return path, nil
}
