// Package metrics is the backend-agnostic metrics facade.
//
// Core code records through the package-level functions; a concrete backend
// (see metrics/datadog) is installed once at startup with SetBackend. Until
// then every call goes to a no-op backend, so libraries and tests never need
// to care whether metrics are enabled.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names. Backends switch on these; unknown names are ignored.
const (
	ParseTotal           = "pageparser_parse_total"
	ParseDurationSeconds = "pageparser_parse_duration_seconds"
	FieldsTotal          = "pageparser_fields_total"
	HTTPRequestsTotal    = "pageparser_http_requests_total"
	HTTPErrorsTotal      = "pageparser_http_errors_total"
	HTTPDurationSeconds  = "pageparser_http_request_duration_seconds"
	SinkTotal            = "pageparser_sink_total"
)

// Labels are the dimensions attached to one observation.
type Labels map[string]string

// Backend receives observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter on the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the installed backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// ObserveHTTP records one outbound request to target (e.g. "fetch", "sink").
// status is 0 when the request failed before a response arrived.
func ObserveHTTP(target string, status int, d time.Duration, err error) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	labels := Labels{"target": target, "status": code}

	IncCounter(HTTPRequestsTotal, 1, labels)
	ObserveHistogram(HTTPDurationSeconds, d.Seconds(), labels)
	if err != nil || status >= 400 {
		IncCounter(HTTPErrorsTotal, 1, labels)
	}
}
