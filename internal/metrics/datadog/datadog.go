// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Observations are buffered in memory and submitted on Flush. A background
// loop flushes every FlushEvery (default one minute) so a long-running
// `serve` produces a time series, and Close does one final flush so a
// one-shot `parse` still reports.
//
// Counters are submitted as Datadog COUNT series. Histograms are reduced
// locally to p50/p90/p95/p99/max/samples gauges.
//
// If the process is killed with SIGKILL/OOM, Close won't run and the
// current window is lost.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"github.com/lingyjava/page-parser/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "page-parser".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "team:news"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// seriesSpec maps an internal metric name to its Datadog name and the label
// keys that become tags, in tag order.
type seriesSpec struct {
	name   string
	labels []string
}

var counterSpecs = map[string]seriesSpec{
	metrics.ParseTotal:        {name: "pageparser.parse.total", labels: []string{"status"}},
	metrics.FieldsTotal:       {name: "pageparser.fields.total", labels: []string{"status"}},
	metrics.HTTPRequestsTotal: {name: "pageparser.http.requests.total", labels: []string{"target", "status"}},
	metrics.HTTPErrorsTotal:   {name: "pageparser.http.errors.total", labels: []string{"target", "status"}},
	metrics.SinkTotal:         {name: "pageparser.sink.total", labels: []string{"kind", "status"}},
}

var histogramSpecs = map[string]seriesSpec{
	metrics.ParseDurationSeconds: {name: "pageparser.parse.duration_seconds", labels: []string{"status"}},
	metrics.HTTPDurationSeconds:  {name: "pageparser.http.request_duration_seconds", labels: []string{"target", "status"}},
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu      sync.Mutex
	counts  map[string]float64
	samples map[string][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client. API
// credentials and site come from the standard DD_API_KEY / DD_SITE
// environment variables read by the client; network errors surface on Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "page-parser"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counts:     make(map[string]float64),
		samples:    make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Calling Close
// more than once only flushes.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown names and non-positive
// deltas are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	spec, ok := counterSpecs[name]
	if !ok {
		return
	}
	k := seriesKey(spec, labels)

	b.mu.Lock()
	b.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Unknown names and negative
// values are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	spec, ok := histogramSpecs[name]
	if !ok {
		return
	}
	k := seriesKey(spec, labels)

	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// seriesKey encodes the Datadog name and its tags as "name\x00tag\x00tag".
// Missing label values become "unknown".
func seriesKey(spec seriesSpec, labels metrics.Labels) string {
	parts := make([]string, 0, 1+len(spec.labels))
	parts = append(parts, spec.name)
	for _, l := range spec.labels {
		v := labels[l]
		if v == "" {
			v = "unknown"
		}
		parts = append(parts, l+":"+v)
	}
	return strings.Join(parts, "\x00")
}

func splitSeriesKey(k string) (name string, tags []string) {
	parts := strings.Split(k, "\x00")
	return parts[0], parts[1:]
}

type snapshot struct {
	counts  map[string]float64
	samples map[string][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.counts) == 0 && len(s.samples) == 0
}

// snapshotAndReset detaches the buffers. Must be called with no lock held.
func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{counts: b.counts, samples: b.samples}
	b.counts = make(map[string]float64)
	b.samples = make(map[string][]float64)
	return s
}

// Flush submits buffered metrics and resets the buffers, even when the
// submission fails. It returns nil without a request when nothing is
// buffered.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries is pure so the naming and tagging contract can be tested
// without a network. Output is sorted by series key.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counts)+6*len(s.samples))

	for _, k := range sortedKeys(s.counts) {
		v := s.counts[k]
		if v == 0 {
			continue
		}
		name, tags := splitSeriesKey(k)
		series = append(series, countSeries(name, v, withTags(b.baseTags, tags...), nowUnix))
	}

	for _, k := range sortedKeys(s.samples) {
		name, tags := splitSeriesKey(k)
		addPercentiles(&series, withTags(b.baseTags, tags...), name, s.samples[k], nowUnix)
	}
	return series
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for samples.
// It sorts a copy and does nothing for an empty set.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

// percentileNearestRank expects s sorted ascending.
func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
