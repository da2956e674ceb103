// Package config holds the application configuration: defaults, then an
// optional YAML file, then PAGEPARSER_* environment overrides. Command-line
// flags are applied last by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lingyjava/page-parser/internal/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGEPARSER_"

// App is the complete application configuration.
type App struct {
	Store   StoreConfig   `yaml:"store"`
	Sink    SinkConfig    `yaml:"sink"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Parse   ParseConfig   `yaml:"parse"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Serve   ServeConfig   `yaml:"serve"`
}

// StoreConfig selects the Config Store backend.
type StoreConfig struct {
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
}

// SinkConfig configures where results go.
type SinkConfig struct {
	Endpoint  string `yaml:"endpoint"`
	ExistsURL string `yaml:"exists_url"`
	OutputDir string `yaml:"output_dir"`
}

// FetchConfig configures document loading.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	Browser   bool          `yaml:"browser"`
	Wait      time.Duration `yaml:"wait"`
}

// ParseConfig configures the request guard of the local API.
type ParseConfig struct {
	MinInterval time.Duration `yaml:"min_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig selects the metrics backend ("none" or "datadog").
type MetricsConfig struct {
	Backend    string        `yaml:"backend"`
	Tags       []string      `yaml:"tags"`
	FlushEvery time.Duration `yaml:"flush_every"`
}

type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() App {
	return App{
		Store:   StoreConfig{Kind: "sqlite", DSN: "pageparser.db"},
		Sink:    SinkConfig{Endpoint: "http://localhost:8080/newshub/api/add", OutputDir: "."},
		Fetch:   FetchConfig{Timeout: 20 * time.Second, UserAgent: "page-parser/1.0"},
		Parse:   ParseConfig{MinInterval: 3 * time.Second},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Backend: "none", FlushEvery: time.Minute},
		Serve:   ServeConfig{Addr: "127.0.0.1:8765"},
	}
}

// Load returns defaults overlaid with the YAML file at path (if path is not
// empty) and then with the environment.
func Load(path string, getenv func(string) string) (App, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return App{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return App{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return App{}, err
	}
	return cfg, nil
}

// decodeYAML rejects unknown keys so typos do not silently fall back to
// defaults.
func decodeYAML(data []byte, cfg *App) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// ApplyEnv overlays PAGEPARSER_* variables. Unset or empty variables are
// ignored.
func (c *App) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(EnvPrefix + key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("STORE_KIND", &c.Store.Kind)
	str("STORE_DSN", &c.Store.DSN)
	str("SINK_ENDPOINT", &c.Sink.Endpoint)
	str("SINK_EXISTS_URL", &c.Sink.ExistsURL)
	str("SINK_OUTPUT_DIR", &c.Sink.OutputDir)
	dur("FETCH_TIMEOUT", &c.Fetch.Timeout)
	str("FETCH_USER_AGENT", &c.Fetch.UserAgent)
	boolean("FETCH_BROWSER", &c.Fetch.Browser)
	dur("FETCH_WAIT", &c.Fetch.Wait)
	dur("PARSE_MIN_INTERVAL", &c.Parse.MinInterval)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("METRICS_BACKEND", &c.Metrics.Backend)
	dur("METRICS_FLUSH_EVERY", &c.Metrics.FlushEvery)
	str("SERVE_ADDR", &c.Serve.Addr)

	if v := strings.TrimSpace(getenv(EnvPrefix + "METRICS_TAGS")); v != "" {
		c.Metrics.Tags = splitList(v)
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every problem joined into one error.
func (c App) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Store.Kind) == "" {
		errs = append(errs, errors.New("store.kind is required"))
	}
	if c.Store.Kind != "memory" && strings.TrimSpace(c.Store.DSN) == "" {
		errs = append(errs, fmt.Errorf("store.dsn is required for store.kind=%s", c.Store.Kind))
	}
	if err := checkURL("sink.endpoint", c.Sink.Endpoint); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("sink.exists_url", c.Sink.ExistsURL); err != nil {
		errs = append(errs, err)
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, errors.New("fetch.timeout must be >= 0"))
	}
	if c.Fetch.Wait < 0 {
		errs = append(errs, errors.New("fetch.wait must be >= 0"))
	}
	if c.Parse.MinInterval < 0 {
		errs = append(errs, errors.New("parse.min_interval must be >= 0"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Metrics.Backend {
	case "", "none", "datadog":
	default:
		errs = append(errs, fmt.Errorf("metrics.backend must be none or datadog, got %q", c.Metrics.Backend))
	}
	if strings.TrimSpace(c.Serve.Addr) == "" {
		errs = append(errs, errors.New("serve.addr is required"))
	}
	return errors.Join(errs...)
}

// checkURL accepts an empty value or an absolute http(s) URL.
func checkURL(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", key, raw)
	}
	return nil
}
