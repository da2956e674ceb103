package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/config"
	"github.com/lingyjava/page-parser/internal/fetch"
	"github.com/lingyjava/page-parser/internal/logging"
	"github.com/lingyjava/page-parser/internal/metrics"
	"github.com/lingyjava/page-parser/internal/metrics/datadog"
	"github.com/lingyjava/page-parser/internal/pageparser"
	"github.com/lingyjava/page-parser/internal/sink"
	"github.com/lingyjava/page-parser/internal/storage"
	_ "github.com/lingyjava/page-parser/internal/storage/all"
)

// globalFlags are the persistent flags; they win over env and file.
type globalFlags struct {
	configPath string
	storeKind  string
	storeDSN   string
	logLevel   string
}

// app holds what commands share: I/O, the resolved configuration and the
// lazily opened resources. close releases everything that was opened.
type app struct {
	ctx        context.Context
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	httpClient *http.Client
	getenv     func(string) string

	flags globalFlags

	cfg      config.App
	logger   *zap.Logger
	closeLog func() error
	store    *storage.Store
	dd       *datadog.Backend
}

// init resolves the configuration and builds the logger and metrics
// backend. Configuration problems are usage errors.
func (a *app) init() error {
	path := a.flags.configPath
	if path == "" {
		path = strings.TrimSpace(a.getenv(config.EnvPrefix + "CONFIG"))
	}
	cfg, err := config.Load(path, a.getenv)
	if err != nil {
		return usageErr(err)
	}
	if a.flags.storeKind != "" {
		cfg.Store.Kind = a.flags.storeKind
	}
	if a.flags.storeDSN != "" {
		cfg.Store.DSN = a.flags.storeDSN
	}
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return usageErr(err)
	}
	a.cfg = cfg

	logger, closeLog, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File}, a.stderr)
	if err != nil {
		return usageErr(err)
	}
	a.logger, a.closeLog = logger, closeLog

	if cfg.Metrics.Backend == "datadog" {
		b, err := datadog.NewBackend(a.ctx, datadog.Options{
			JobName:    "page-parser",
			Tags:       cfg.Metrics.Tags,
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		if err != nil {
			return err
		}
		a.dd = b
		metrics.SetBackend(b)
	}
	return nil
}

func (a *app) close() {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.dd != nil {
		errs = append(errs, a.dd.Close())
		metrics.SetBackend(nil)
	}
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Warn("shutdown", zap.Error(err))
	}
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// openStore opens the configured store once.
func (a *app) openStore() (*storage.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.Open(a.ctx, storage.Config{Kind: a.cfg.Store.Kind, DSN: a.cfg.Store.DSN})
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) parser() (*pageparser.Parser, error) {
	s, err := a.openStore()
	if err != nil {
		return nil, err
	}
	return pageparser.New(s, pageparser.WithLogger(a.logger))
}

func (a *app) loader() *fetch.Loader {
	return fetch.NewLoader(a.httpClient, a.cfg.Fetch.Timeout,
		fetch.WithUserAgent(a.cfg.Fetch.UserAgent),
		fetch.WithLogger(a.logger),
	)
}

func (a *app) browser() *fetch.Browser {
	return &fetch.Browser{
		Timeout:   a.cfg.Fetch.Timeout,
		Wait:      a.cfg.Fetch.Wait,
		UserAgent: a.cfg.Fetch.UserAgent,
		Logger:    a.logger,
	}
}

func (a *app) httpSink() *sink.HTTPSink {
	return &sink.HTTPSink{Endpoint: a.cfg.Sink.Endpoint, Client: a.httpClient, Logger: a.logger}
}

func (a *app) existenceChecker() *sink.ExistenceChecker {
	return &sink.ExistenceChecker{BaseURL: a.cfg.Sink.ExistsURL, Client: a.httpClient}
}
