package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/api"
	"github.com/lingyjava/page-parser/internal/pageparser"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local configuration and parse API",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			return a.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: serve.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	p, err := a.parser()
	if err != nil {
		return err
	}
	guard := pageparser.NewGuard(a.cfg.Parse.MinInterval)

	a.logger.Info("serve",
		zap.String("addr", addr),
		zap.String("store", a.cfg.Store.Kind),
		zap.Duration("min_interval", a.cfg.Parse.MinInterval),
	)
	return api.New(s, p, a.loader(), guard, a.logger).ListenAndServe(ctx, addr)
}

// version is set at build time with -ldflags "-X main.version=...".
var version = ""

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(a.stdout, "pageparser "+resolveVersion())
			return err
		},
	}
}

func resolveVersion() string {
	if version != "" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "devel"
}
