package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lingyjava/page-parser/internal/extracthtml"
	"github.com/lingyjava/page-parser/internal/fetch"
	"github.com/lingyjava/page-parser/internal/pageparser"
	"github.com/lingyjava/page-parser/internal/sink"
)

// sourceFlags select where a page comes from: --url, --file or stdin.
type sourceFlags struct {
	url     string
	file    string
	baseURL string
	browser bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "url", "", "Fetch the page from URL instead of stdin")
	cmd.Flags().StringVar(&f.file, "file", "", "Read the page from an HTML file instead of stdin")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Page URL to record for --file/stdin input")
	cmd.Flags().BoolVar(&f.browser, "browser", false, "Render --url in headless Chrome before parsing (default: fetch.browser)")
}

func (a *app) loadPage(ctx context.Context, f sourceFlags) (*fetch.HTMLPage, error) {
	if f.url != "" && f.file != "" {
		return nil, usagef("--url and --file are mutually exclusive")
	}
	if f.url != "" && (f.browser || a.cfg.Fetch.Browser) {
		return a.browser().Load(ctx, f.url)
	}
	if f.browser {
		return nil, usagef("--browser requires --url")
	}

	page, err := a.loader().Load(ctx, fetch.Input{URL: f.url, Path: f.file, Stdin: a.stdin})
	if err != nil {
		return nil, err
	}
	if f.baseURL != "" && f.url == "" {
		page = fetch.NewPage(f.baseURL, page.Title(), page.HTML())
	}
	return page, nil
}

type parseFlags struct {
	source sourceFlags
	domain string
	dir    string
	outDir string
	save   bool
	send   bool
	check  bool
}

func newParseCmd(a *app) *cobra.Command {
	var f parseFlags
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse one page (or a directory of pages) with its domain's configuration",
		Long: "Parse one page with the configuration of its domain and print the outcome as JSON.\n" +
			"Exits 1 when the outcome is a failure.",
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.dir != "" {
				if f.source.url != "" || f.source.file != "" {
					return usagef("--dir cannot be combined with --url or --file")
				}
				return a.parseDir(cmd.Context(), f)
			}
			return a.parseOne(cmd.Context(), f)
		},
	}
	f.source.register(cmd)
	cmd.Flags().StringVar(&f.domain, "domain", "", "Configuration domain (default: hostname of the page URL)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "Parse every file in this directory and print a JSON array (requires --domain)")
	cmd.Flags().StringVar(&f.outDir, "out-dir", "", "Directory for --save (default: sink.output_dir)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Save the result as <domain>_<millis>.json")
	cmd.Flags().BoolVar(&f.send, "send", false, "POST the result to sink.endpoint")
	cmd.Flags().BoolVar(&f.check, "check", false, "Ask sink.exists_url whether the page was already collected; skips --send when it was")
	return cmd
}

func (a *app) parseOne(ctx context.Context, f parseFlags) error {
	if f.check && f.source.url == "" {
		return usagef("--check requires --url")
	}
	p, err := a.parser()
	if err != nil {
		return err
	}

	collected := false
	if f.check {
		collected, err = a.existenceChecker().Exists(ctx, f.source.url)
		if err != nil {
			return fmt.Errorf("exists check: %w", err)
		}
		if collected {
			a.logger.Warn("page already collected", zap.String("url", sink.StripQuery(f.source.url)))
			fmt.Fprintf(a.stderr, "page already collected: %s\n", sink.StripQuery(f.source.url))
		}
	}

	page, err := a.loadPage(ctx, f.source)
	if err != nil {
		return fmt.Errorf("load html: %w", err)
	}

	out := p.ParsePage(ctx, page, pageparser.WithDomain(f.domain))
	if err := sink.Encode(a.stdout, out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if !out.Success {
		return &exitError{code: 1}
	}

	if f.save {
		dir := f.outDir
		if dir == "" {
			dir = a.cfg.Sink.OutputDir
		}
		path, err := (&sink.FileSink{Dir: dir}).Save(out.Data)
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		a.logger.Info("result saved", zap.String("path", path))
		fmt.Fprintf(a.stderr, "saved %s\n", path)
	}

	if f.send && !collected {
		if err := a.httpSink().Send(ctx, out.Data); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		fmt.Fprintf(a.stderr, "sent to %s\n", a.cfg.Sink.Endpoint)
	}
	return nil
}

func (a *app) parseDir(ctx context.Context, f parseFlags) error {
	if f.domain == "" {
		return usagef("--dir requires --domain")
	}
	s, err := a.openStore()
	if err != nil {
		return err
	}
	site, err := s.Get(ctx, f.domain)
	if err != nil {
		return err
	}
	if site == nil {
		if err := sink.Encode(a.stdout, pageparser.Failed(pageparser.NoConfigMessage)); err != nil {
			return err
		}
		return &exitError{code: 1}
	}
	if err := extracthtml.StreamFromDir(a.stdout, f.dir, f.domain, site, nil, extracthtml.WithLogger(a.logger)); err != nil {
		return fmt.Errorf("dir extract: %w", err)
	}
	return nil
}

func newSelectorCmd(a *app) *cobra.Command {
	var (
		source sourceFlags
		text   bool
	)
	cmd := &cobra.Command{
		Use:   "selector SELECTOR",
		Short: "Debug: print every match of SELECTOR (outer HTML, text, or @attr values)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.loadPage(cmd.Context(), source)
			if err != nil {
				return fmt.Errorf("load html: %w", err)
			}
			if err := extracthtml.DebugPrintSelector(a.stdout, page.HTML(), args[0], text); err != nil {
				return fmt.Errorf("debug selector: %w", err)
			}
			return nil
		},
	}
	source.register(cmd)
	cmd.Flags().BoolVar(&text, "text", false, "Print normalized text instead of outer HTML")
	return cmd
}
