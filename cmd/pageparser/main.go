// Command pageparser extracts structured fields from web pages using
// per-domain CSS selector configurations.
//
// Usage (fetch and parse a page):
//
//	pageparser parse --url "https://www.bloomberg.com/news/articles/..."
//
// Usage (parse HTML from stdin as a given domain):
//
//	cat page.html | pageparser parse --domain www.bloomberg.com
//
// Usage (manage configurations):
//
//	pageparser config set example.com --name Example --selector title=h1 --selector "links=a@href"
//	pageparser config export
//
// Usage (local API):
//
//	pageparser serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, http.DefaultClient)
	stop()
	os.Exit(code)
}

// run is split out from main so commands can be tested without spawning a
// process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors, including a failed parse outcome
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	a := &app{
		ctx:        ctx,
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		httpClient: httpClient,
		getenv:     os.Getenv,
	}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ee *exitError
	switch {
	case errors.As(err, &ee):
		if ee.err != nil {
			fmt.Fprintf(stderr, "%v\n", ee.err)
		}
		return ee.code
	case strings.HasPrefix(err.Error(), "unknown command"):
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
}

// exitError carries an exit code out of a cobra command. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error { return &exitError{code: 2, err: err} }

func usagef(format string, args ...any) error { return usageErr(fmt.Errorf(format, args...)) }

// usageArgs turns positional-argument violations into exit code 2.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pageparser",
		Short:         "Extract structured fields from web pages with per-domain CSS selectors.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.init()
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "Path to a YAML config file (default: $PAGEPARSER_CONFIG)")
	f.StringVar(&a.flags.storeKind, "store-kind", "", "Config store backend: sqlite, postgres, mssql, jsonfile, memory")
	f.StringVar(&a.flags.storeDSN, "store-dsn", "", "Config store DSN (file path for sqlite/jsonfile)")
	f.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageErr(err) })

	root.AddCommand(
		newParseCmd(a),
		newSelectorCmd(a),
		newConfigCmd(a),
		newExistsCmd(a),
		newSendCmd(a),
		newServeCmd(a),
		newVersionCmd(a),
	)
	return root
}
