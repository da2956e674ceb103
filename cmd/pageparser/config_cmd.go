package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lingyjava/page-parser/internal/siteconfig"
	"github.com/lingyjava/page-parser/internal/sink"
	"github.com/lingyjava/page-parser/internal/storage"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage per-domain selector configurations",
	}
	cmd.AddCommand(
		newConfigListCmd(a),
		newConfigGetCmd(a),
		newConfigSetCmd(a),
		newConfigDeleteCmd(a),
		newConfigImportCmd(a),
		newConfigExportCmd(a),
		newConfigSeedCmd(a),
	)
	return cmd
}

func newConfigListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured domains",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			all, err := s.All(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tNAME\tFIELDS")
			for _, d := range all.Domains() {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", d, all[d].Name, all[d].Selectors.Len())
			}
			return tw.Flush()
		},
	}
}

func newConfigGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get DOMAIN",
		Short: "Print the configuration of DOMAIN as JSON",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			site, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if site == nil {
				return fmt.Errorf("%s: %w", args[0], storage.ErrNotFound)
			}
			return sink.Encode(a.stdout, site)
		},
	}
}

// parseSelectorFlag splits "field=css path[@attr]" on the first '='.
func parseSelectorFlag(s string) (siteconfig.Entry, error) {
	field, sel, ok := strings.Cut(s, "=")
	if !ok {
		return siteconfig.Entry{}, fmt.Errorf("--selector %q: want field=selector", s)
	}
	return siteconfig.Entry{Field: strings.TrimSpace(field), Selector: strings.TrimSpace(sel)}, nil
}

func newConfigSetCmd(a *app) *cobra.Command {
	var (
		name      string
		selectors []string
		replace   bool
	)
	cmd := &cobra.Command{
		Use:   "set DOMAIN",
		Short: "Create or update the configuration of DOMAIN",
		Long: "Create or update the configuration of DOMAIN.\n" +
			"Each --selector is field=selector, in output order. Without --replace the\n" +
			"given fields are merged into the existing configuration.",
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := args[0]
			entries := make([]siteconfig.Entry, 0, len(selectors))
			for _, raw := range selectors {
				e, err := parseSelectorFlag(raw)
				if err != nil {
					return usageErr(err)
				}
				entries = append(entries, e)
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			site := &siteconfig.Site{}
			if !replace {
				existing, err := s.Get(cmd.Context(), domain)
				if err != nil {
					return err
				}
				if existing != nil {
					site = existing
				}
			}
			if cmd.Flags().Changed("name") {
				site.Name = name
			}
			for _, e := range entries {
				site.Selectors.Set(e.Field, e.Selector)
			}

			if err := s.Save(cmd.Context(), domain, site); err != nil {
				return err
			}
			saved, err := s.Get(cmd.Context(), domain)
			if err != nil {
				return err
			}
			return sink.Encode(a.stdout, saved)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: the domain)")
	cmd.Flags().StringArrayVar(&selectors, "selector", nil, "field=selector; repeatable")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the whole configuration instead of merging")
	return cmd
}

func newConfigDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete DOMAIN...",
		Short: "Delete configurations",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			for _, d := range args {
				site, err := s.Get(cmd.Context(), d)
				if err != nil {
					return err
				}
				if site == nil {
					return fmt.Errorf("%s: %w", d, storage.ErrNotFound)
				}
				if err := s.Delete(cmd.Context(), d); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "deleted %s\n", d)
			}
			return nil
		},
	}
}

func newConfigImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Merge a configuration bundle (JSON object domain -> config) into the store; '-' reads stdin",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = a.stdin
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			bundle, err := siteconfig.DecodeBundle(r)
			if err != nil {
				return err
			}

			s, err := a.openStore()
			if err != nil {
				return err
			}
			n, err := s.Import(cmd.Context(), bundle)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "imported %d configurations\n", n)
			return nil
		},
	}
}

func newConfigExportCmd(a *app) *cobra.Command {
	var (
		toStdout bool
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "export [DOMAIN...]",
		Short: "Export configurations as a JSON bundle",
		Long: "Export configurations as a JSON bundle. Without DOMAIN every configuration is\n" +
			"written to page-parser-configs-YYYYMMDD.json; with one DOMAIN to\n" +
			"page-parser-config-<domain>.json.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			bundle, err := s.Export(cmd.Context(), args...)
			if err != nil {
				return err
			}
			if toStdout {
				return siteconfig.EncodeBundle(a.stdout, bundle)
			}

			name := siteconfig.ExportFileName(time.Now())
			if len(args) == 1 {
				name = siteconfig.SingleExportFileName(strings.TrimSpace(args[0]))
			}
			var buf bytes.Buffer
			if err := siteconfig.EncodeBundle(&buf, bundle); err != nil {
				return err
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}
			path := filepath.Join(outDir, name)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "exported %d configurations to %s\n", len(bundle), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&toStdout, "stdout", false, "Print the bundle instead of writing a file")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Directory for the export file (default: current directory)")
	return cmd
}

func newConfigSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in configurations when the store is empty",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			seeded, err := s.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(a.stdout, "seeded built-in configurations")
			} else {
				fmt.Fprintln(a.stdout, "store is not empty; nothing seeded")
			}
			return nil
		},
	}
}
