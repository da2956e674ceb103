package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lingyjava/page-parser/internal/extracthtml"
)

func newExistsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists URL",
		Short: "Ask sink.exists_url whether URL (without query string) was already collected",
		Long:  "Prints true or false. Exits 1 when the check itself fails.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.existenceChecker().Exists(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("exists check: %w", err)
			}
			fmt.Fprintln(a.stdout, ok)
			return nil
		},
	}
}

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send FILE",
		Short: "POST a saved result file to sink.endpoint",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var res extracthtml.Result
			if err := json.Unmarshal(data, &res); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := a.httpSink().Send(cmd.Context(), &res); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			fmt.Fprintf(a.stdout, "sent %s to %s\n", args[0], a.cfg.Sink.Endpoint)
			return nil
		},
	}
}
