package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
)

func errorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "errors [CODE]",
		Short: "List error codes or explain one",
		Long: `Without arguments, list every error code the reactor command reports.
With a code, print its category, message and detail.

Examples:
  reactor errors
  reactor errors R202`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, code := range errors.Codes() {
					tmpl, _ := errors.GetTemplate(code)
					fmt.Fprintf(out, "%s  %-9s %s\n", code, tmpl.Category, tmpl.Message)
				}
				return nil
			}

			code := strings.ToUpper(args[0])
			tmpl, ok := errors.GetTemplate(code)
			if !ok {
				return errors.New("R504").
					WithDetail(fmt.Sprintf("%q is not a reactor error code", args[0])).
					WithSuggestion("run 'reactor errors' for the full list")
			}
			fmt.Fprintf(out, "%s: %s\n", code, tmpl.Message)
			info(out, "Category: %s", tmpl.Category)
			if tmpl.Detail != "" {
				info(out, "%s", tmpl.Detail)
			}
			return nil
		},
	}
}
