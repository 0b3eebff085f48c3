package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/router"
)

func routesCmd(flags *globalFlags) *cobra.Command {
	var extra []string

	cmd := &cobra.Command{
		Use:   "routes [location]...",
		Short: "List routes or resolve locations against them",
		Long: `Without arguments, list the route table. With arguments, navigate
to each location in turn and print the route it matches.

Routes come from the "routes" list of reactor.json plus any --route
name=pattern flags. Patterns use :param and a trailing *catchall.

Examples:
  reactor routes
  reactor routes /users/42 '#/docs/a/b?x=1'
  reactor routes --route user=/users/:id /users/7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, os.Getenv)
			if err != nil {
				return err
			}

			routes := make([]router.Route, 0, len(cfg.Routes)+len(extra))
			for _, r := range cfg.Routes {
				routes = append(routes, router.Route{Name: r.Name, Path: r.Path})
			}
			for _, raw := range extra {
				name, path, ok := strings.Cut(raw, "=")
				if !ok || name == "" || path == "" {
					return errors.New("R501").
						WithField("--route").
						WithDetail(fmt.Sprintf("%q is not name=pattern", raw)).
						WithExample("--route user=/users/:id")
				}
				routes = append(routes, router.Route{Name: name, Path: path})
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			return runRoutes(cmd.Context(), cmd.OutOrStdout(), routes, args, router.WithLogger(logger))
		},
	}

	cmd.Flags().StringArrayVarP(&extra, "route", "r", nil, "Extra route as name=pattern (repeatable)")

	return cmd
}

func runRoutes(ctx context.Context, out io.Writer, routes []router.Route, locations []string, opts ...router.Option) error {
	history := router.NewMemoryHistory("/")
	r, err := router.New(history, routes, opts...)
	if err != nil {
		return errors.New("R501").WithDetail(err.Error()).Wrap(err)
	}
	defer r.Close()

	if len(locations) == 0 {
		for _, route := range r.Routes() {
			fmt.Fprintf(out, "%-16s %s\n", route.Name, route.Path)
		}
		return nil
	}

	for _, loc := range locations {
		if err := r.Push(ctx, loc); err != nil {
			return errors.New("R501").
				WithDetail(fmt.Sprintf("%q: %v", loc, err)).
				Wrap(err)
		}
		m, ok := r.Match(ctx)
		fmt.Fprintln(out, formatMatch(r.Location(ctx), m, ok))
	}
	return nil
}

func formatMatch(location string, m router.Match, ok bool) string {
	if !ok {
		return fmt.Sprintf("%-24s (no match)", location)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-24s %s", location, m.Route.Name)
	if len(m.Params) > 0 {
		names := make([]string, 0, len(m.Params))
		for name := range m.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%s", name, m.Params[name])
		}
	}
	return b.String()
}
