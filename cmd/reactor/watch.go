package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/store"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "watch [key=value | key+=n]...",
		Short: "Watch state keys while applying writes",
		Long: `Load the state, install one watcher per key and apply the given
writes in order. Every notification is printed.

A write is key=<json> (set mutation) or key+=<number> (increment
mutation). Values that are not valid JSON are taken as strings.

Examples:
  reactor watch count+=1 count+=1
  reactor watch --keys title title='"hello"'
  reactor watch user=alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), flags, keys, args)
		},
	}

	cmd.Flags().StringSliceVarP(&keys, "keys", "k", nil, "Keys to watch (default all)")

	return cmd
}

// write is a parsed command-line write.
type write struct {
	mutation string
	payload  any
}

// parseWrite parses key=json or key+=number.
func parseWrite(arg string) (write, error) {
	if key, raw, ok := strings.Cut(arg, "+="); ok && key != "" {
		var by float64
		if err := json.Unmarshal([]byte(raw), &by); err != nil {
			return write{}, errors.New("R500").
				WithDetail(fmt.Sprintf("%q: increment must be a number", arg)).
				WithExample("count+=1")
		}
		return write{mutation: store.MutationIncrement, payload: store.IncrementPayload{Key: key, By: by}}, nil
	}

	key, raw, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return write{}, errors.New("R500").
			WithDetail(fmt.Sprintf("%q is not key=value", arg)).
			WithExample(`title="hello"`)
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return write{mutation: store.MutationSet, payload: store.SetPayload{Key: key, Value: value}}, nil
}

func runWatch(ctx context.Context, out io.Writer, flags *globalFlags, keys, args []string) error {
	writes := make([]write, 0, len(args))
	for _, arg := range args {
		w, err := parseWrite(arg)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}

	cfg, err := loadConfig(flags, os.Getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	st, err := newStore(cfg, logger, nil)
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		keys = st.State().Keys()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, key := range keys {
		if !st.State().Has(key) {
			return errors.New("R502").
				WithDetail(fmt.Sprintf("%v: %q", reactive.ErrUnknownKey, key))
		}
		key := key
		if _, err := st.Watch(ctx, func(ctx context.Context, state *reactive.Observer) error {
			v, _ := state.Get(ctx, key)
			fmt.Fprintf(out, "%s = %s\n", key, formatValue(v))
			return nil
		}); err != nil {
			return errors.New("R502").Wrap(err)
		}
	}

	for _, w := range writes {
		if err := st.Commit(ctx, w.mutation, w.payload); err != nil {
			return errors.New("R502").WithDetail(err.Error()).Wrap(err)
		}
	}
	return nil
}

// formatValue renders v as JSON, falling back to Go syntax.
func formatValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
