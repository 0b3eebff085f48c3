package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactive"
	"github.com/vango-dev/reactor/pkg/store"
)

func snapshotCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and load state snapshots",
		Long: `Save the state file as a named snapshot, or load a snapshot over it.

The backend is set in reactor.json (snapshot.backend): "file" writes
<dir>/<name>.snapshot.pb, "s3" writes <prefix><name>.snapshot.pb in the
bucket. Snapshots are protobuf-encoded.`,
	}

	cmd.AddCommand(snapshotSaveCmd(flags), snapshotLoadCmd(flags))
	return cmd
}

func snapshotSaveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "save NAME",
		Short: "Save the state file as a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := loadConfig(flags, os.Getenv)
			if err != nil {
				return err
			}
			st, err := newStore(cfg, newLogger(cfg, cmd.ErrOrStderr()), nil)
			if err != nil {
				return err
			}
			if err := st.Save(cmd.Context(), newPersister(cfg, os.Getenv), name); err != nil {
				return snapshotError(name, err)
			}
			success(cmd.OutOrStdout(), "Saved snapshot %s (%d keys, %s backend)", name, st.State().Len(), cfg.Snapshot.Backend)
			return nil
		},
	}
}

func snapshotLoadCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Load a snapshot over the state file and print the result",
		Long: `Load a snapshot over the state file and print the result as JSON.

Keys of the snapshot that the state file does not declare are reported
and skipped. With --output the result is written to a file instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			cfg, err := loadConfig(flags, os.Getenv)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			st, err := newStore(cfg, logger, nil)
			if err != nil {
				return err
			}
			if err := loadSnapshot(cmd.Context(), st, newPersister(cfg, os.Getenv), name); err != nil {
				if e, ok := err.(*errors.Error); ok {
					return e
				}
				logger.Warn("snapshot partially applied", "name", name, "error", err)
			}

			data, err := json.MarshalIndent(st.Snapshot(), "", "  ")
			if err != nil {
				return errors.New("R301").Wrap(err)
			}
			data = append(data, '\n')

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return errors.New("R301").Wrap(err)
			}
			success(cmd.OutOrStdout(), "Wrote %s", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the loaded state to this file")
	return cmd
}

// loadSnapshot applies the named snapshot. Backend failures come back as
// *errors.Error; unknown keys come back as the plain restore error.
func loadSnapshot(ctx context.Context, st *store.Store, p store.Persister, name string) error {
	err := st.Load(ctx, p, name)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, reactive.ErrUnknownKey) {
		return err
	}
	return snapshotError(name, err)
}
