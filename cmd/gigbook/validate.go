package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gigbook/internal/persistence"
	"gigbook/internal/store"
)

func newValidateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the saved catalog without loading it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := openBackend(cmd.Context(), c.cfg.Storage)
			if err != nil {
				return err
			}
			defer backend.Close()

			problems, err := validateBackend(cmd.Context(), backend)
			if err != nil {
				return err
			}
			return reportProblems(cmd.OutOrStdout(), problems)
		},
	}
}

// validateBackend checks every record on its own, then the snapshot as a
// whole (identifiers, references, ordering).
func validateBackend(ctx context.Context, backend persistence.Backend) ([]string, error) {
	snap, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var problems []string
	for _, song := range snap.Songs {
		if err := song.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("song %s: %v", song.ID, err))
		}
	}
	for _, setlist := range snap.Setlists {
		if err := setlist.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("setlist %s: %v", setlist.ID, err))
		}
	}
	if len(problems) == 0 {
		if err := store.New().Restore(snap); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems, nil
}

func reportProblems(w io.Writer, problems []string) error {
	if len(problems) == 0 {
		fmt.Fprintln(w, "ok")
		return nil
	}
	for _, p := range problems {
		fmt.Fprintln(w, p)
	}
	return fmt.Errorf("%d problem(s) found", len(problems))
}
