package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gigbook/internal/app/setlists"
	"gigbook/internal/catalog"
	"gigbook/internal/imports"
)

const dateLayout = "2006-01-02"

func newSetlistsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setlists",
		Short: "Plan setlists",
	}
	cmd.AddCommand(
		newSetlistsListCmd(c),
		newSetlistsCreateCmd(c),
		newSetlistsAttachCmd(c),
		newSetlistsMoveCmd(c),
		newSetlistsRemoveCmd(c),
		newSetlistsDeleteCmd(c),
		newSetlistsImportCmd(c),
	)
	return cmd
}

func newSetlistsListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List setlists by performance date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			list, err := env.setlists.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tDATE\tSONGS")
			for _, s := range list {
				date := "-"
				if s.PerformanceDate != nil {
					date = s.PerformanceDate.Format(dateLayout)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Title, date, len(s.Items))
			}
			return tw.Flush()
		},
	}
}

func newSetlistsCreateCmd(c *cli) *cobra.Command {
	var date, notes string
	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create an empty setlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setlist := catalog.NewSetlist(args[0])
			setlist.Notes = optionalString(notes)
			if date != "" {
				d, err := time.Parse(dateLayout, date)
				if err != nil {
					return fmt.Errorf("parse --date: %w", err)
				}
				setlist.PerformanceDate = &d
			}
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			created, err := env.setlists.Create(cmd.Context(), setlist)
			if err = c.settle(err); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Performance date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	return cmd
}

func newSetlistsAttachCmd(c *cli) *cobra.Command {
	var (
		cloneSections bool
		key, notes    string
		tempo         int
	)
	cmd := &cobra.Command{
		Use:   "attach SETLIST SONG",
		Short: "Append a song to a setlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			item, err := env.setlists.Attach(cmd.Context(), args[0], args[1], cloneSections)
			if err = c.settle(err); err != nil {
				return err
			}
			tempoSet := cmd.Flags().Changed("tempo")
			if key != "" || notes != "" || tempoSet {
				_, err = env.setlists.UpdateItem(cmd.Context(), args[0], item.ID, func(i *catalog.SetlistItem) error {
					if key != "" {
						i.KeyOverride = optionalString(key)
					}
					if notes != "" {
						i.Notes = optionalString(notes)
					}
					if tempoSet {
						i.TempoOverride = &tempo
					}
					return nil
				})
				if err = c.settle(err); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), item.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cloneSections, "clone-sections", false, "Copy the song's sections onto the item")
	cmd.Flags().StringVar(&key, "key", "", "Key override for this performance")
	cmd.Flags().IntVar(&tempo, "tempo", 0, "Tempo override for this performance")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes for this performance")
	return cmd
}

func newSetlistsMoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "move SETLIST FROM TO",
		Short: "Move the item at position FROM to position TO (1-based)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse FROM: %w", err)
			}
			to, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("parse TO: %w", err)
			}
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			_, err = env.setlists.MoveItem(cmd.Context(), args[0], from-1, to-1)
			return c.settle(err)
		},
	}
}

func newSetlistsRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SETLIST ITEM",
		Short: "Remove an item; the song stays in the catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			return c.settle(env.setlists.RemoveItem(cmd.Context(), args[0], args[1]))
		},
	}
}

func newSetlistsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a setlist and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			return c.settle(env.setlists.Delete(cmd.Context(), args[0]))
		},
	}
}

func newSetlistsImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import-images SETLIST ITEM FILE...",
		Short: "Attach run-of-show images to a setlist item",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			report, err := env.setlists.ImportItemImages(cmd.Context(), args[0], args[1], imports.Files(args[2:]...))
			printReport(cmd.OutOrStdout(), report)
			return c.settle(err)
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show SETLIST",
		Short: "Print a setlist's run sheet with resolved keys and tempos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			sheet, err := env.setlists.RunSheet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printRunSheet(cmd.OutOrStdout(), sheet)
		},
	}
}

func printRunSheet(w io.Writer, sheet setlists.RunSheet) error {
	title := sheet.Setlist.Title
	if sheet.Setlist.PerformanceDate != nil {
		title += " (" + sheet.Setlist.PerformanceDate.Format(dateLayout) + ")"
	}
	fmt.Fprintln(w, title)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSONG\tKEY\tTEMPO\tTIME\tSECTIONS\tITEM")
	for _, e := range sheet.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Number, e.Title,
			marked(deref(e.Key), e.KeyOverridden),
			marked(derefInt(e.Tempo), e.TempoOverridden),
			deref(e.TimeSignature),
			strings.Join(e.Sections, " "),
			e.ItemID)
	}
	return tw.Flush()
}

// marked flags values that come from a per-setlist override.
func marked(v string, overridden bool) string {
	if overridden {
		return v + "*"
	}
	return v
}
