package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gigbook/internal/catalog"
	"gigbook/internal/imports"
)

func newSongsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "songs",
		Short: "Manage the song catalog",
	}
	cmd.AddCommand(
		newSongsListCmd(c),
		newSongsAddCmd(c),
		newSongsShowCmd(c),
		newSongsDeleteCmd(c),
		newSongsImportCmd(c),
	)
	return cmd
}

func newSongsListCmd(c *cli) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List songs by title, or the most recently changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			var list []catalog.Song
			if recent > 0 {
				list, err = env.songs.Recent(cmd.Context(), recent)
			} else {
				list, err = env.songs.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printSongs(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 0, "Show only the N most recently modified songs")
	return cmd
}

func newSongsAddCmd(c *cli) *cobra.Command {
	var (
		key, timeSig, notes string
		tempo               int
		sections            []string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			song := catalog.NewSong(args[0])
			song.Key = optionalString(key)
			song.TimeSignature = optionalString(timeSig)
			song.Notes = optionalString(notes)
			if cmd.Flags().Changed("tempo") {
				song.Tempo = &tempo
			}
			parsed, err := parseSections(sections)
			if err != nil {
				return err
			}

			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			created, err := env.songs.Create(cmd.Context(), song)
			if err = c.settle(err); err != nil {
				return err
			}
			for _, sec := range parsed {
				_, err := env.songs.AddSection(cmd.Context(), created.ID, sec)
				if err = c.settle(err); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Musical key, e.g. G or Bb")
	cmd.Flags().IntVar(&tempo, "tempo", 0, "Tempo in BPM (1-300)")
	cmd.Flags().StringVar(&timeSig, "time-signature", "", "Time signature, e.g. 4/4")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringSliceVar(&sections, "section", nil, "Section types in order (verse, chorus, ..., custom:Name)")
	return cmd
}

func newSongsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one song with its sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			song, err := env.songs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", song.Title)
			fmt.Fprintf(out, "  key: %s  tempo: %s  time: %s\n", deref(song.Key), derefInt(song.Tempo), deref(song.TimeSignature))
			if song.Notes != nil {
				fmt.Fprintf(out, "  notes: %s\n", *song.Notes)
			}
			for _, sec := range song.SortedSections() {
				fmt.Fprintf(out, "  %2d. %-8s %s\n", sec.Order+1, sec.DisplayName(), sec.Type.Color())
			}
			fmt.Fprintf(out, "  images: %d/%d\n", len(song.Images), catalog.MaxImages)
			return nil
		},
	}
}

func newSongsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a song that no setlist uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			return c.settle(env.songs.Delete(cmd.Context(), args[0]))
		},
	}
}

func newSongsImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import-images ID FILE...",
		Short: "Attach sheet-music images to a song",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			report, err := env.songs.ImportImages(cmd.Context(), args[0], imports.Files(args[1:]...))
			printReport(cmd.OutOrStdout(), report)
			return c.settle(err)
		},
	}
}

func printSongs(w io.Writer, list []catalog.Song) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tKEY\tTEMPO\tSECTIONS\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Title, deref(s.Key), derefInt(s.Tempo), len(s.Sections), s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func printReport(w io.Writer, r imports.Report) {
	fmt.Fprintf(w, "added %d, failed %d, skipped %d\n", len(r.Added), len(r.Failed), len(r.Skipped))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  failed %s: %v\n", f.Source, f.Err)
	}
	if r.LimitReached {
		fmt.Fprintf(w, "  image limit of %d reached\n", catalog.MaxImages)
	}
}

// parseSections turns "verse", "chorus" or "custom:Name" into quick-add
// sections. Labels are assigned by the store.
func parseSections(raw []string) ([]catalog.Section, error) {
	out := make([]catalog.Section, 0, len(raw))
	for _, r := range raw {
		kind, name, isCustom := strings.Cut(r, ":")
		if isCustom && strings.EqualFold(strings.TrimSpace(kind), string(catalog.SectionCustom)) {
			sec, err := catalog.NewCustomSection(name)
			if err != nil {
				return nil, err
			}
			out = append(out, sec)
			continue
		}
		t, err := catalog.ParseSectionType(r)
		if err != nil {
			return nil, err
		}
		if t == catalog.SectionCustom {
			return nil, fmt.Errorf("custom sections need a name: custom:Name")
		}
		out = append(out, catalog.NewSection(t, ""))
	}
	return out, nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func derefInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
