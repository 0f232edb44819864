package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gigbook/internal/catalog"
	"gigbook/internal/persistence"
)

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo songs and a setlist into an empty catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := c.environment(cmd.Context())
			if err != nil {
				return err
			}
			created, err := bootstrapDemoData(cmd.Context(), env)
			if err = c.settle(err); err != nil {
				return err
			}
			if !created {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog already has songs; nothing seeded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "demo data loaded")
			return nil
		},
	}
}

type demoSong struct {
	title    string
	key      string
	tempo    int
	timeSig  string
	sections []catalog.SectionType
}

var demoSongs = []demoSong{
	{
		title: "Amazing Grace", key: "G", tempo: 72, timeSig: "3/4",
		sections: []catalog.SectionType{catalog.SectionIntro, catalog.SectionVerse, catalog.SectionVerse, catalog.SectionVerse, catalog.SectionOutro},
	},
	{
		title: "How Great Thou Art", key: "Bb", tempo: 68, timeSig: "4/4",
		sections: []catalog.SectionType{catalog.SectionVerse, catalog.SectionChorus, catalog.SectionVerse, catalog.SectionChorus, catalog.SectionBridge, catalog.SectionChorus},
	},
	{
		title: "Be Thou My Vision", key: "Eb", tempo: 84, timeSig: "3/4",
		sections: []catalog.SectionType{catalog.SectionVerse, catalog.SectionInstrumental, catalog.SectionVerse},
	},
}

// bootstrapDemoData seeds a catalog that has no songs yet. It reports whether
// anything was created. Save failures are collected and returned as one
// warning after all demo records are in place.
func bootstrapDemoData(ctx context.Context, env *environment) (bool, error) {
	existing, err := env.songs.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	var warning error
	keep := func(err error) error {
		if persistence.IsWarning(err) {
			warning = err
			return nil
		}
		return err
	}

	ids := make([]string, 0, len(demoSongs))
	for _, d := range demoSongs {
		song := catalog.NewSong(d.title)
		song.Key = &d.key
		song.Tempo = &d.tempo
		song.TimeSignature = &d.timeSig
		for i, t := range d.sections {
			sec := catalog.NewSection(t, "")
			sec.Order = i
			song.Sections = append(song.Sections, sec)
		}
		labelSections(song.Sections)

		created, err := env.songs.Create(ctx, song)
		if err = keep(err); err != nil {
			return false, fmt.Errorf("bootstrap demo song %q: %w", d.title, err)
		}
		ids = append(ids, created.ID)
	}

	sunday := time.Now().AddDate(0, 0, (7-int(time.Now().Weekday()))%7).Truncate(24 * time.Hour)
	setlist := catalog.NewSetlist("Sunday Morning")
	setlist.PerformanceDate = &sunday
	created, err := env.setlists.Create(ctx, setlist)
	if err = keep(err); err != nil {
		return false, fmt.Errorf("bootstrap demo setlist: %w", err)
	}

	for i, id := range ids {
		item, err := env.setlists.Attach(ctx, created.ID, id, i == 0)
		if err = keep(err); err != nil {
			return false, fmt.Errorf("bootstrap demo item: %w", err)
		}
		if i == 1 {
			_, err = env.setlists.UpdateItem(ctx, created.ID, item.ID, func(it *catalog.SetlistItem) error {
				key := "A"
				it.KeyOverride = &key
				return nil
			})
			if err = keep(err); err != nil {
				return false, fmt.Errorf("bootstrap demo override: %w", err)
			}
		}
	}
	return true, warning
}

// labelSections numbers quick-add sections per type the way the store does
// when sections are added one at a time.
func labelSections(sections []catalog.Section) {
	seen := make([]catalog.SectionType, 0, len(sections))
	for i := range sections {
		label := catalog.NextLabel(sections[i].Type, seen)
		sections[i].Label = &label
		seen = append(seen, sections[i].Type)
	}
}
