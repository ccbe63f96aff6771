package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"
)

func init() {
	chordsCmd.AddCommand(chordsImportCmd)
	rootCmd.AddCommand(chordsCmd)
}

var chordsCmd = &cobra.Command{
	Use:   "chords",
	Short: "Works with chord definitions",
}

var chordsImportCmd = &cobra.Command{
	Use:   "import <session> <file.mid>",
	Short: "Replaces a session's chords with the chords held in a MIDI file",
	Long: `Reads the distinct sets of held notes from a MIDI file, maps them to
keyboard keys by their MIDI note and saves them as the session's chords.
A session that does not exist yet is created.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		name, path := args[0], args[1]
		ws, err := newWorkstation(ctx, "")
		if err != nil {
			return err
		}
		if names, err := ws.ListSessions(ctx); err == nil && slices.Contains(names, name) {
			if err := ws.LoadSession(ctx, name); err != nil {
				return err
			}
		}
		n, err := ws.ImportChords(path)
		if err != nil {
			return err
		}
		if _, err := ws.SaveSession(ctx, name); err != nil {
			return err
		}
		for i, def := range ws.Chords().Definitions() {
			fmt.Printf("chord %d: %s\n", i+1, def.Name)
		}
		fmt.Printf("imported %d chords into %s\n", n, name)
		return nil
	},
}

