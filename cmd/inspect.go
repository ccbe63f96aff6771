package cmd

import (
	"fmt"
	"os"

	"github.com/jsphweid/keystation/chord"
	"github.com/jsphweid/keystation/midi"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	inspectEvents  bool
	inspectFrom    int64
	inspectNotes   int
	inspectExcerpt string
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectEvents, "events", false, "print every event")
	inspectCmd.Flags().StringVar(&inspectExcerpt, "excerpt", "", "write an excerpt of the file here")
	inspectCmd.Flags().Int64Var(&inspectFrom, "from", 0, "first tick of the excerpt")
	inspectCmd.Flags().IntVar(&inspectNotes, "notes", 10, "note events per track in the excerpt")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Inspects a MIDI file",
	Long:  `Prints the tracks of a MIDI file and the chords held in it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(args[0])
	},
}

func inspect(path string) error {
	s, err := midi.ReadMidiFile(path)
	if err != nil {
		return err
	}
	fmt.Printf("%d tracks, %v\n", len(s.Tracks), s.TimeFormat)
	if inspectEvents {
		for _, ev := range midi.Events(s) {
			fmt.Println(ev)
		}
	}

	if inspectExcerpt != "" {
		f, err := os.Create(inspectExcerpt)
		if err != nil {
			return errors.Wrapf(err, "creating %s", inspectExcerpt)
		}
		defer f.Close()
		if _, err := midi.Excerpt(s, inspectFrom, inspectNotes).WriteTo(f); err != nil {
			return errors.Wrap(err, "writing excerpt")
		}
	}

	chords, err := chord.FromMidi(s)
	if err != nil {
		fmt.Printf("chords: %v\n", err)
		return nil
	}
	for i, notes := range chords {
		fmt.Printf("chord %d: %s\n", i+1, chord.NoteKey(notes))
	}
	return nil
}
