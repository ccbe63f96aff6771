package cmd

import (
	"os"

	"github.com/jsphweid/keystation/midi"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "sequence.mid", "file to write")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Exports a session's sequence as a MIDI file",
	Long:  `Exports the step sequencer grid of a saved session as a Standard MIDI File.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := newWorkstation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return errors.Wrapf(err, "creating %s", exportOut)
		}
		err = ws.Export(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if errors.Is(err, midi.ErrNothingToExport) {
			os.Remove(exportOut)
			cmd.Println("nothing to export")
			return nil
		}
		if err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", exportOut)
		return nil
	},
}
