package cmd

import (
	"fmt"

	"github.com/jsphweid/keystation/constants"
	"github.com/jsphweid/keystation/sample"
	"github.com/jsphweid/keystation/sequencer"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(samplesCmd)
}

var samplesCmd = &cobra.Command{
	Use:   "samples",
	Short: "Lists the samples the engine would load",
	Long:  `Loads the piano pool and the drum kit the same way the engine does and reports what was found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base := constants.GetSamplesDir()
		piano := sample.NewLoader(sample.Join(base, constants.GetPianoSamplesDir()))
		pool, err := piano.LoadPool(cmd.Context(), constants.GetPianoFiles())
		if err != nil {
			return err
		}
		fmt.Printf("piano (%s): %d samples\n", piano.Base, len(pool))
		for i, buf := range pool {
			fmt.Printf("  %2d  %.2fs  %d ch  %.0f Hz\n", i, buf.Duration(), len(buf.Channels), buf.SampleRate)
		}

		drums := sample.NewLoader(sample.Join(base, constants.GetDrumSamplesDir()))
		fmt.Printf("drums (%s):\n", drums.Base)
		for _, d := range sequencer.Drums() {
			buf, err := drums.Load(cmd.Context(), d.SampleFile())
			if err != nil {
				fmt.Printf("  %-7s synthesized (%s at %.0f Hz)\n", d, d.FallbackType(), d.FallbackFrequency())
				continue
			}
			fmt.Printf("  %-7s %s  %.2fs\n", d, d.SampleFile(), buf.Duration())
		}
		return nil
	},
}
