package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jsphweid/keystation/midi"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

var (
	playIn        string
	playOut       string
	playList      bool
	playMod       string
	playKeysSound string
	playSeqSound  string
	playSession   string
	playSequence  bool
)

func init() {
	playCmd.Flags().StringVar(&playIn, "in", "", "MIDI input port (substring match, first port when empty)")
	playCmd.Flags().StringVar(&playOut, "out", "", "MIDI output port to mirror key voices to")
	playCmd.Flags().BoolVar(&playList, "list", false, "list MIDI ports and exit")
	playCmd.Flags().StringVar(&playMod, "mod", string(midi.ModNone), "mod wheel target: none, keys_vol, seq_vol, tempo or pitch")
	playCmd.Flags().StringVar(&playKeysSound, "keys-sound", "piano_wav", "sound for keys and chords")
	playCmd.Flags().StringVar(&playSeqSound, "seq-sound", "sine", "sound for melodic sequencer rows")
	playCmd.Flags().StringVar(&playSession, "session", "", "session to restore")
	playCmd.Flags().BoolVar(&playSequence, "sequence", false, "start the sequencer")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Plays the synthesizer from a MIDI controller",
	Long:  `Plays the synthesizer from a MIDI controller until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer midi.Close()
		if playList {
			return listPorts()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ws, err := newWorkstation(ctx, playSession)
		if err != nil {
			return err
		}
		if playSession == "" {
			if err := ws.SetSoundTypes(playKeysSound, playSeqSound); err != nil {
				return err
			}
		}
		if err := ws.SetModTarget(playMod); err != nil {
			return err
		}
		if err := ws.EnsureEngineReady(ctx); err != nil {
			return err
		}
		closeAudio, err := startAudio(ws, true)
		if err != nil {
			return err
		}
		defer closeAudio()

		if playOut != "" {
			out, err := midi.OpenOut(playOut)
			if err != nil {
				slog.Warn("continuing without MIDI out", "error", err)
			} else {
				ws.EnableMidiOut(midi.NewPortSender(out))
				defer ws.EnableMidiOut(nil)
			}
		}

		in, err := midi.OpenIn(playIn)
		if err != nil {
			slog.Warn("continuing without MIDI in", "error", err)
		} else {
			stopListening, err := midi.Listen(in, ws.Router(), func(err error) {
				slog.Warn("midi input", "error", err)
			})
			if err != nil {
				return err
			}
			defer stopListening()
			slog.Info("listening", "port", in.String())
		}

		if playSequence {
			if err := ws.Play(ctx); err != nil {
				return err
			}
		}

		<-ctx.Done()
		ws.Stop()
		ws.MuteAll()
		return nil
	},
}

func listPorts() error {
	ins, outs, err := midi.Ports()
	if err != nil {
		return err
	}
	for _, p := range ins {
		fmt.Printf("in:  %s\n", p)
	}
	for _, p := range outs {
		fmt.Printf("out: %s\n", p)
	}
	return nil
}
