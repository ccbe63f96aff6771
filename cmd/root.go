package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/jsphweid/keystation/constants"
	"github.com/jsphweid/keystation/db"
	"github.com/jsphweid/keystation/file"
	"github.com/jsphweid/keystation/workstation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	debug     bool
	storeKind string
)

var rootCmd = &cobra.Command{
	Use:   "keystation",
	Short: "A keyboard, step sequencer and arpeggiator",
	Long: `keystation plays a software synthesizer from the computer keyboard,
MIDI hardware or its HTTP API, runs a step sequencer with drum and
melodic lanes and exports patterns as Standard MIDI Files.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", `where sessions live: "file" or "dynamo"`)
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func openStore() (workstation.SessionStore, error) {
	switch storeKind {
	case "file":
		return file.New(constants.GetSessionDir()), nil
	case "dynamo":
		return db.Connect(constants.GetDynamoEndpoint(), constants.GetDynamoRegion(), constants.GetDynamoTable())
	}
	return nil, errors.Errorf("unknown session store %q", storeKind)
}

// newWorkstation builds an instrument from the environment and, when
// session is set, restores it.
func newWorkstation(ctx context.Context, session string) (*workstation.Workstation, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	cfg := workstation.ConfigFromEnv()
	cfg.Store = store
	cfg.Notifier = func(err error) {
		slog.Warn("sound fallback", "error", err)
	}
	ws := workstation.New(cfg)
	if session != "" {
		if err := ws.LoadSession(ctx, session); err != nil {
			return nil, err
		}
	}
	return ws, nil
}
