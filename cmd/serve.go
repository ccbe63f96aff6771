package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jsphweid/keystation/api"
	"github.com/jsphweid/keystation/constants"
	"github.com/jsphweid/keystation/output"
	"github.com/jsphweid/keystation/workstation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	servePort    string
	serveAudio   bool
	serveSession string
)

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", constants.GetPort(), "port to listen on")
	serveCmd.Flags().BoolVar(&serveAudio, "audio", true, "play through the default audio device")
	serveCmd.Flags().StringVar(&serveSession, "session", "", "session to restore before serving")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the HTTP API",
	Long:  `Serves the voice, sequencer, chord and session API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

// startAudio opens the audio device for ws. The returned close func is safe
// to call when audio is off.
func startAudio(ws *workstation.Workstation, on bool) (func(), error) {
	if !on {
		return func() {}, nil
	}
	p, err := output.NewPlayer(ws, int(ws.Context().SampleRate()), 1)
	if err != nil {
		return nil, err
	}
	p.Start()
	return func() {
		if err := p.Close(); err != nil {
			slog.Warn("closing audio", "error", err)
		}
	}, nil
}

func serve(ctx context.Context) error {
	ws, err := newWorkstation(ctx, serveSession)
	if err != nil {
		return err
	}
	closeAudio, err := startAudio(ws, serveAudio)
	if err != nil {
		return err
	}
	defer closeAudio()

	srv := &http.Server{
		Addr:              ":" + servePort,
		Handler:           api.NewHandler(ws, slog.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	// load samples in the background so the first request does not wait
	go func() {
		if err := ws.EnsureEngineReady(ctx); err != nil {
			slog.Warn("engine not ready", "error", err)
		}
	}()

	slog.Info("serving", "port", servePort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serving")
	}
	ws.Stop()
	return nil
}
