// Package api exposes the workstation over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jsphweid/keystation/chord"
	"github.com/jsphweid/keystation/keyboard"
	"github.com/jsphweid/keystation/midi"
	"github.com/jsphweid/keystation/model"
	"github.com/jsphweid/keystation/sample"
	"github.com/jsphweid/keystation/sequencer"
	"github.com/jsphweid/keystation/sound"
	"github.com/jsphweid/keystation/voice"
	"github.com/jsphweid/keystation/workstation"
	"github.com/pkg/errors"
	"github.com/rs/cors"
)

type handler struct {
	ws     *workstation.Workstation
	logger *slog.Logger
}

func status(err error) int {
	switch errors.Cause(err) {
	case model.ErrSessionNotFound:
		return http.StatusNotFound
	case workstation.ErrNoStore:
		return http.StatusNotImplemented
	case midi.ErrNothingToExport:
		return http.StatusNoContent
	case model.ErrInvalidName,
		sound.ErrUnknownType, sound.ErrInvalidFrequency,
		sequencer.ErrUnknownDrum, sequencer.ErrNoSuchCell,
		sequencer.ErrStepsOutOfRange, sequencer.ErrRowsOutOfRange,
		chord.ErrNoSuchChord, chord.ErrChordsOutOfRange, chord.ErrNotesOutOfRange,
		chord.ErrNoSuchNoteInChord, keyboard.ErrNoSuchKey,
		midi.ErrUnknownModTarget, sample.ErrCorruptBuffer:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	code := status(err)
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	writeJSON(w, code, model.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "could not parse request body: " + err.Error()})
		return false
	}
	return true
}

func chordIndex(r *http.Request) (int, error) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		return 0, errors.Wrap(chord.ErrNoSuchChord, mux.Vars(r)["n"])
	}
	return n, nil
}

func (h *handler) handleStartVoice(w http.ResponseWriter, r *http.Request) {
	var in model.StartVoiceRequestBody
	if !h.decode(w, r, &in) {
		return
	}
	freq := model.FrequencyPair{Final: in.Frequency, Base: in.BaseFrequency}
	if freq.Base == 0 {
		freq.Base = freq.Final
	}
	var opts []voice.StartOption
	if in.Duration != nil {
		opts = append(opts, voice.WithDuration(*in.Duration))
	}
	if in.SoundType != "" {
		t, err := sound.Parse(in.SoundType)
		if err != nil {
			h.fail(w, err)
			return
		}
		opts = append(opts, voice.WithSoundType(t))
	}
	if in.KeyIndex != nil {
		opts = append(opts, voice.WithKeyIndex(*in.KeyIndex))
	}
	src := model.ParseSourceCategory(string(in.Source))

	v, err := h.ws.StartVoice(r.Context(), freq, mux.Vars(r)["id"], src, opts...)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": v.ID, "soundType": v.SoundType})
}

func (h *handler) handleStopVoice(w http.ResponseWriter, r *http.Request) {
	release := voice.DefaultRelease
	if r.ContentLength > 0 {
		var in model.StopVoiceRequestBody
		if !h.decode(w, r, &in) {
			return
		}
		if in.Release != nil {
			release = *in.Release
		}
	}
	h.ws.StopVoice(mux.Vars(r)["id"], release)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleMute(w http.ResponseWriter, r *http.Request) {
	h.ws.MuteAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handlePitch(w http.ResponseWriter, r *http.Request) {
	var in model.PitchRequestBody
	if !h.decode(w, r, &in) {
		return
	}
	h.ws.RetunePitch(in.Semitones)
	writeJSON(w, http.StatusOK, h.ws.Status())
}

func (h *handler) handleTempo(w http.ResponseWriter, r *http.Request) {
	var in model.TempoRequestBody
	if !h.decode(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, model.TempoRequestBody{BPM: h.ws.SetTempo(in.BPM)})
}

func (h *handler) handleMidi(w http.ResponseWriter, r *http.Request) {
	var in model.MidiRequestBody
	if !h.decode(w, r, &in) {
		return
	}
	data := make([]byte, len(in.Data))
	for i, b := range in.Data {
		if b < 0 || b > 255 {
			writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "midi bytes must be between 0 and 255"})
			return
		}
		data[i] = byte(b)
	}
	if err := h.ws.HandleMidi(r.Context(), data); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handlePlay(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Play(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ws.Status())
}

func (h *handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.ws.Stop()
	writeJSON(w, http.StatusOK, h.ws.Status())
}

func (h *handler) handleCell(w http.ResponseWriter, r *http.Request) {
	var in model.CellRequestBody
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.ws.SetCell(in.Row, in.Step, in.On); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleChordPlay(w http.ResponseWriter, r *http.Request) {
	n, err := chordIndex(r)
	if err == nil {
		err = h.ws.PlayChord(r.Context(), n)
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleChordRelease(w http.ResponseWriter, r *http.Request) {
	n, err := chordIndex(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ws.ReleaseChord(n)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleDrum(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ws.PlayDrum(r.Context(), mux.Vars(r)["name"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ws.Status())
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", `attachment; filename="sequence.mid"`)
	if err := h.ws.Export(w); err != nil {
		w.Header().Del("Content-Disposition")
		w.Header().Del("Content-Type")
		h.fail(w, err)
	}
}

func (h *handler) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	name, err := h.ws.SaveSession(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *handler) handleSessionLoad(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.LoadSession(r.Context(), mux.Vars(r)["name"]); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ws.Status())
}

func (h *handler) handleSessionList(w http.ResponseWriter, r *http.Request) {
	names, err := h.ws.ListSessions(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *handler) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteSession(r.Context(), mux.Vars(r)["name"]); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func NewHandler(ws *workstation.Workstation, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{ws: ws, logger: logger}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/voices/{id}", h.handleStartVoice).Methods(http.MethodPost)
	router.HandleFunc("/voices/{id}", h.handleStopVoice).Methods(http.MethodDelete)
	router.HandleFunc("/mute", h.handleMute).Methods(http.MethodPost)
	router.HandleFunc("/pitch", h.handlePitch).Methods(http.MethodPut)
	router.HandleFunc("/tempo", h.handleTempo).Methods(http.MethodPut)
	router.HandleFunc("/midi", h.handleMidi).Methods(http.MethodPost)
	router.HandleFunc("/sequencer/play", h.handlePlay).Methods(http.MethodPost)
	router.HandleFunc("/sequencer/stop", h.handleStop).Methods(http.MethodPost)
	router.HandleFunc("/sequencer/cells", h.handleCell).Methods(http.MethodPut)
	router.HandleFunc("/chords/{n}", h.handleChordPlay).Methods(http.MethodPost)
	router.HandleFunc("/chords/{n}", h.handleChordRelease).Methods(http.MethodDelete)
	router.HandleFunc("/drums/{name}", h.handleDrum).Methods(http.MethodPost)
	router.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/export.mid", h.handleExport).Methods(http.MethodGet)
	router.HandleFunc("/sessions", h.handleSessionList).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{name}", h.handleSessionSave).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{name}", h.handleSessionLoad).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{name}", h.handleSessionDelete).Methods(http.MethodDelete)

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}).Handler(router)
}
