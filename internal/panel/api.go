package panel

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rendis/playback/internal/diagram"
	"github.com/rendis/playback/internal/logging"
	"github.com/rendis/playback/internal/store"
)

// handleProgress returns the current snapshot.
func (s *PanelServer) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
}

// handleControl runs start, stop or reset and returns the resulting snapshot.
func (s *PanelServer) handleControl(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")
	c := s.deps.Controller
	switch action {
	case "start":
		c.Start()
	case "stop":
		c.Stop()
	case "reset":
		c.Reset()
	default:
		writeError(w, http.StatusNotFound, "unknown playback action "+action)
		return
	}
	logging.LogWith(r.Context(), s.deps.Logger).Info("playback control", slog.String("action", action))
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// handleDiagram renders the trace graph with the live overlay.
func (s *PanelServer) handleDiagram(w http.ResponseWriter, r *http.Request) {
	format, err := diagram.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := s.deps.Controller.Diagram(r.Context(), format)
	if err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "render diagram failed",
			slog.String("format", string(format)),
			slog.String("error", err.Error()),
		)
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(out)
}

func (s *PanelServer) handleTrace(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Controller.Trace())
}

// handleListRuns lists recorded runs. Query params: limit, offset, since (RFC 3339).
func (s *PanelServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since: "+err.Error())
			return
		}
		filter.Since = &t
	}

	runs, err := s.deps.Controller.ListRuns(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleLoadRun replaces the replayed trace with a recorded run.
func (s *PanelServer) handleLoadRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Controller.LoadRun(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	logging.LogWith(logging.WithRunID(r.Context(), id), s.deps.Logger).Info("run loaded")
	writeJSON(w, http.StatusOK, s.deps.Controller.Snapshot())
}
