package panel

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/rendis/playback/internal/logging"
	"github.com/rendis/playback/internal/session"
	"github.com/rendis/playback/internal/streaming"
)

//go:embed templates
var content embed.FS

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Controller session.Controller
	Hub        streaming.EventHub
	Logger     *slog.Logger
}

// PanelServer serves the playback control panel and its JSON/SSE API.
type PanelServer struct {
	deps  PanelDeps
	index *template.Template
}

// NewPanelServer creates a PanelServer with its page template parsed.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &PanelServer{
		deps:  deps,
		index: template.Must(template.New("").ParseFS(content, "templates/index.html")),
	}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("POST /api/playback/{action}", s.handleControl)
	mux.HandleFunc("GET /api/diagram", s.handleDiagram)
	mux.HandleFunc("GET /api/trace", s.handleTrace)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("POST /api/runs/{id}/load", s.handleLoadRun)

	mux.HandleFunc("GET /sse/progress", s.handleSSEProgress)

	return s.withRequestID(mux)
}

// withRequestID tags every request context with an ID for log correlation.
func (s *PanelServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type indexData struct {
	Title    string
	Steps    int
	Edges    int
	Snapshot string
}

func (s *PanelServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	tr := s.deps.Controller.Trace()
	data := indexData{Title: "playback", Snapshot: toJSON(s.deps.Controller.Snapshot())}
	if tr != nil {
		data.Steps, data.Edges = len(tr.Steps), len(tr.Edges)
		if tr.Name != "" {
			data.Title = tr.Name
		} else if tr.RunID != "" {
			data.Title = tr.RunID
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.ExecuteTemplate(w, "index.html", data); err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "template render error", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *PanelServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
