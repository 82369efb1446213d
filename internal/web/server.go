package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/lumenworks/ideaengine/internal/bus"
	"github.com/lumenworks/ideaengine/internal/config"
	"github.com/lumenworks/ideaengine/internal/engine"
	"github.com/lumenworks/ideaengine/internal/schedule"
)

//go:embed static
var staticFiles embed.FS

type wsClient struct {
	conn *websocket.Conn
	id   string
}

// Server is the dashboard HTTP front end: a JSON API over the engine
// plus a websocket stream of user-facing notices.
type Server struct {
	host    string
	port    int
	eng     *engine.Engine
	sched   *schedule.Service
	server  *http.Server
	clients sync.Map
	nextID  atomic.Int64
	cancel  context.CancelFunc
}

func NewServer(cfg *config.Config, eng *engine.Engine, sched *schedule.Service) *Server {
	return &Server{
		host:  cfg.Server.Host,
		port:  cfg.Server.Port,
		eng:   eng,
		sched: sched,
	}
}

// routes builds the API surface. Split out from Start so tests can
// drive the handlers through httptest.
func (s *Server) routes() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/send", s.handleSend)
	mux.HandleFunc("GET /api/campaigns", s.handleCampaigns)
	mux.HandleFunc("POST /api/campaigns/{id}/resend", s.handleResend)
	mux.HandleFunc("GET /api/campaigns/{id}/text", s.handleCampaignText)
	mux.HandleFunc("PATCH /api/ideas/{id}", s.handleEditIdea)
	mux.HandleFunc("DELETE /api/ideas/{id}", s.handleRemoveIdea)
	mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	mux.HandleFunc("POST /api/schedule/pause", s.handleSchedulePause)
	mux.HandleFunc("POST /api/schedule/resume", s.handleScheduleResume)
	mux.HandleFunc("POST /api/schedule/trigger", s.handleScheduleTrigger)
	mux.HandleFunc("/ws", s.handleWS)
	return mux, nil
}

func (s *Server) Start(ctx context.Context) error {
	mux, err := s.routes()
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.broadcastNotices(runCtx)

	go func() {
		log.Printf("[web] listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[web] server error: %v", err)
		}
	}()

	return nil
}

func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			log.Printf("[web] shutdown error: %v", err)
		}
	}
	s.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
	log.Printf("[web] stopped")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error string `json:"error"`
}

// writeEngineError maps the engine's error taxonomy onto HTTP codes:
// busy means conflict, validation means bad request, unknown record
// means not found, everything else is an upstream agent failure.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrBusy):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
	case errors.Is(err, engine.ErrNoRecipients), errors.Is(err, engine.ErrNoIdeas):
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
	case errors.Is(err, engine.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, apiError{Error: err.Error()})
	}
}

func sampleMode(r *http.Request) bool {
	switch r.URL.Query().Get("sample") {
	case "1", "true", "yes":
		return true
	}
	return false
}

type stateResponse struct {
	engine.View
	Categories []string `json:"categories"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sample := sampleMode(r)
	writeJSON(w, http.StatusOK, stateResponse{
		View:       s.eng.View(sample),
		Categories: s.eng.HistoryCategories(sample),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	batch, err := s.eng.Generate(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type sendRequest struct {
	Recipients string `json:"recipients"`
	CC         string `json:"cc,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	result, err := s.eng.Send(r.Context(), req.Recipients, req.CC)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	records := s.eng.History(q.Get("search"), q.Get("category"), sampleMode(r))
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	rec, err := s.eng.Resend(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCampaignText(w http.ResponseWriter, r *http.Request) {
	rec, err := s.eng.Find(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(engine.RenderText(rec)))
}

func (s *Server) handleEditIdea(w http.ResponseWriter, r *http.Request) {
	var patch engine.IdeaPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body"})
		return
	}
	if err := s.eng.EditIdea(r.PathValue("id"), patch); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.View(false))
}

func (s *Server) handleRemoveIdea(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.RemoveIdea(r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.eng.View(false))
}

type scheduleResponse struct {
	Schedule   schedule.Schedule       `json:"schedule"`
	Executions []schedule.ExecutionLog `json:"executions"`
}

func (s *Server) scheduleUnavailable(w http.ResponseWriter) bool {
	if s.sched == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "schedule service not running"})
		return true
	}
	return false
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if s.scheduleUnavailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{
		Schedule:   s.sched.Get(),
		Executions: s.sched.ListExecutions(20),
	})
}

func (s *Server) handleSchedulePause(w http.ResponseWriter, r *http.Request) {
	if s.scheduleUnavailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Pause())
}

func (s *Server) handleScheduleResume(w http.ResponseWriter, r *http.Request) {
	if s.scheduleUnavailable(w) {
		return
	}
	sched, err := s.sched.Resume()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleScheduleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.scheduleUnavailable(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.sched.TriggerNow(r.Context()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[web] websocket accept error: %v", err)
		return
	}

	clientID := fmt.Sprintf("web-%d", s.nextID.Add(1))
	client := &wsClient{conn: conn, id: clientID}
	s.clients.Store(clientID, client)
	log.Printf("[web] client connected: %s", clientID)

	defer func() {
		s.clients.Delete(clientID)
		conn.CloseNow()
		log.Printf("[web] client disconnected: %s", clientID)
	}()

	// Notices flow one way; reads only detect the close.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}

// broadcastNotices fans the engine's notice stream out to every
// connected websocket client.
func (s *Server) broadcastNotices(ctx context.Context) {
	for {
		select {
		case notice := <-s.eng.Notices().Notices():
			s.broadcast(notice)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) broadcast(notice bus.Notice) {
	data, err := json.Marshal(notice)
	if err != nil {
		return
	}
	s.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		return true
	})
}
