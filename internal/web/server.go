// Package web provides an HTTP status server for the flow-pump daemon.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/sweeney/flow-pump/internal/status"
)

// Enabler switches the pump on or off.
type Enabler interface {
	Enable(on bool) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	enabler    Enabler
}

// New creates a Server that reads state from the given tracker. A nil
// enabler makes /enable answer 503.
func New(addr string, tracker *status.Tracker, enabler Enabler) *Server {
	s := &Server{tracker: tracker, enabler: enabler}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/enable", s.handleEnable)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleEnable switches the pump: POST /enable?on=true|false.
func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.enabler == nil {
		http.Error(w, "pump control unavailable", http.StatusServiceUnavailable)
		return
	}
	on, err := strconv.ParseBool(r.FormValue("on"))
	if err != nil {
		http.Error(w, "on must be true or false", http.StatusBadRequest)
		return
	}
	if err := s.enabler.Enable(on); err != nil {
		log.Printf("web: enable(%v) failed: %v", on, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	log.Printf("web: pump enable=%v from %s", on, r.RemoteAddr)

	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
