// internal/relay/server.go
package relay

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/framerelay/internal/captures"
	"github.com/user/framerelay/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxCaptionBytes caps plain-text bodies; anything larger is not a caption.
const maxCaptionBytes = 64 << 10

// Intake is the slice of the pipeline coordinator the server submits to.
type Intake interface {
	ResolveEvent(inbound types.InboundEvent) (types.CaptureEvent, error)
	Submit(event types.CaptureEvent) error
}

// Server is a lightweight HTTP handler for the relay endpoints.
type Server struct {
	intake  Intake
	history types.HistoryStore
	mux     *http.ServeMux
}

// NewServer creates a relay Server submitting to intake and reading records
// from history.
func NewServer(intake Intake, history types.HistoryStore) *Server {
	s := &Server{
		intake:  intake,
		history: history,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /events", s.handleSubmit)
	s.mux.HandleFunc("GET /events", s.handleRecent)
	s.mux.HandleFunc("GET /events/", s.handleEvent)
	s.mux.HandleFunc("GET /latest", s.handleLatest)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var inbound types.InboundEvent
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&inbound); err != nil {
			http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
			return
		}
	} else {
		// Bare captioner clients post the caption as the whole body.
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCaptionBytes))
		if err != nil {
			http.Error(w, `{"error":"unreadable body"}`, http.StatusBadRequest)
			return
		}
		inbound.Caption = string(body)
	}

	event, err := s.intake.ResolveEvent(inbound)
	if err != nil {
		if errors.Is(err, captures.ErrNoCaptures) {
			slog.Error("no capture available for inbound event", "error", err)
			http.Error(w, `{"error":"no captures available"}`, http.StatusInternalServerError)
			return
		}
		http.Error(w, `{"error":"caption is required"}`, http.StatusBadRequest)
		return
	}

	if err := s.intake.Submit(event); err != nil {
		slog.Warn("inbound event rejected", "event_id", event.ID, "error", err)
		http.Error(w, `{"error":"queue full"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"event_id": string(event.ID),
		"status":   "received",
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	records := s.history.Recent(limit)
	if records == nil {
		records = []*types.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/events/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, `{"error":"event id required"}`, http.StatusBadRequest)
		return
	}

	record, ok := s.history.Get(types.EventID(id))
	if !ok {
		http.Error(w, `{"error":"event not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	record, ok := s.history.Latest()
	if !ok {
		http.Error(w, `{"error":"no completed events"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}
