// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/adscan/internal/classifier"
	apperrors "github.com/GriffinCanCode/adscan/internal/errors"
	"github.com/GriffinCanCode/adscan/internal/reference"
	"github.com/GriffinCanCode/adscan/internal/trace"
)

// Detector is the classification backend.
type Detector interface {
	ClassifyBytes(ctx context.Context, data []byte) (classifier.Result, error)
	Explain(ctx context.Context, data []byte) (classifier.Report, error)
	References() []reference.Info
	Ready() bool
}

// Fetcher downloads candidate images given by URL.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

// ClassifyRequest is the JSON body of /api/classify and /api/explain, and
// the WebSocket "classify" message. Exactly one of URL or Data is used.
type ClassifyRequest struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
	Data []byte `json:"data,omitempty"`
}

type ResultMessage struct {
	Type    string  `json:"type"`
	ID      string  `json:"id,omitempty"`
	IsAd    bool    `json:"isAd"`
	Company *string `json:"company"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func resultMessage(id string, r classifier.Result) ResultMessage {
	msg := ResultMessage{Type: "result", ID: id, IsAd: r.IsAd}
	if r.IsAd {
		msg.Company = &r.Company
	}
	return msg
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	limit      int
	window     time.Duration
	now        func() time.Time
	mu         sync.Mutex
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{limit: limit, window: window, now: time.Now}
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= r.limit {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	det     Detector
	fetcher Fetcher
	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
}

// New creates a new server.
func New(det Detector, fetcher Fetcher) *Server {
	return &Server{
		det:     det,
		fetcher: fetcher,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/classify", s.handleClassify)
	mux.HandleFunc("POST /api/explain", s.handleExplain)
	mux.HandleFunc("GET /api/references", s.handleReferences)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

// Connections reports the number of open WebSocket connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "http.classify")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, ClassifyTimeout)
	defer cancel()

	data, err := s.candidate(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.det.ClassifyBytes(ctx, data)
	if err != nil {
		writeError(w, err)
		return
	}
	span.SetAttr("is_ad", res.IsAd)
	trace.Logger(ctx).Info("classified", "is_ad", res.IsAd, "company", res.Company)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ClassifyTimeout)
	defer cancel()

	data, err := s.candidate(ctx, r)
	if err != nil {
		writeError(w, err)
		return
	}
	rep, err := s.det.Explain(ctx, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	refs := s.det.References()
	if refs == nil {
		refs = []reference.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":      s.det.Ready(),
		"categories": refs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": s.det.Ready()})
}

// candidate returns the image bytes of a request: the raw body, or for JSON
// bodies the inline data or the image behind the URL.
func (s *Server) candidate(ctx context.Context, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "read request body")
	}
	if len(body) > MaxBodyBytes {
		return nil, apperrors.New(apperrors.InvalidArgument, "request body too large")
	}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "application/json" {
		return body, nil
	}
	var req ClassifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "invalid JSON body")
	}
	return s.resolve(ctx, req)
}

// resolve turns a request into image bytes. Fetch failures other than a bad
// URL surface as Unavailable so they are never reported as bad input.
func (s *Server) resolve(ctx context.Context, req ClassifyRequest) ([]byte, error) {
	switch {
	case len(req.Data) > 0:
		return req.Data, nil
	case req.URL == "":
		return nil, apperrors.New(apperrors.InvalidArgument, "url or data is required")
	case s.fetcher == nil:
		return nil, apperrors.New(apperrors.Unavailable, "url fetching is disabled")
	}

	data, err := s.fetcher.Get(ctx, req.URL)
	if err != nil && !apperrors.IsCode(err, apperrors.InvalidArgument) && !apperrors.IsCode(err, apperrors.Cancelled) {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "fetch candidate").WithMetadata("url", req.URL)
	}
	return data, err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(WSReadLimit)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	rl := newRateLimiter(RateLimitMessages, RateLimitWindow)
	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Code:    "RATE_LIMITED",
				Message: "rate limit exceeded",
			})
			continue
		}

		var req ClassifyRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch req.Type {
		case "classify":
			ctx, span := trace.StartSpan(baseCtx, "ws.classify")
			s.handleWSClassify(ctx, conn, req)
			span.End()
		default:
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", ID: req.ID, Message: "unknown message type"})
		}
	}
}

func (s *Server) handleWSClassify(ctx context.Context, conn *websocket.Conn, req ClassifyRequest) {
	ctx, cancel := context.WithTimeout(ctx, ClassifyTimeout)
	defer cancel()

	data, err := s.resolve(ctx, req)
	var res classifier.Result
	if err == nil {
		res, err = s.det.ClassifyBytes(ctx, data)
	}
	if err != nil {
		trace.Logger(ctx).Debug("websocket classify failed", "id", req.ID, "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{
			Type:    "error",
			ID:      req.ID,
			Code:    apperrors.CodeOf(err).String(),
			Message: err.Error(),
		})
		return
	}
	_ = wsjson.Write(ctx, conn, resultMessage(req.ID, res))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperrors.CodeOf(err)
	if ae, ok := apperrors.As(err); ok {
		status = ae.HTTPStatus()
	}
	writeJSON(w, status, ErrorMessage{Type: "error", Code: code.String(), Message: err.Error()})
}
