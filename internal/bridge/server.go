// Package bridge exposes the evaluation pipeline over HTTP so non-Go
// consumers can verify PIC proposals without embedding the SDK.
//
// POST /verify  {"tool_name": ..., "tool_args": {"__pic": {...}, ...}}
// GET  /health  {"status": "ok"}
//
// Fail-closed: every internal fault answers allowed=false with a generic
// message, never a stack trace.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openpic/picguard/internal/guard"
	"github.com/openpic/picguard/internal/keyring"
	"github.com/openpic/picguard/internal/policy"
)

// MaxRequestBytes caps the request body before parsing.
const MaxRequestBytes = 1 << 20 // 1 MiB

// DefaultReadTimeout bounds the socket read independent of the
// evaluation deadline.
const DefaultReadTimeout = 5 * time.Second

// Config holds bridge server configuration.
type Config struct {
	Addr            string // default 127.0.0.1:8787
	PolicyPath      string
	KeyringPath     string // explicit override; empty falls back to pic_keys.json
	VerifyEvidence  bool
	ProposalBaseDir string
	EvidenceRootDir string
	Debug           bool
	ReadTimeout     time.Duration
}

// Server serves the verification endpoint. Policy, limits, and keyring
// are swapped atomically on reload; evaluations only ever see a
// complete, immutable snapshot.
type Server struct {
	cfg Config

	mu         sync.RWMutex
	policy     *policy.Policy
	limits     policy.Limits
	ring       *keyring.Ring
	policyHash string

	srv *http.Server
}

// NewServer creates a bridge server with loaded policy and keyring.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	s := &Server{cfg: cfg}
	if err := s.ReloadConfig(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/verify", s.handleVerify)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}
	return s, nil
}

// ReloadConfig reloads policy and keyring from disk and swaps them in.
// Called at startup and by the hot-reload watcher.
func (s *Server) ReloadConfig() error {
	pol, limits, hash, err := policy.LoadWithHash(s.cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("failed to load policy config: %w", err)
	}
	ring, err := keyring.LoadDefault(s.cfg.KeyringPath)
	if err != nil {
		return fmt.Errorf("failed to load keyring: %w", err)
	}

	s.mu.Lock()
	s.policy = pol
	s.limits = limits
	s.ring = ring
	s.policyHash = hash
	s.mu.Unlock()
	return nil
}

// Start begins listening. Blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.serveOn(ctx, ln)
}

// ServeOn serves on the given listener. For testing.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	return s.serveOn(ctx, ln)
}

func (s *Server) serveOn(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler returns the HTTP handler. For testing with httptest.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// VerifyRequest is the /verify request body.
type VerifyRequest struct {
	ToolName string         `json:"tool_name"`
	ToolArgs map[string]any `json:"tool_args"`
}

// ErrorBody is the error half of a verify response.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// VerifyResponse is the /verify response body. Allowed is true only
// when Error is null.
type VerifyResponse struct {
	Allowed   bool       `json:"allowed"`
	Error     *ErrorBody `json:"error"`
	EvalMS    int64      `json:"eval_ms"`
	RequestID string     `json:"request_id"`
}

// Verify runs one evaluation and always returns a structured response,
// never an error. Usable directly, without HTTP.
func (s *Server) Verify(req VerifyRequest) VerifyResponse {
	t0 := time.Now()
	requestID := uuid.NewString()

	toolName := strings.TrimSpace(req.ToolName)
	if toolName == "" {
		return VerifyResponse{
			Allowed:   false,
			Error:     &ErrorBody{Code: string(guard.CodeInvalidRequest), Message: "missing or empty 'tool_name'"},
			EvalMS:    time.Since(t0).Milliseconds(),
			RequestID: requestID,
		}
	}
	if req.ToolArgs == nil {
		return VerifyResponse{
			Allowed:   false,
			Error:     &ErrorBody{Code: string(guard.CodeInvalidRequest), Message: "'tool_args' must be an object"},
			EvalMS:    time.Since(t0).Milliseconds(),
			RequestID: requestID,
		}
	}

	s.mu.RLock()
	cfg := guard.Config{
		Policy:          s.policy,
		Limits:          s.limits,
		Ring:            s.ring,
		VerifyEvidence:  s.cfg.VerifyEvidence,
		ProposalBaseDir: s.cfg.ProposalBaseDir,
		EvidenceRootDir: s.cfg.EvidenceRootDir,
		Debug:           s.cfg.Debug,
	}
	s.mu.RUnlock()

	err := guard.Evaluate(toolName, req.ToolArgs, cfg)
	evalMS := time.Since(t0).Milliseconds()

	if err == nil {
		log.Printf("ALLOW tool=%s eval_ms=%d request_id=%s", toolName, evalMS, requestID)
		return VerifyResponse{Allowed: true, EvalMS: evalMS, RequestID: requestID}
	}

	ge, ok := guard.AsError(err)
	if !ok {
		ge = &guard.Error{Code: guard.CodeInternalError, Message: "internal verification error"}
	}
	log.Printf("BLOCK tool=%s code=%s eval_ms=%d request_id=%s", toolName, ge.Code, evalMS, requestID)

	body := &ErrorBody{Code: string(ge.Code), Message: ge.Message}
	if s.cfg.Debug && len(ge.Details) > 0 {
		body.Details = ge.Details
	}
	return VerifyResponse{Allowed: false, Error: body, EvalMS: evalMS, RequestID: requestID}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{"error": fmt.Sprintf("expected Content-Type application/json, got %q", ct)})
		return
	}
	if r.ContentLength > MaxRequestBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": fmt.Sprintf("request body too large: %d bytes (max %d)", r.ContentLength, MaxRequestBytes)})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)

	// Bodies that are not a JSON object are rejected before evaluation.
	var rawBody map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&rawBody); err != nil {
		writeJSON(w, http.StatusBadRequest, VerifyResponse{
			Allowed:   false,
			Error:     &ErrorBody{Code: string(guard.CodeInvalidRequest), Message: "request body must be a JSON object"},
			RequestID: uuid.NewString(),
		})
		return
	}

	req := VerifyRequest{}
	req.ToolName, _ = rawBody["tool_name"].(string)
	req.ToolArgs, _ = rawBody["tool_args"].(map[string]any)

	writeJSON(w, http.StatusOK, s.Verify(req))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		// Marshal of our own response types cannot fail in practice;
		// answer something rather than nothing.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(payload)
}
