// Package webhook is the HTTP ingress of the runtime: it validates inbound
// payloads and signatures, emits webhook-tagged log records, and routes
// events to the ResponseListener or the MetaAgent through the dispatcher.
// Internal errors never reach clients; handlers answer with opaque messages.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/berinia/berinia/pkg/agent"
	"github.com/berinia/berinia/pkg/config"
	"github.com/berinia/berinia/pkg/logger"
)

const twiMLEmpty = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// Server is the webhook HTTP server. All inbound traffic funnels through the
// dispatcher; the server itself holds no agent references.
type Server struct {
	cfg      config.WebhookConfig
	dispatch agent.Dispatcher
	logDir   string
	http     *http.Server
}

// New builds the server. logDir locates webhook.log for the log endpoint.
func New(cfg config.WebhookConfig, dispatch agent.Dispatcher, logDir string) *Server {
	s := &Server{cfg: cfg, dispatch: dispatch, logDir: logDir}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Post("/webhook/whatsapp", s.handleWhatsApp)
	r.Post("/webhook/sms-response", s.handleSMS)
	r.Get("/webhook/logs", s.handleLogs)

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("webhook server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("webhook server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// recoverer turns a handler panic into an opaque 500. Trace strings stay in
// the logs.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("webhook handler panicked",
					slog.String(logger.KeyWebhookSource, "server"),
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec))
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error": "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "berinia-webhook",
	})
}

// handleWhatsApp accepts a JSON message and routes it to the MetaAgent.
// No provider signature applies to this channel.
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	message := firstString(payload, "message", "content", "text", "body")
	if message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required field: message"})
		return
	}

	slog.Info("webhook event received",
		slog.String(logger.KeyWebhookSource, "whatsapp"),
		slog.String(logger.KeyWebhookEvent, "message"),
		"sender", firstString(payload, "sender", "from"))

	result := s.dispatch.Execute(r.Context(), "MetaAgent", map[string]any{
		"message": message,
		"source":  "whatsapp",
		"sender":  firstString(payload, "sender", "from"),
	})
	if agent.IsError(result) {
		slog.Error("whatsapp event processing failed",
			slog.String(logger.KeyWebhookSource, "whatsapp"),
			"error", agent.Message(result))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "processing failed"})
		return
	}

	response, _ := result["response"].(string)
	writeJSON(w, http.StatusOK, map[string]any{"response": response})
}

// handleSMS accepts a form-encoded provider callback. The signature must
// verify against the shared auth token before the listener sees anything;
// a mismatch is a 403. Without a configured token the channel stays closed:
// an unsigned request can never reach the listener.
func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid form body"})
		return
	}

	if s.cfg.TwilioAuthToken == "" {
		slog.Warn("sms webhook rejected, no auth token configured",
			slog.String(logger.KeyWebhookSource, "sms"),
			"remote", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "sms channel not configured"})
		return
	}
	signature := r.Header.Get("X-Twilio-Signature")
	if !ValidateTwilioSignature(s.cfg.TwilioAuthToken, s.requestURL(r), r.PostForm, signature) {
		slog.Warn("sms webhook signature rejected",
			slog.String(logger.KeyWebhookSource, "sms"),
			"remote", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "invalid signature"})
		return
	}

	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing required fields: From, Body"})
		return
	}

	slog.Info("webhook event received",
		slog.String(logger.KeyWebhookSource, "sms"),
		slog.String(logger.KeyWebhookEvent, "sms-response"),
		"sender", from)

	result := s.dispatch.Execute(r.Context(), "ResponseListener", map[string]any{
		"source": "sms",
		"from":   from,
		"to":     r.PostForm.Get("To"),
		"body":   body,
	})
	if agent.IsError(result) {
		slog.Error("sms event processing failed",
			slog.String(logger.KeyWebhookSource, "sms"),
			"error", agent.Message(result))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "processing failed"})
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, twiMLEmpty)
}

// handleLogs returns the last N lines of webhook.log.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "lines must be a positive integer"})
			return
		}
		lines = n
	}

	tail, err := logger.TailFile(filepath.Join(s.logDir, "webhook.log"), lines)
	if err != nil {
		slog.Error("failed to read webhook log", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "log read failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": tail})
}

// requestURL reconstructs the URL the provider signed. Behind a proxy the
// configured public base URL wins over what the listener saw.
func (s *Server) requestURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return joinURL(s.cfg.PublicBaseURL, r.URL.RequestURI())
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func joinURL(base, uri string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	return base + uri
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
