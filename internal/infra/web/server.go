package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"advisor-live-chat/internal/infra/i18n"
	"advisor-live-chat/internal/infra/logging"
	"advisor-live-chat/internal/usecase"
)

// Server exposes the live-chat core over HTTP: a client surface for
// polling session state and sending messages, and an admin surface for
// the availability switch and the accept/end controls.
type Server struct {
	sessUC  usecase.SessionUseCase
	msgUC   usecase.MessageUseCase
	availUC usecase.AvailabilityUseCase
	tr      *i18n.Translator
	apiKey  string
	auth    *AuthManager
	log     *zerolog.Logger
}

func NewServer(
	sessUC usecase.SessionUseCase,
	msgUC usecase.MessageUseCase,
	availUC usecase.AvailabilityUseCase,
	tr *i18n.Translator,
	apiKey string,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		sessUC:  sessUC,
		msgUC:   msgUC,
		availUC: availUC,
		tr:      tr,
		apiKey:  apiKey,
		auth:    auth,
		log:     &srvLog,
	}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Client surface. Client identity arrives from the surrounding
		// app's auth layer; this core trusts the forwarded ids.
		r.Get("/availability", s.handleAvailability)
		r.Post("/orders/live-chat/precheck", s.handlePurchasePrecheck)
		r.Route("/chat", func(r chi.Router) {
			r.Get("/by-order/{orderID}", s.handleSessionByOrder)
			r.Get("/{sessionID}", s.handleSessionState)
			r.Get("/{sessionID}/messages", s.handleListMessages)
			r.Post("/{sessionID}/messages", s.handleClientSend)
		})

		// Admin surface, behind API key / admin JWT.
		r.Post("/admin/login", s.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/admin/availability", s.handleAvailability)
			r.Put("/admin/availability", s.handleSetAvailability)
			r.Get("/admin/sessions/ringing", s.handleListRinging)
			r.Post("/admin/sessions/{sessionID}/accept", s.handleAccept)
			r.Post("/admin/sessions/{sessionID}/end", s.handleEnd)
			r.Post("/admin/sessions/{sessionID}/messages", s.handleAdminSend)
		})
	})

	return r
}

// requestLogger carries the chi request id through the context as the
// trace id, so downstream log lines correlate with the access log.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// authMiddleware accepts either the raw admin API key as a Bearer token
// or a previously minted admin JWT (header or cookie).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if hdr := r.Header.Get("Authorization"); hdr != "" {
			parts := strings.SplitN(hdr, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
				return
			}
			if parts[1] == s.apiKey {
				next.ServeHTTP(w, r)
				return
			}
		}

		if s.auth != nil {
			if _, err := s.auth.ParseFromRequest(r); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

// handleAdminLogin trades the API key for a short-lived admin session
// cookie so browser-based admin tooling does not carry the key around.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	hdr := r.Header.Get("Authorization")
	parts := strings.SplitN(hdr, " ", 2)
	if s.apiKey == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] != s.apiKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := s.auth.Mint(w); err != nil {
		s.log.Error().Err(err).Msg("mint admin session")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
