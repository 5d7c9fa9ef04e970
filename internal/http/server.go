// Package http serves the tripplanner JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"tripplanner/internal/auth"
	"tripplanner/internal/auth/oidc"
	"tripplanner/internal/billing"
	"tripplanner/internal/export"
	"tripplanner/internal/gateway"
	"tripplanner/internal/observability"
	"tripplanner/internal/planning"
	"tripplanner/internal/realtime"
	"tripplanner/internal/storage"
)

const maxBodyBytes = 1 << 20

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Travel answers provider lookups by kind.
type Travel interface {
	Call(ctx context.Context, kind gateway.Kind, params map[string]string) (gateway.Result[any], error)
}

// Deps are the services the API serves. OIDC and Sealer may be nil, which
// disables OIDC sign-in. Zones may be nil, which renders calendar times
// floating.
type Deps struct {
	Store        storage.Store
	Auth         *auth.Service
	OIDC         *oidc.Provider
	Sealer       *oidc.Sealer
	Orchestrator *planning.Orchestrator
	Travel       Travel
	Billing      *billing.Service
	Hub          *realtime.Hub
	Zones        export.ZoneFinder
	Logger       observability.Logger
	Metrics      *observability.Metrics
	// ReadyChecks are pinged by /readyz, keyed by the name reported.
	ReadyChecks map[string]Pinger
}

// Config holds the HTTP-facing settings.
type Config struct {
	// PublicURL is the externally visible base URL, used for share links.
	PublicURL      string
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	// SignInAttemptsPerMinute limits credential attempts per client; 0
	// disables the limit.
	SignInAttemptsPerMinute int
	// SecureCookies forces the Secure flag regardless of the request scheme.
	SecureCookies bool
}

// Server holds the API handlers.
type Server struct {
	mux          *http.ServeMux
	store        storage.Store
	auth         *auth.Service
	oidc         *oidc.Provider
	sealer       *oidc.Sealer
	orchestrator *planning.Orchestrator
	generator    *planning.Generator
	travel       Travel
	billing      *billing.Service
	hub          *realtime.Hub
	zones        export.ZoneFinder
	logger       observability.Logger
	metrics      *observability.Metrics
	ready        map[string]Pinger
	cfg          Config
	now          func() time.Time
}

// NewServer creates the API server and registers its routes.
func NewServer(deps Deps, cfg Config) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	s := &Server{
		mux:          http.NewServeMux(),
		store:        deps.Store,
		auth:         deps.Auth,
		oidc:         deps.OIDC,
		sealer:       deps.Sealer,
		orchestrator: deps.Orchestrator,
		travel:       deps.Travel,
		billing:      deps.Billing,
		hub:          deps.Hub,
		zones:        deps.Zones,
		logger:       logger.WithComponent("http"),
		metrics:      deps.Metrics,
		ready:        deps.ReadyChecks,
		cfg:          cfg,
		now:          time.Now,
	}
	if deps.Orchestrator != nil {
		s.generator = deps.Orchestrator.Generator()
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPISpec)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("POST /api/v1/auth/signup", s.handleSignUp)
	s.mux.HandleFunc("POST /api/v1/auth/signin", s.handleSignIn)
	s.mux.HandleFunc("POST /api/v1/auth/signout", s.handleSignOut)
	s.mux.HandleFunc("GET /api/v1/auth/me", s.authed(s.handleMe))
	s.mux.HandleFunc("GET /api/v1/auth/oidc/login", s.handleOIDCLogin)
	s.mux.HandleFunc("GET /api/v1/auth/oidc/callback", s.handleOIDCCallback)

	s.mux.HandleFunc("GET /api/v1/trips", s.authed(s.handleListTrips))
	s.mux.HandleFunc("POST /api/v1/trips", s.authed(s.handleCreateTrip))
	s.mux.HandleFunc("GET /api/v1/trips/{id}", s.authed(s.handleGetTrip))
	s.mux.HandleFunc("PATCH /api/v1/trips/{id}", s.authed(s.handleUpdateTrip))
	s.mux.HandleFunc("DELETE /api/v1/trips/{id}", s.authed(s.handleDeleteTrip))
	s.mux.HandleFunc("POST /api/v1/trips/{id}/itinerary", s.authed(s.handleGenerateItinerary))
	s.mux.HandleFunc("GET /api/v1/trips/{id}/generations", s.authed(s.handleListGenerations))
	s.mux.HandleFunc("POST /api/v1/trips/{id}/share", s.authed(s.handleShareTrip))
	s.mux.HandleFunc("GET /api/v1/trips/{id}/export.pdf", s.authed(s.handleExportPDF))
	s.mux.HandleFunc("GET /api/v1/trips/{id}/export.ics", s.authed(s.handleExportICal))
	s.mux.HandleFunc("GET /api/v1/shared/{shareID}", s.handleSharedTrip)
	s.mux.HandleFunc("GET /api/v1/dashboard/stats", s.authed(s.handleDashboardStats))

	s.mux.HandleFunc("POST /api/v1/chat", s.authed(s.handleChat))
	s.mux.HandleFunc("GET /api/v1/chat/sessions", s.authed(s.handleListSessions))
	s.mux.HandleFunc("GET /api/v1/chat/sessions/{id}", s.authed(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/v1/chat/sessions/{id}", s.authed(s.handleDeleteSession))
	s.mux.HandleFunc("GET /api/v1/chat/sessions/{id}/messages", s.authed(s.handleListMessages))

	s.mux.HandleFunc("GET /api/v1/travel/{kind}", s.authed(s.handleTravel))

	s.mux.HandleFunc("GET /api/v1/billing/plans", s.handlePlans)
	s.mux.HandleFunc("POST /api/v1/billing/checkout", s.authed(s.handleCheckout))
	s.mux.HandleFunc("POST /api/v1/billing/portal", s.authed(s.handlePortal))
	s.mux.HandleFunc("GET /api/v1/billing/subscription", s.authed(s.handleSubscription))
	s.mux.HandleFunc("POST /api/v1/billing/webhook", s.handleWebhook)

	if s.hub != nil {
		live := realtime.NewHandler(s.hub, s.store, func(r *http.Request) string {
			return auth.UserID(r.Context())
		}, s.allowOrigin, s.logger, s.metrics)
		s.mux.Handle("GET /api/v1/realtime", live)
	}

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.writeErr(r.Context(), w, http.StatusNotFound, "not found", "")
	})
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	slogger := s.logger.Slog()
	return ApplyMiddlewares(s.mux,
		observability.MetricsMiddleware(s.metrics),
		RequestIDMiddleware(),
		LoggingMiddleware(slogger),
		CORSMiddleware(s.cfg.AllowedOrigins),
		observability.RateLimitMetricsMiddleware(s.metrics, s.cfg.RateLimit.Enabled()),
		RateLimitMiddleware(s.cfg.RateLimit, slogger),
		SignInRateLimitMiddleware(s.cfg.SignInAttemptsPerMinute, s.cfg.RateLimit.TrustedProxies),
		IdentityMiddleware(s.auth, slogger),
		CSRFMiddleware(),
	)
}

// ServeHTTP serves the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// authed rejects anonymous callers and passes the user id on.
func (s *Server) authed(h func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		if userID == "" {
			s.writeErr(r.Context(), w, http.StatusUnauthorized, "unauthorized", "missing authentication")
			return
		}
		h(w, r, userID)
	}
}

// allowOrigin decides websocket origins with the CORS allow list: any
// listed origin, any origin for "*", else only the API's own host.
func (s *Server) allowOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a service error to its HTTP status and writes it.
// Unknown errors become 500 with the cause kept out of the response body.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrConflict),
		errors.Is(err, planning.ErrGenerationInProgress):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrValidation),
		errors.Is(err, planning.ErrNoDestination),
		errors.Is(err, billing.ErrNoCustomer),
		errors.Is(err, billing.ErrInvalidSignature),
		errors.Is(err, gateway.ErrUnknownKind),
		errors.Is(err, gateway.ErrInvalidParams):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, storage.ErrNotAuthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, oidc.ErrInvalidState),
		errors.Is(err, oidc.ErrStateExpired),
		errors.Is(err, oidc.ErrNonceMismatch):
		s.writeErr(ctx, w, http.StatusUnauthorized, err.Error(), "")
	case errors.Is(err, billing.ErrQuotaExceeded),
		errors.Is(err, billing.ErrFeatureLocked):
		s.writeErr(ctx, w, http.StatusPaymentRequired, err.Error(), "")
	case errors.Is(err, gateway.ErrCredentialsMissing):
		s.writeErr(ctx, w, http.StatusServiceUnavailable, "provider not configured", err.Error())
	case errors.Is(err, gateway.ErrActionFailed):
		s.writeErr(ctx, w, http.StatusBadGateway, "payment provider error", err.Error())
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// decodeJSON reads a bounded JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "request body required", "")
			return false
		}
		s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid json", err.Error())
		return false
	}
	return true
}
