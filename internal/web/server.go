package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/willemschots/cardhub/internal"
	"github.com/willemschots/cardhub/internal/account"
	"github.com/willemschots/cardhub/internal/card"
	"github.com/willemschots/cardhub/internal/krypto"
)

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger   *slog.Logger
	Cards    *card.Service
	Accounts *account.Service
	Gatherer prometheus.Gatherer
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	JWTKey         krypto.Key
	JWTExpiry      time.Duration
	AllowedOrigins []string
	// RateLimit is the number of auth and approval requests allowed
	// per IP per minute.
	RateLimit      int
	RequestTimeout time.Duration
}

type Server struct {
	deps    *ServerDeps
	cfg     ServerConfig
	decoder *schema.Decoder
	handler http.Handler

	NowFunc func() time.Time
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		decoder: decoder,
		NowFunc: time.Now,
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.logRequests,
		middleware.Recoverer,
		middleware.Timeout(cfg.RequestTimeout),
	)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = writeJSON(w, http.StatusOK, struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		}{
			Status:  "ok",
			Version: internal.BuildRevision,
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))

	// Public card page.
	r.Method(http.MethodGet, "/c/{shortName}", s.publicCardHandler())

	// Endpoints that are reachable without an access token are rate limited.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))

		r.Method(http.MethodPost, "/auth/register", mapBoth(s, s.register).status(http.StatusCreated))
		r.Method(http.MethodPost, "/auth/login", mapBoth(s, s.login))

		// Approval links as sent by email.
		for _, kind := range []card.Kind{card.KindEdit, card.KindDelete, card.KindEmailEdit} {
			r.Method(http.MethodGet, "/cards/approve-"+string(kind)+"-request", s.approveHandler(kind))
		}
		r.Method(http.MethodGet, "/cards/approve-card", s.approveHandler(card.KindActivate))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.loggedIn)

		r.Method(http.MethodGet, "/auth/me", mapBoth(s, s.me).request(noBody))

		r.Method(http.MethodPost, "/cards", s.createCardHandler())
		r.Method(http.MethodGet, "/cards", s.listCardsHandler())
		r.Method(http.MethodPost, "/cards/check-short-name", s.checkShortNameHandler())

		r.Method(http.MethodGet, "/cards/{id}", s.getCardHandler())
		r.Method(http.MethodPut, "/cards/{id}", s.editCardHandler())
		r.Method(http.MethodDelete, "/cards/{id}", s.deleteCardHandler())
		r.Method(http.MethodPatch, "/cards/{id}/email", s.editEmailHandler())

		r.Method(http.MethodPost, "/cards/{id}/edit-request", s.requestActionHandler(card.KindEdit))
		r.Method(http.MethodPost, "/cards/{id}/delete-request", s.requestActionHandler(card.KindDelete))
		r.Method(http.MethodPost, "/cards/{id}/email-edit-request", s.requestActionHandler(card.KindEmailEdit))
		r.Method(http.MethodPost, "/cards/{id}/activate-request", s.requestActionHandler(card.KindActivate))

		r.Method(http.MethodPost, "/markers", s.createMarkerHandler())
		r.Method(http.MethodGet, "/markers", s.listMarkersHandler())
		r.Method(http.MethodDelete, "/markers/{uniqueID}", s.deleteMarkerHandler())
	})

	s.handler = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.deps.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func noBody(*http.Request) (struct{}, error) {
	return struct{}{}, nil
}
