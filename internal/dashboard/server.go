// Package dashboard serves the CO2 dashboard: server-rendered group cards,
// the login flow and a small JSON API, all scoped to the session carried
// in the jwt-co2 cookie.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/blikh/co2-dashboard/internal/config"
	"github.com/blikh/co2-dashboard/internal/group"
	"github.com/blikh/co2-dashboard/internal/metrics"
	"github.com/blikh/co2-dashboard/internal/session"
)

// GroupSource fetches groups on behalf of a session token.
type GroupSource interface {
	ListGroups(ctx context.Context, token string) ([]group.Group, error)
	GetGroup(ctx context.Context, token, groupID string) (group.Group, error)
}

// Favourites persists per-user favourite groups.
type Favourites interface {
	ListFavourites(userID string) (map[string]struct{}, error)
	ToggleFavourite(userID, groupID string) (bool, error)
}

// HealthReporter reports whether the backend API answered its last probe.
type HealthReporter interface {
	Healthy() bool
}

// Server serves the dashboard web interface and JSON API.
type Server struct {
	verifier      session.Verifier
	groups        GroupSource
	favourites    Favourites
	health        HealthReporter
	cookies       session.CookieOptions
	verifyTimeout time.Duration
	frontendURL   string
	listen        string
	pages         *pages
	logger        *slog.Logger
}

// New creates a dashboard server. health may be nil when probing is off.
func New(
	cfg *config.Config,
	verifier session.Verifier,
	groups GroupSource,
	favourites Favourites,
	health HealthReporter,
	logger *slog.Logger,
) (*Server, error) {
	p, err := loadPages()
	if err != nil {
		return nil, err
	}
	return &Server{
		verifier:   verifier,
		groups:     groups,
		favourites: favourites,
		health:     health,
		cookies: session.CookieOptions{
			Name:   cfg.Session.CookieName,
			Domain: cfg.Session.CookieDomain,
			Secure: cfg.Session.CookieSecure,
		},
		verifyTimeout: cfg.Session.VerifyTimeoutDuration(),
		frontendURL:   cfg.Frontend.BaseURL,
		listen:        cfg.Listen,
		pages:         p,
		logger:        logger,
	}, nil
}

// Handler returns the routed handler. It is what Run serves and what tests
// drive through httptest.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/groups/{id}", s.handleGroup).Methods(http.MethodGet)
	r.HandleFunc("/groups/{id}/favourite", s.handleFavourite).Methods(http.MethodPost)
	r.HandleFunc("/groups/{id}/{intent:donate|limit|stats}", s.handleIntent).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleAPISession).Methods(http.MethodGet)
	api.HandleFunc("/groups", s.handleAPIGroups).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id}/favourite", s.handleAPIFavourite).Methods(http.MethodPost)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(staticHandler())

	return r
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("dashboard: listen %s: %w", s.listen, err)
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	s.logger.Info("dashboard server started", "listen", s.listen)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard: serve: %w", err)
	}
	return nil
}

// openSession builds the request-scoped session over the request cookie
// and waits for any verification it kicked off. Callers must Apply the
// returned cookie storage before writing the response.
func (s *Server) openSession(r *http.Request) (*session.Store, *session.CookieStorage, error) {
	cookies := session.NewCookieStorage(r, s.cookies)
	sess := session.New(r.Context(), session.Options{
		Storage:  cookies,
		Verifier: s.verifier,
		Timeout:  s.verifyTimeout,
		Logger:   s.logger,
	})
	if err := sess.Wait(r.Context()); err != nil {
		sess.Close()
		return nil, nil, err
	}
	return sess, cookies, nil
}

// frontendRedirect hands the user over to an external flow.
func (s *Server) frontendRedirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, s.frontendURL+path, http.StatusSeeOther)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("dashboard: request",
			"method", r.Method, "route", route, "status", rec.status, "duration", time.Since(start))
	})
}
