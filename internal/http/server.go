package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"muze/internal/core"
)

const (
	shutdownTimeout  = 10 * time.Second
	maxFragmentBytes = 4096
)

// TokenStore is the part of the auth store the web surface needs.
type TokenStore interface {
	GetToken() (core.BearerToken, bool)
	LoginURL() string
	AcceptFragment(fragment string) error
}

type Server struct {
	config *core.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// Paths that are polled too often to be worth a request log line.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func NewServer(config *core.ServerConfig, tokens TokenStore, hub *Hub, registry *prometheus.Registry, logger *zap.Logger) *Server {
	router := setupRoutes(tokens, hub, registry, logger)

	return &Server{
		config: config,
		logger: logger,
		server: createHTTPServer(config, router),
	}
}

func createHTTPServer(config *core.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
}

func setupRoutes(tokens TokenStore, hub *Hub, registry *prometheus.Registry, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":"ok","service":"muze"}`)
	})
	r.Get("/readyz", readyzHandler(tokens))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Get("/ws", hub.ServeWS)
	r.Post("/token", tokenHandler(tokens, logger))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/", homeHandler(tokens))
		r.Get("/login", loginHandler(tokens))
		r.Get("/callback", callbackHandler())
	})

	return r
}

// requestLogger logs each request through zap, skipping the quiet paths.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())))
		})
	}
}

func homeHandler(tokens TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tokens.GetToken(); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		writeHTML(w, playerPage)
	}
}

func loginHandler(tokens TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, tokens.LoginURL(), http.StatusFound)
	}
}

// callbackHandler serves a page that forwards the URL fragment, which never reaches the server, to /token.
func callbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHTML(w, callbackPage)
	}
}

func tokenHandler(tokens TokenStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxFragmentBytes))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		fragment := strings.TrimPrefix(strings.TrimSpace(string(body)), "#")
		if err := tokens.AcceptFragment(fragment); err != nil {
			logger.Warn("Rejected authorization fragment", zap.Error(err))
			switch {
			case errors.Is(err, core.ErrTokenAlreadySet):
				http.Error(w, "token already set", http.StatusConflict)
			case errors.Is(err, core.ErrInvalidOAuthState):
				http.Error(w, "invalid state", http.StatusForbidden)
			default:
				http.Error(w, "invalid authorization response", http.StatusBadRequest)
			}
			return
		}

		logger.Info("Accepted bearer token")
		w.WriteHeader(http.StatusNoContent)
	}
}

func readyzHandler(tokens TokenStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if _, ok := tokens.GetToken(); !ok {
			writeJSON(w, http.StatusServiceUnavailable, `{"status":"waiting_for_login","service":"muze"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"status":"ready","service":"muze"}`)
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func writeHTML(w http.ResponseWriter, page string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
