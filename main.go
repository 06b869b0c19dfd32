// Command couchsim serves a local document store over the CouchDB HTTP
// protocol subset used by the datasource adapter.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stevemurr/docsource/config"
	"github.com/stevemurr/docsource/handler"
	"github.com/stevemurr/docsource/logger"
	"github.com/stevemurr/docsource/metrics"
	"github.com/stevemurr/docsource/schema"
	"github.com/stevemurr/docsource/store"
)

// corsMiddleware wraps an http.Handler with CORS headers.
func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-Match")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ensureDBs creates the configured databases, ignoring ones that exist.
func ensureDBs(s store.Store, names []string, log zerolog.Logger) error {
	for _, name := range names {
		err := s.CreateDB(name)
		switch {
		case err == nil:
			log.Info().Str("db", name).Msg("created database")
		case errors.Is(err, store.ErrDBExists):
		default:
			return err
		}
	}
	return nil
}

func main() {
	configPath := flag.String("config", os.Getenv("COUCHSIM_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(logger.Config{Level: cfg.Server.LogLevel, Service: "couchsim"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	srv := cfg.Server

	s, err := store.New(srv.Backend, srv.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("backend", srv.Backend).Msg("failed to create store")
	}
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}
	if err := ensureDBs(s, srv.DBs, log); err != nil {
		log.Fatal().Err(err).Msg("failed to create databases")
	}

	schemas := make(map[string]schema.Schema, len(srv.Schemas))
	for db, path := range srv.Schemas {
		sch, err := schema.Load(path)
		if err != nil {
			log.Fatal().Err(err).Str("db", db).Msg("failed to load schema")
		}
		schemas[db] = sch
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	h := handler.New(s,
		handler.WithAuth(srv.Admin, srv.Password),
		handler.WithSchemas(schemas),
		handler.WithLogger(logger.Component(log, "http")),
		handler.WithMetrics(m),
	)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", h)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(srv.Host, srv.Port),
		Handler:           corsMiddleware(mux, strings.Split(srv.Origins, ",")),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("store", srv.Backend).
			Str("data", srv.DataDir).
			Bool("auth", srv.Admin != "").
			Msg("couchsim starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
