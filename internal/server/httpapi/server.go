package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/newwaysadmin/slipsync/internal/common"
	"github.com/newwaysadmin/slipsync/internal/logging"
)

type Server struct {
	address string
	handler *Handler
	origins []string
	logger  logging.Logger
}

func NewServer(address string, handler *Handler, corsOrigins []string, logger logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		origins: corsOrigins,
		logger:  logger.With("component", "http_server"),
	}
}

// Routes builds the API mux. Exposed for httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handler.Ping)
	mux.HandleFunc("POST /api/sync/negotiate", s.handler.Negotiate)
	mux.HandleFunc("POST /api/sync/pull", s.handler.Pull)
	mux.HandleFunc("POST /api/sync/pull-batch", s.handler.BatchPull)
	mux.HandleFunc("POST /api/sync/push", s.handler.Push)
	mux.HandleFunc("POST /api/sync/push-batch", s.handler.BatchPush)
	mux.HandleFunc("POST /api/sync/close", s.handler.Close)
	mux.HandleFunc("POST /api/sync/pull-asset", s.handler.PullAsset)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", common.DeviceIDHeaderName},
	})
	return c.Handler(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
