// ABOUTME: Server orchestrator that wires the store, result cache, archiver and web UI
// ABOUTME: Owns the HTTP listener lifecycle, the expired-session sweeper and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/labmap/internal/archive"
	"github.com/2389/labmap/internal/config"
	"github.com/2389/labmap/internal/resultcache"
	"github.com/2389/labmap/internal/store"
	"github.com/2389/labmap/internal/webui"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 10 * time.Minute

// Server runs the labmap web application.
type Server struct {
	config     *config.Config
	store      store.Store
	results    *resultcache.Cache
	archiver   archive.Archiver
	webUI      *webui.UI
	httpServer *http.Server
	logger     *slog.Logger

	sweepInterval time.Duration
}

// OpenStore opens the user directory selected by cfg.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	case config.DriverSQLite, "":
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// initArchiver returns the S3 archiver when enabled, archive.Nop otherwise.
func initArchiver(ctx context.Context, cfg config.ArchiveConfig) (archive.Archiver, error) {
	if !cfg.Enabled {
		return archive.Nop{}, nil
	}
	a, err := archive.NewS3Archiver(ctx, archive.S3Config{
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		Region:       cfg.Region,
		Endpoint:     cfg.Endpoint,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		UsePathStyle: cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing archiver: %w", err)
	}
	return a, nil
}

// New opens the store and archiver named by cfg and builds the HTTP server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	archiver, err := initArchiver(ctx, cfg.Archive)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return newServer(cfg, s, archiver, logger), nil
}

func newServer(cfg *config.Config, s store.Store, archiver archive.Archiver, logger *slog.Logger) *Server {
	results := resultcache.New(cfg.Mapping.ResultTTL, cfg.Mapping.ResultCacheSize)

	ui := webui.New(s, results, archiver, webui.Config{
		SessionDuration: cfg.Session.Duration,
		PreviewRows:     cfg.Mapping.PreviewRows,
		MaxUploadBytes:  cfg.Mapping.MaxUploadBytes(),
		SecureCookies:   cfg.Server.SecureCookies,
	})

	srv := &Server{
		config:        cfg,
		store:         s,
		results:       results,
		archiver:      archiver,
		webUI:         ui,
		logger:        logger,
		sweepInterval: DefaultSweepInterval,
	}

	srv.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           ui.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens on the configured address and blocks until ctx is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		s.sweepSessions(sweepCtx)
	}()

	errCh := s.startServer(ln)
	serverErr := s.waitForShutdownSignal(ctx, errCh)

	stopSweep()
	<-sweepDone

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startServer serves HTTP in a goroutine, returning its error channel.
func (s *Server) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		return err
	}
}

// sweepSessions purges expired sessions until ctx is canceled.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.DeleteExpiredSessions(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to delete expired sessions", "error", err)
			}
		}
	}
}

// gracefulShutdown uses a fresh context since the serving context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases the cache and store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down labmap")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	s.results.Close()
	errs = appendCloseError(errs, "store close", s.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
