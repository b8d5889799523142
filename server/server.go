// Package server exposes a trained model bundle over HTTP.
//
//	GET  /healthz                 liveness and the loaded model name
//	GET  /api/v1/model            bundle metadata
//	POST /api/v1/predict          one application  -> {approved, probability}
//	POST /api/v1/predict/batch    many applications -> {predictions: [...]}
package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuminosukeSato/loanml/bundle"
	"github.com/YuminosukeSato/loanml/pkg/config"
	"github.com/YuminosukeSato/loanml/pkg/errors"
	"github.com/YuminosukeSato/loanml/pkg/log"
)

// DefaultMaxBatch caps the applications accepted by one batch request.
const DefaultMaxBatch = 1000

// Options configures a Server.
type Options struct {
	Addr string
	// Mode is the gin mode: debug, release or test. Empty leaves it unchanged.
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBatch        int
	Logger          log.Logger
}

// OptionsFromConfig maps the server section of the configuration.
func OptionsFromConfig(cfg config.ServerConfig) Options {
	return Options{
		Addr:            cfg.Addr,
		Mode:            cfg.Mode,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		CORSOrigins:     cfg.CORSOrigins,
	}
}

// Server serves predictions from one bundle.
type Server struct {
	bundle *bundle.Bundle
	opts   Options
	logger log.Logger
	engine *gin.Engine
}

// New builds the router. The bundle must be valid.
func New(b *bundle.Bundle, opts Options) (*Server, error) {
	if b == nil {
		return nil, errors.NewValueError("server.New", "bundle is nil")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLoggerWithName("server")
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	setupValidator()

	s := &Server{
		bundle: b,
		opts:   opts,
		logger: opts.Logger.With(log.ComponentKey, "server"),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(RequestID(), RequestLogger(s.logger), Recovery(), CORS(s.opts.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		abortWithError(c, http.StatusMethodNotAllowed, CodeMethodNotAllow, "method not allowed")
	})

	r.GET("/healthz", s.handleHealth)
	v1 := r.Group("/api/v1")
	{
		v1.GET("/model", s.handleModel)
		v1.POST("/predict", s.handlePredict)
		v1.POST("/predict/batch", s.handlePredictBatch)
	}
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on Options.Addr until ctx is cancelled, then shuts down
// gracefully within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener. It takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening",
			"addr", ln.Addr().String(),
			log.ModelNameKey, s.bundle.Metadata.ModelName,
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	s.logger.Info("Server exited")
	return nil
}
