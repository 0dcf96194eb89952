package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server exposes the pad to devices on the LAN: the remote pad page, its
// WebSocket input stream and snapshots of the surface.
type Server struct {
	srv    *http.Server
	remote *Remote
	logger *zap.Logger
	ln     net.Listener
	done   chan struct{}
}

// NewServer routes /ws to remote input and everything it does not know
// about to assets, which is normally the offline cache.
func NewServer(listen string, sink Sink, assets http.Handler, logger *zap.Logger) *Server {
	s := &Server{
		remote: NewRemote(sink, logger),
		logger: logger.Named("http"),
		done:   make(chan struct{}),
	}
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.routes(sink, assets),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(sink Sink, assets http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	r.Get("/snapshot.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if err := sink.ExportPNG(w); err != nil {
			s.snapshotFailed(w, err)
		}
	})
	r.Get("/snapshot.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if err := sink.ExportPDF(w); err != nil {
			s.snapshotFailed(w, err)
		}
	})
	r.Handle("/ws", s.remote)
	if assets != nil {
		r.NotFound(assets.ServeHTTP)
		r.MethodNotAllowed(assets.ServeHTTP)
	}
	return r
}

// snapshotFailed relies on the exporters rejecting an empty surface before
// writing anything.
func (s *Server) snapshotFailed(w http.ResponseWriter, err error) {
	s.logger.Warn("snapshot failed", zap.Error(err))
	w.Header().Del("Content-Type")
	http.Error(w, "snapshot unavailable", http.StatusServiceUnavailable)
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Remote() *Remote { return s.remote }

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("serving remote pad", zap.String("addr", ln.Addr().String()))
	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Hijacked WebSockets are not tracked by http.Server.
	s.remote.Registry().CloseAll()
	err := s.srv.Shutdown(ctx)
	if s.ln != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
		}
	}
	return err
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())),
				zap.String("remoteAddr", r.RemoteAddr),
			)
		})
	}
}
