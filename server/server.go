package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-gps/api"
	"github.com/momentics/hioload-gps/control"
	"github.com/momentics/hioload-gps/internal/concurrency"
	"github.com/momentics/hioload-gps/pool"
	"github.com/momentics/hioload-gps/protocol"
)

// acceptBackoff bounds the pause after a temporary accept failure.
const acceptBackoff = time.Second

// NewServer builds the Server facade around the validation and storage collaborators.
func NewServer(cfg *Config, v api.Validator, st api.RecordStore, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if v == nil || st == nil {
		return nil, fmt.Errorf("%w: validator and store are required", api.ErrInvalidArgument)
	}
	c := *cfg

	s := &Server{
		cfg:       &c,
		log:       zap.NewNop(),
		validator: v,
		store:     st,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = control.NewMetrics()
	}

	s.bufPool = pool.NewBytePool(s.cfg.ReadBufferSize)
	s.dispatcher = protocol.NewDispatcher(v, st,
		protocol.WithDispatchLogger(s.log),
		protocol.WithDispatchMetrics(s.metrics))
	s.exec = concurrency.NewExecutor(s.cfg.Workers, s.cfg.MaxPending,
		concurrency.WithPanicHandler(func(r any) {
			s.log.Error("connection handler panicked", zap.Any("panic", r))
		}))
	return s, nil
}

// Config returns a copy of the effective configuration.
func (s *Server) Config() Config {
	return *s.cfg
}

// Metrics exposes the server's counter registry.
func (s *Server) Metrics() *control.Metrics {
	return s.metrics
}

// Stats returns a snapshot of counters and executor state.
func (s *Server) Stats() map[string]any {
	return map[string]any{
		"metrics":  s.metrics.GetSnapshot(),
		"executor": s.exec.Stats(),
	}
}

// ListenAndServe binds cfg.ListenAddr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := Listen(ctx, s.cfg.ListenAddr, s.cfg.ReusePort)
	if err != nil {
		return api.WrapError(api.ErrCodeTransport, "listen", err).WithContext("addr", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled or ln fails, then waits up to
// cfg.ShutdownTimeout for running connections to finish. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.ln, s.cancel = ln, cancel
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.log.Info("listening", zap.Stringer("addr", ln.Addr()))

	var serveErr error
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("temporary accept failure", zap.Error(err))
				time.Sleep(acceptBackoff)
				continue
			}
			serveErr = api.WrapError(api.ErrCodeTransport, "accept", err)
			break
		}
		s.metrics.Inc(control.MetricConnsAccepted)

		if err := s.exec.Submit(func() { s.serveConn(ctx, nc) }); err != nil {
			s.metrics.Inc(control.MetricConnsRejected)
			s.log.Warn("rejecting connection", zap.Stringer("remote", nc.RemoteAddr()), zap.Error(err))
			nc.Close()
		}
	}

	cancel()
	ln.Close()
	s.exec.Close()

	wctx, wcancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer wcancel()
	if err := s.exec.Wait(wctx); err != nil {
		s.log.Warn("shutdown timed out with connections still running", zap.Error(err))
	}
	s.log.Info("server stopped")
	return serveErr
}

// Addr returns the address of the listener being served, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops a running Serve as if its context had been cancelled.
func (s *Server) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	log := s.log.With(zap.Stringer("remote", nc.RemoteAddr()))
	log.Info("connection accepted")

	s.metrics.Inc(control.MetricConnsActive)
	defer s.metrics.Dec(control.MetricConnsActive)

	c := protocol.NewConn(nc, s.dispatcher,
		protocol.WithLogger(log),
		protocol.WithMetrics(s.metrics),
		protocol.WithBufferPool(s.bufPool),
		protocol.WithIdleTimeout(s.cfg.IdleTimeout),
		protocol.WithMaxFrameSize(s.cfg.MaxFrameSize))

	err := c.Serve(ctx)
	switch {
	case err == nil:
		log.Info("connection finished")
	case errors.Is(err, api.ErrValidation), errors.Is(err, api.ErrHandshake):
		log.Warn("connection dropped", zap.Stringer("kind", api.CodeOf(err)), zap.Error(err))
	default:
		log.Error("connection failed", zap.Stringer("kind", api.CodeOf(err)), zap.Error(err))
	}
}
