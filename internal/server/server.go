// Package server implements the TCP chat server: the accept loop, the
// per-connection handler state machine (greet, register, serve, terminate),
// and the admin HTTP surface exposing statistics, the audit log, and
// Prometheus metrics.
package server

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/talkline/chat-app/internal/ratelimit"
	"github.com/talkline/chat-app/internal/registry"
)

// Config holds the tunable parameters of the TCP server.
type Config struct {
	Addr           string        // listen address, e.g. "0.0.0.0:10000" (port 0 picks a free port)
	MaxMessageSize int           // per-frame byte cap, terminator included
	ReadTimeout    time.Duration // timeout for the name-registration read
	RateLimit      ratelimit.Rule
}

// DefaultConfig returns a Config with the documented protocol defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           "0.0.0.0:10000",
		MaxMessageSize: 4096,
		ReadTimeout:    30 * time.Second,
		RateLimit:      ratelimit.Rule{Limit: 10, Window: time.Second},
	}
}

// Server accepts TCP connections and serves the chat protocol over them. One
// goroutine per connection; all shared state lives in the registry.
type Server struct {
	cfg       Config
	reg       *registry.Registry
	log       zerolog.Logger
	ln        net.Listener
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
	startedAt time.Time
}

// New creates a Server bound to the given registry.
func New(cfg Config, reg *registry.Registry, logger zerolog.Logger) *Server {
	return &Server{
		cfg:  cfg,
		reg:  reg,
		log:  logger,
		quit: make(chan struct{}),
	}
}

// Listen binds the configured address and starts accepting connections in a
// background goroutine.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.startedAt = time.Now()
	s.log.Info().Stringer("addr", ln.Addr()).Msg("server listening")

	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the listener's address. Useful with ":0" in tests.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// serve runs the accept loop until Shutdown closes the listener.
func (s *Server) serve() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				s.log.Warn().Err(err).Msg("accept error")
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(nc)
	}
}

// Shutdown stops accepting, closes every connected socket to unblock the
// readers, and waits for all handlers to finish their terminating sequence.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.ln != nil {
			_ = s.ln.Close()
		}
		for _, c := range s.reg.Clients() {
			_ = c.CloseWriter()
		}
		s.wg.Wait()
		s.log.Info().Msg("server stopped, all connections closed")
	})
}
