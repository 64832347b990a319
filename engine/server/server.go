// Package server exposes the command executor over a line-oriented TCP
// protocol: one command per line in, one reply per line out.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/vk-insights/engine/command"
	"github.com/WessleyAI/vk-insights/pkg/metrics"
)

const (
	DefaultAddr         = ":9090"
	defaultMaxLineBytes = 4096
)

// Handler executes one command line.
type Handler interface {
	Handle(ctx context.Context, line string) command.Reply
}

// Config configures a Server.
type Config struct {
	Addr string
	// Rate and Burst bound how fast one connection may issue commands.
	Rate  rate.Limit
	Burst int
	// IdleTimeout closes connections that send nothing for this long.
	// Zero disables it.
	IdleTimeout  time.Duration
	MaxLineBytes int
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Rate == 0 {
		c.Rate = rate.Every(500 * time.Millisecond)
	}
	if c.Burst <= 0 {
		c.Burst = 3
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = defaultMaxLineBytes
	}
	return c
}

// Greeting is the first line a client receives.
func Greeting(addr string) string {
	return fmt.Sprintf("Hi, %s. This is simple asynchronous server. Type 'help' to know what this server can do.", addr)
}

// Server accepts connections and serves each on its own goroutine.
type Server struct {
	cfg     Config
	handler Handler
	log     *slog.Logger
	metrics *metrics.Registry
	wg      sync.WaitGroup
}

// New creates a Server.
func New(cfg Config, h Handler, log *slog.Logger, m *metrics.Registry) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:     cfg.withDefaults(),
		handler: h,
		log:     log.With("component", "server"),
		metrics: m,
	}
}

// ListenAndServe listens on the configured address and serves until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then closes ln and
// every open connection and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("tcp server listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				s.log.Info("tcp server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	session := uuid.NewString()
	remote := conn.RemoteAddr().String()
	log := s.log.With("session", session, "remote", remote)

	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	log.Info("connection established")
	defer log.Info("connection closed")

	w := bufio.NewWriter(conn)
	if err := writeLine(w, []byte(Greeting(remote))); err != nil {
		log.Warn("write greeting", "error", err)
		return
	}

	limiter := rate.NewLimiter(s.cfg.Rate, s.cfg.Burst)
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024), s.cfg.MaxLineBytes)

	for {
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				log.Warn("read", "error", err)
			}
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		line := scanner.Text()
		start := time.Now()
		reply := s.handler.Handle(ctx, line)

		out, err := reply.Encode()
		if err != nil {
			log.Error("encode reply", "error", err)
			out = []byte(`{"error":true,"error_code":5,"error_message":"reply could not be encoded"}`)
		}
		if err := writeLine(w, out); err != nil {
			log.Warn("write reply", "error", err)
			return
		}
		log.Debug("command handled", "line", line, "bytes", len(out), "duration", time.Since(start))
		if reply.Close {
			return
		}
	}
}

func writeLine(w *bufio.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
