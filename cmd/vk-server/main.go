// Command vk-server serves the friends and photos commands over a line
// protocol, exposes health, metrics and report endpoints over HTTP and,
// when NATS_URL is set, answers command requests on a NATS subject.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/vk-insights/engine/command"
	"github.com/WessleyAI/vk-insights/engine/fetch"
	"github.com/WessleyAI/vk-insights/engine/group"
	"github.com/WessleyAI/vk-insights/engine/report"
	"github.com/WessleyAI/vk-insights/engine/server"
	"github.com/WessleyAI/vk-insights/engine/vkapi"
	"github.com/WessleyAI/vk-insights/pkg/metrics"
	"github.com/WessleyAI/vk-insights/pkg/mid"
	"github.com/WessleyAI/vk-insights/pkg/natsutil"
)

// Config holds all configuration for the server.
type Config struct {
	Token         string
	APIVersion    string
	BaseURL       string
	ListenAddr    string
	HTTPAddr      string
	NatsURL       string
	NatsSubject   string
	FetchTimeout  time.Duration
	FetchMaxConns int
	IdleTimeout   time.Duration
	LogLevel      string
	LogFormat     string
}

func loadConfig() Config {
	return Config{
		Token:         envOr("VK_TOKEN", ""),
		APIVersion:    envOr("VK_API_VERSION", vkapi.DefaultVersion),
		BaseURL:       envOr("VK_BASE_URL", vkapi.DefaultBaseURL),
		ListenAddr:    envOr("LISTEN_ADDR", server.DefaultAddr),
		HTTPAddr:      envOr("HTTP_ADDR", ":8080"),
		NatsURL:       envOr("NATS_URL", ""),
		NatsSubject:   envOr("NATS_SUBJECT", "vk.commands"),
		FetchTimeout:  durationOr("FETCH_TIMEOUT", 30*time.Second),
		FetchMaxConns: intOr("FETCH_MAX_CONNS", 100),
		IdleTimeout:   durationOr("LINE_IDLE_TIMEOUT", 5*time.Minute),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Token == "" {
		logger.Warn("VK_TOKEN is empty, API calls will be rejected")
	}

	reg := metrics.New()
	vkCfg := vkapi.DefaultConfig()
	vkCfg.Token = cfg.Token
	vkCfg.Version = cfg.APIVersion
	vkCfg.BaseURL = cfg.BaseURL

	svc := report.NewService(report.Deps{
		Generator: vkapi.NewGenerator(vkCfg),
		Fetcher: fetch.New(fetch.Options{
			Timeout:  cfg.FetchTimeout,
			MaxConns: cfg.FetchMaxConns,
			Logger:   logger,
			Metrics:  reg,
		}),
		Logger:  logger,
		Metrics: reg,
	})
	exec := command.NewExecutor(svc, logger, reg)

	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		if _, err := serveNATS(nc, cfg.NatsSubject, exec, logger); err != nil {
			return fmt.Errorf("nats respond: %w", err)
		}
		logger.Info("answering commands over nats", "subject", cfg.NatsSubject)
	}

	lineSrv := server.New(server.Config{
		Addr:        cfg.ListenAddr,
		IdleTimeout: cfg.IdleTimeout,
	}, exec, logger, reg)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      newHandler(svc, reg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return serve(ctx, stop, srv, lineSrv.ListenAndServe, logger)
}

// serve runs the HTTP server and the line server until ctx is done or one
// of them fails, then shuts both down. It returns only after the line
// server has closed its connections.
func serve(ctx context.Context, stop context.CancelFunc, srv *http.Server, lineServe func(context.Context) error, logger *slog.Logger) error {
	errCh := make(chan error, 2)
	go func() {
		logger.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	lineDone := make(chan struct{})
	go func() {
		defer close(lineDone)
		if err := lineServe(ctx); err != nil {
			errCh <- fmt.Errorf("line server: %w", err)
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	stop()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutErr := srv.Shutdown(shutCtx)
	<-lineDone
	return errors.Join(runErr, shutErr)
}

// CommandRequest is the NATS payload for one command line.
type CommandRequest struct {
	Line string `json:"line"`
}

// serveNATS answers CommandRequests on subject with the encoded reply.
func serveNATS(nc *nats.Conn, subject string, h server.Handler, logger *slog.Logger) (*nats.Subscription, error) {
	return natsutil.Respond(nc, subject, "vk-server", logger,
		func(ctx context.Context, req CommandRequest) (json.RawMessage, error) {
			reply := h.Handle(ctx, req.Line)
			if reply.Value == nil {
				// Text replies travel as JSON strings.
				return json.Marshal(reply.Text)
			}
			return reply.Encode()
		})
}

// --- Handlers ---

// Reporter produces friends reports. *report.Service implements it.
type Reporter interface {
	Friends(ctx context.Context, ids []int64, field group.Field) (report.Report, error)
}

func newHandler(svc Reporter, reg *metrics.Registry, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /api/report", handleReport(svc, logger))

	return mid.Chain(mux,
		mid.Recover(logger),
		mid.RequestID(),
		mid.Logger(logger),
		mid.Metrics(reg),
		mid.OTel("vk-server"),
	)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	mid.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReportRequest is the JSON body for POST /api/report.
type ReportRequest struct {
	IDs   []int64 `json:"ids"`
	Field string  `json:"field"`
}

func handleReport(svc Reporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			mid.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(req.IDs) == 0 || len(req.IDs) > command.MaxIDs {
			mid.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("between 1 and %d ids are required", command.MaxIDs),
			})
			return
		}
		if req.Field == "" {
			req.Field = string(group.FieldCity)
		}
		field, err := group.ParseField(req.Field)
		if err != nil {
			mid.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		rep, err := svc.Friends(r.Context(), req.IDs, field)
		if err != nil {
			if report.IsEmpty(err) {
				mid.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
				return
			}
			logger.Error("report failed", "error", err, "request_id", mid.RequestIDFrom(r.Context()))
			mid.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		mid.WriteJSON(w, http.StatusOK, rep)
	}
}
