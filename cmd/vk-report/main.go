// Command vk-report fetches the friends (or tagged photos) of the given
// users once, aggregates them and prints the report as JSON to stdout or
// publishes it to NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/WessleyAI/vk-insights/engine/fetch"
	"github.com/WessleyAI/vk-insights/engine/group"
	"github.com/WessleyAI/vk-insights/engine/report"
	"github.com/WessleyAI/vk-insights/engine/vkapi"
	"github.com/WessleyAI/vk-insights/pkg/natsutil"
)

// options are the parsed command-line flags.
type options struct {
	ids      []int64
	field    group.Field
	photos   bool
	top      int
	timeout  time.Duration
	natsURL  string
	subject  string
	location *time.Location
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("vk-report", flag.ContinueOnError)
	ids := fs.String("ids", "", "comma-separated user ids")
	field := fs.String("field", string(group.FieldCity), "grouping field: city, bdate, platform or occupation")
	photos := fs.Bool("photos", false, "report tagged photos by day instead of friends")
	top := fs.Int("top", report.DefaultTopAffiliations, "affiliations kept in the summary")
	timeout := fs.Duration("timeout", 30*time.Second, "per-request timeout")
	natsURL := fs.String("nats", "", "NATS URL (if empty, output JSON to stdout)")
	subject := fs.String("subject", "vk.reports", "NATS subject to publish to")
	tz := fs.String("tz", "UTC", "time zone deciding photo days")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var opts options
	var err error
	if opts.ids, err = vkapi.ParseIDs(splitList(*ids)); err != nil {
		return options{}, err
	}
	if len(opts.ids) == 0 {
		return options{}, errors.New("-ids is required")
	}
	if opts.field, err = group.ParseField(*field); err != nil {
		return options{}, err
	}
	if opts.location, err = time.LoadLocation(*tz); err != nil {
		return options{}, fmt.Errorf("tz: %w", err)
	}
	opts.photos = *photos
	opts.top = *top
	opts.timeout = *timeout
	opts.natsURL = *natsURL
	opts.subject = *subject
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := vkapi.DefaultConfig()
	cfg.Token = os.Getenv("VK_TOKEN")
	if v := os.Getenv("VK_API_VERSION"); v != "" {
		cfg.Version = v
	}
	if v := os.Getenv("VK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	svc := report.NewService(report.Deps{
		Generator: vkapi.NewGenerator(cfg),
		Fetcher:   fetch.New(fetch.Options{Timeout: opts.timeout, Logger: logger}),
		Logger:    logger,
		Top:       opts.top,
		Location:  opts.location,
	})

	out, err := build(ctx, svc, opts)
	if err != nil {
		logger.Error("report failed", "error", err)
		os.Exit(1)
	}

	if opts.natsURL == "" {
		if err := write(os.Stdout, out); err != nil {
			logger.Error("encode", "error", err)
			os.Exit(1)
		}
		return
	}

	nc, err := nats.Connect(opts.natsURL)
	if err != nil {
		logger.Error("nats connect", "error", err)
		os.Exit(1)
	}
	defer nc.Close()
	if err := natsutil.Publish(ctx, nc, opts.subject, out); err != nil {
		logger.Error("nats publish", "subject", opts.subject, "error", err)
		os.Exit(1)
	}
	if err := nc.Flush(); err != nil {
		logger.Error("nats flush", "error", err)
		os.Exit(1)
	}
	logger.Info("report published", "subject", opts.subject)
}

// Reporter runs report batches. *report.Service implements it.
type Reporter interface {
	Friends(ctx context.Context, ids []int64, field group.Field) (report.Report, error)
	Photos(ctx context.Context, ids []int64) (report.PhotoReport, error)
}

func build(ctx context.Context, svc Reporter, opts options) (any, error) {
	if opts.photos {
		return svc.Photos(ctx, opts.ids)
	}
	return svc.Friends(ctx, opts.ids, opts.field)
}

func write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
