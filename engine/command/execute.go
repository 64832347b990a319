package command

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/WessleyAI/vk-insights/engine/fetch"
	"github.com/WessleyAI/vk-insights/engine/group"
	"github.com/WessleyAI/vk-insights/engine/report"
	"github.com/WessleyAI/vk-insights/engine/vkapi"
	"github.com/WessleyAI/vk-insights/pkg/metrics"
)

// Service is the part of *report.Service the executor needs.
type Service interface {
	FetchFriends(ctx context.Context, ids []int64) []fetch.Result
	FetchMutual(ctx context.Context, pairs []vkapi.Pair) []fetch.Result
	Friends(ctx context.Context, ids []int64, field group.Field) (report.Report, error)
	Photos(ctx context.Context, ids []int64) (report.PhotoReport, error)
}

// Reply is the outcome of one command. Text replies are written as is;
// otherwise Value is written as JSON.
type Reply struct {
	Text  string
	Value any
	// Close asks the transport to end the session after writing the reply.
	Close bool
}

// Encode renders the reply without a trailing newline.
func (r Reply) Encode() ([]byte, error) {
	if r.Value == nil {
		return []byte(r.Text), nil
	}
	return json.Marshal(r.Value)
}

// failure is how a failed request appears in raw fetch replies.
type failure struct {
	Error bool `json:"error"`
	*fetch.FetchError
}

// Executor runs parsed commands.
type Executor struct {
	svc     Service
	log     *slog.Logger
	metrics *metrics.Registry
}

// NewExecutor creates an Executor.
func NewExecutor(svc Service, log *slog.Logger, m *metrics.Registry) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{svc: svc, log: log.With("component", "command"), metrics: m}
}

// Handle parses and executes one command line.
func (e *Executor) Handle(ctx context.Context, line string) Reply {
	cmd, err := Parse(line)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			e.metrics.IncCommand(commandName(line), "rejected")
			return Reply{Value: ce.Reply()}
		}
		return failed(err)
	}
	return e.Execute(ctx, cmd)
}

// Execute runs cmd and returns its reply.
func (e *Executor) Execute(ctx context.Context, cmd Command) Reply {
	reply := e.execute(ctx, cmd)
	status := "ok"
	if _, isErr := reply.Value.(ErrorReply); isErr {
		status = "error"
	}
	e.metrics.IncCommand(cmd.Name(), status)
	return reply
}

func (e *Executor) execute(ctx context.Context, cmd Command) Reply {
	switch c := cmd.(type) {
	case Help:
		return Reply{Text: HelpText}
	case Exit:
		return Reply{Text: "bye", Close: true}
	case Friends:
		return Reply{Value: raw(e.svc.FetchFriends(ctx, c.IDs))}
	case Mutual:
		return Reply{Value: raw(e.svc.FetchMutual(ctx, c.Pairs))}
	case Group:
		rep, err := e.svc.Friends(ctx, c.IDs, c.Field)
		if err != nil {
			return e.pipelineError(cmd, err)
		}
		return Reply{Value: rep}
	case Photos:
		rep, err := e.svc.Photos(ctx, c.IDs)
		if err != nil {
			return e.pipelineError(cmd, err)
		}
		return Reply{Value: rep}
	}
	return failed(errors.New("unsupported command " + cmd.Name()))
}

func (e *Executor) pipelineError(cmd Command, err error) Reply {
	if report.IsEmpty(err) {
		var details string
		var be *report.BatchError
		if errors.As(err, &be) {
			details = strings.Join(be.Warnings, "; ")
		}
		return Reply{Value: (&Error{Code: CodeNoData, Message: err.Error(), Details: details}).Reply()}
	}
	e.log.Error("command failed", "command", cmd.Name(), "error", err)
	return failed(err)
}

func failed(err error) Reply {
	return Reply{Value: (&Error{Code: CodeFailed, Message: err.Error()}).Reply()}
}

// raw renders fetch results in request order: JSON payloads verbatim, text
// bodies as strings and failures as error objects.
func raw(results []fetch.Result) []any {
	out := make([]any, len(results))
	for i, r := range results {
		switch {
		case r.Err != nil:
			out[i] = failure{Error: true, FetchError: r.Err}
		case r.Body != nil:
			out[i] = r.Body
		default:
			out[i] = r.Text
		}
	}
	return out
}

func commandName(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 || !known[fields[0]] {
		return "unknown"
	}
	return fields[0]
}
