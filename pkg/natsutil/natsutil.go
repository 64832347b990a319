// Package natsutil provides typed NATS publish/subscribe/request helpers
// with OpenTelemetry trace propagation.
package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// ErrorHeader marks a reply whose body is an error message.
const ErrorHeader = "Vk-Error"

// DefaultTimeout bounds Request when ctx carries no deadline.
const DefaultTimeout = 10 * time.Second

// ErrRemote wraps errors reported by a responder.
var ErrRemote = errors.New("remote error")

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

func newMsg(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("natsutil: encode %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}

func extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*natsHeaderCarrier)(msg))
}

// Publish serializes v as JSON and publishes to the given subject.
// Trace context from ctx is injected into NATS message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := newMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler that deserializes JSON messages of type T.
// Trace context is extracted from the headers and passed to the handler.
// Malformed messages are logged and dropped.
func Subscribe[T any](nc *nats.Conn, subject string, log *slog.Logger, handler func(context.Context, T)) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Warn("dropping malformed message", "subject", msg.Subject, "error", err)
			return
		}
		handler(extract(msg), v)
	})
}

// Respond serves requests on subject, in queue group queue when it is set.
// Each request is decoded into Req and answered with the handler's Resp as
// JSON; handler errors and malformed requests get an error reply.
func Respond[Req, Resp any](nc *nats.Conn, subject, queue string, log *slog.Logger, handler func(context.Context, Req) (Resp, error)) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	serve := func(msg *nats.Msg) {
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			respondError(msg, log, fmt.Errorf("decode request: %w", err))
			return
		}
		resp, err := handler(extract(msg), req)
		if err != nil {
			respondError(msg, log, err)
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			respondError(msg, log, fmt.Errorf("encode response: %w", err))
			return
		}
		if err := msg.Respond(data); err != nil {
			log.Warn("respond", "subject", msg.Subject, "error", err)
		}
	}
	if queue == "" {
		return nc.Subscribe(subject, serve)
	}
	return nc.QueueSubscribe(subject, queue, serve)
}

func respondError(msg *nats.Msg, log *slog.Logger, err error) {
	log.Warn("request failed", "subject", msg.Subject, "error", err)
	reply := nats.NewMsg(msg.Reply)
	reply.Header.Set(ErrorHeader, "true")
	reply.Data = []byte(err.Error())
	if rerr := msg.RespondMsg(reply); rerr != nil {
		log.Warn("respond", "subject", msg.Subject, "error", rerr)
	}
}

// Request sends a JSON-encoded request and decodes the response. Without a
// deadline on ctx, DefaultTimeout applies. Error replies from Respond come
// back wrapping ErrRemote.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}
	msg, err := newMsg(ctx, subject, req)
	if err != nil {
		return zero, err
	}
	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, fmt.Errorf("natsutil: request %s: %w", subject, err)
	}
	if resp.Header.Get(ErrorHeader) != "" {
		return zero, fmt.Errorf("%w: %s", ErrRemote, resp.Data)
	}
	var result Resp
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return zero, fmt.Errorf("natsutil: decode reply: %w", err)
	}
	return result, nil
}
