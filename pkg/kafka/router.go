package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// TypeRouter dispatches JSON messages on their top-level "type" field, so
// several event kinds can share one topic.
type TypeRouter struct {
	routes map[string]MessageHandler
	logger *slog.Logger
}

func NewTypeRouter() *TypeRouter {
	return &TypeRouter{
		routes: make(map[string]MessageHandler),
		logger: slog.Default().With("component", "kafka-router"),
	}
}

// Handle registers h for messages whose type is typ.
func (r *TypeRouter) Handle(typ string, h MessageHandler) {
	r.routes[typ] = h
}

// Route registers fn for typ, decoding the value into T first.
func Route[T any](r *TypeRouter, typ string, fn func(ctx context.Context, event T) error) {
	r.Handle(typ, func(ctx context.Context, key, value []byte) error {
		event, err := DecodeJSON[T](value)
		if err != nil {
			return fmt.Errorf("%s event: %w", typ, err)
		}
		return fn(ctx, event)
	})
}

// Handler returns the dispatching MessageHandler. Messages that are not JSON
// or carry an unknown type are logged and acknowledged; retrying them cannot
// succeed.
func (r *TypeRouter) Handler() MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(value, &head); err != nil {
			r.logger.Error("dropping undecodable message", "key", string(key), "error", err)
			return nil
		}
		h, ok := r.routes[head.Type]
		if !ok {
			r.logger.Warn("dropping message of unknown type", "type", head.Type)
			return nil
		}
		if err := h(ctx, key, value); err != nil {
			r.logger.Error("dropping malformed message", "type", head.Type, "error", err)
		}
		return nil
	}
}
