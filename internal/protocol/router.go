package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// HandlerFunc answers one decoded command.
type HandlerFunc func(ctx context.Context, body json.RawMessage) Envelope

// Router keeps a map[type]handler.
type Router struct {
	mu       sync.RWMutex
	handlers map[MessageType]HandlerFunc
}

func NewRouter() *Router { return &Router{handlers: make(map[MessageType]HandlerFunc)} }

// Register binds a message type to a strongly-typed handler. The body is
// decoded into Req and, when Req is a struct, validated with its
// `validate` tags and then its Validate method, if it has one; any failure
// is answered with ERROR.
func Register[Req any](r *Router, t MessageType, h func(ctx context.Context, req Req) Envelope) {
	if t == "" {
		panic("protocol router: empty message type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[t] = func(ctx context.Context, body json.RawMessage) Envelope {
		var req Req
		if len(body) > 0 && string(body) != "null" {
			if err := json.Unmarshal(body, &req); err != nil {
				return TextEnvelope(Error, fmt.Sprintf("malformed %s payload: %v", t, err))
			}
		}
		if err := validateRequest(req); err != nil {
			return TextEnvelope(Error, fmt.Sprintf("invalid %s payload: %v", t, err))
		}
		return h(ctx, req)
	}
}

func validateRequest(req any) error {
	err := validate.Struct(req)
	if _, notStruct := err.(*validator.InvalidValidationError); notStruct {
		return nil
	}
	if err != nil {
		return err
	}
	if v, ok := req.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

// Route answers env, or reports an unknown type.
func (r *Router) Route(ctx context.Context, env Envelope) Envelope {
	r.mu.RLock()
	h, ok := r.handlers[env.Type]
	r.mu.RUnlock()
	if !ok {
		return TextEnvelope(Error, fmt.Sprintf("unknown message type %q", env.Type))
	}
	return h(ctx, env.Data)
}
