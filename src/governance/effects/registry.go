// Package effects implements declarative governance effects: a registry of
// typed handlers, a validator run when proposals are created, and a
// transactional executor run when they are approved.
package effects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// ErrDuplicateHandler is returned when a handler type is registered twice.
var ErrDuplicateHandler = errors.New("effect handler already registered")

// Handler implements the business rules of one effect type.
type Handler interface {
	// Type is the effect type name the handler is registered under.
	Type() string
	// Schema is a JSON Schema for the payload. Empty means no schema check.
	Schema() string
	// Validate returns human-readable errors; an empty result means valid.
	Validate(ctx context.Context, payload json.RawMessage, vctx *ValidationContext) []string
	// Execute applies the effect using ectx.Tx only.
	Execute(ctx context.Context, payload json.RawMessage, ectx *ExecutionContext) error
}

// ValidationContext carries the band being governed and a read handle.
// During execution DB is the open effect transaction.
type ValidationContext struct {
	BandID uint64
	DB     *gorm.DB
}

// ExecutionContext carries the single transaction shared by every effect of
// one execution attempt.
type ExecutionContext struct {
	BandID       uint64
	ProposalID   uint64
	ExecutedByID uint64
	Tx           *gorm.DB
}

type registered struct {
	handler Handler
	schema  *jsonschema.Schema
}

// Registry maps effect types to handlers and subtypes to allowed effect
// types. Populate it before serving requests; lookups are not synchronized.
type Registry struct {
	handlers map[string]registered
	subtypes map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]registered),
		subtypes: make(map[string][]string),
	}
}

// Register adds a handler under its declared type.
func (r *Registry) Register(h Handler) error {
	name := h.Type()
	if name == "" {
		return fmt.Errorf("effect handler has empty type")
	}
	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
	}

	entry := registered{handler: h}
	if src := h.Schema(); src != "" {
		compiled, err := compileSchema(name, src)
		if err != nil {
			return err
		}
		entry.schema = compiled
	}
	r.handlers[name] = entry
	return nil
}

// MustRegister registers every handler or panics. Intended for startup wiring.
func (r *Registry) MustRegister(hs ...Handler) {
	for _, h := range hs {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
}

// RegisterSubtypeEffects sets the effect types allowed for a subtype.
func (r *Registry) RegisterSubtypeEffects(subtype string, allowed ...string) {
	r.subtypes[subtype] = append([]string(nil), allowed...)
}

// AllowedEffectsForSubtype returns the whitelist of a subtype; ok is false
// when the subtype was never registered.
func (r *Registry) AllowedEffectsForSubtype(subtype string) (allowed []string, ok bool) {
	allowed, ok = r.subtypes[subtype]
	return allowed, ok
}

// Handler looks up the handler for an effect type.
func (r *Registry) Handler(effectType string) (Handler, bool) {
	entry, ok := r.handlers[effectType]
	return entry.handler, ok
}

// Types returns the registered effect types.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// checkPayload runs the payload schema and then the handler's own rules.
func (r *Registry) checkPayload(ctx context.Context, effectType string, payload json.RawMessage, vctx *ValidationContext) []string {
	entry, ok := r.handlers[effectType]
	if !ok {
		return []string{fmt.Sprintf("unknown effect type %q", effectType)}
	}
	if entry.schema != nil {
		if errs := validateAgainst(entry.schema, payload); len(errs) > 0 {
			out := make([]string, 0, len(errs))
			for _, e := range errs {
				out = append(out, fmt.Sprintf("%s: %s", effectType, e))
			}
			return out
		}
	}
	return entry.handler.Validate(ctx, payload, vctx)
}

// execute runs the handler of eff, turning a panic into an error.
func (r *Registry) execute(ctx context.Context, eff gov.Effect, ectx *ExecutionContext) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panicked: %v", rec)
		}
	}()
	entry, ok := r.handlers[eff.Type]
	if !ok {
		return fmt.Errorf("unknown effect type %q", eff.Type)
	}
	return entry.handler.Execute(ctx, eff.Payload, ectx)
}

func whitelisted(list []string, effectType string) bool {
	for _, t := range list {
		if t == effectType {
			return true
		}
	}
	return false
}
