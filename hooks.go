package typegoose

import (
	"context"

	"go.uber.org/zap"
)

// =====================================
// Model Hooks
// =====================================

// Events a hook can be bound to
const (
	EventValidate = "validate"
	EventSave     = "save"
	EventFind     = "find"
	EventFindOne  = "findOne"
	EventRemove   = "remove"
)

// HookContext is what a hook sees of the operation it runs around. Document
// is set for validate, save and remove; Filter for find and findOne. Post
// find hooks also see the Documents that were found.
type HookContext struct {
	Event     string
	Model     *Model
	Document  *Document
	Filter    map[string]any
	Documents []*Document
}

// runHooks runs the hooks of phase bound to hc.Event in order. The first
// failing hook stops the sequence and its error is returned.
func runHooks(ctx context.Context, h *Handle, phase Phase, hc *HookContext) error {
	for i, b := range h.Hooks(phase, hc.Event) {
		if err := b.Handler(ctx, hc); err != nil {
			Logger().Debug("hook failed",
				zap.String("class", h.Name()),
				zap.String("phase", string(phase)),
				zap.String("event", hc.Event),
				zap.Int("position", i),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// Validator is implemented by declared struct types that check their own
// field values. It runs after the pre validate hooks.
type Validator interface {
	Validate(ctx context.Context) error
}
