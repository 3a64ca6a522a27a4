// Package dispatch resolves a message's component_type and component_data to
// a widget. Each type registers a typed props decoder, so the contract for a
// component lives in one Go type.
package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wolfman30/careportal-chat/internal/observability/metrics"
	"github.com/wolfman30/careportal-chat/internal/selection"
	"github.com/wolfman30/careportal-chat/internal/widgets"
	"github.com/wolfman30/careportal-chat/pkg/logging"
)

// ErrUnknownComponent is returned for a component_type with no builder.
var ErrUnknownComponent = errors.New("dispatch: unknown component type")

// Props is everything the dispatcher receives for one message.
type Props struct {
	ComponentType string
	ComponentData json.RawMessage
	Selection     selection.Selection
	Disabled      bool
	OnSelect      func(selection.Selection)
	// Ambient carries conversation-wide context (family members, payments,
	// wizard factory, clock, logger). Its per-message fields are overwritten.
	Ambient widgets.Context
}

type builder func(data json.RawMessage, ctx widgets.Context) (widgets.Widget, error)

// Registry maps component types, including aliases, to widget builders.
type Registry struct {
	logger  *logging.Logger
	metrics *metrics.ClientMetrics

	mu       sync.RWMutex
	builders map[string]builder
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *logging.Logger, m *metrics.ClientMetrics) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{logger: logger, metrics: m, builders: make(map[string]builder)}
}

// Register binds build to each of types and to the aliases of each type.
// component_data is decoded into P before build runs.
func Register[P any](r *Registry, build func(P, widgets.Context) widgets.Widget, types ...string) {
	b := func(data json.RawMessage, ctx widgets.Context) (widgets.Widget, error) {
		var props P
		var err error
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if decodeErr := json.Unmarshal(trimmed, &props); decodeErr != nil {
				var zero P
				props = zero
				err = decodeErr
			}
		}
		return build(props, ctx), err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		r.builders[t] = b
		for _, alias := range selection.Aliases(t) {
			r.builders[alias] = b
		}
	}
}

// Types lists every registered name, aliases included, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for t := range r.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Known reports whether componentType has a builder.
func (r *Registry) Known(componentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[componentType]
	return ok
}

// Build constructs the widget for p. A message that already carries a
// selection is always built disabled. Malformed component_data is logged
// and the widget is built from zero props.
func (r *Registry) Build(p Props) (widgets.Widget, error) {
	r.mu.RLock()
	b, ok := r.builders[p.ComponentType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, p.ComponentType)
	}

	isSelected := p.Selection != nil
	ctx := p.Ambient
	ctx.Selection = p.Selection
	ctx.Disabled = p.Disabled || isSelected
	ctx.OnSelect = p.OnSelect

	w, err := b(p.ComponentData, ctx)
	if err != nil {
		r.logger.Warn("malformed component data, using defaults",
			"component_type", p.ComponentType,
			"conversation_id", ctx.ConversationID,
			"error", err,
		)
	}
	return w, nil
}

// Resolve is Build for renderers: an unknown type yields false, a warning
// and a metric, and the conversation carries on without the widget.
func (r *Registry) Resolve(p Props) (widgets.Widget, bool) {
	w, err := r.Build(p)
	if err != nil {
		r.logger.Warn("unknown component type", "component_type", p.ComponentType)
		r.metrics.ObserveUnknownComponent(p.ComponentType)
		return nil, false
	}
	return w, true
}
