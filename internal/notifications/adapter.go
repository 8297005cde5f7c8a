package notifications

import (
	"context"
	"strings"
	"sync"

	"github.com/bissquit/mediahook/internal/pkg/ctxlog"
)

// GenericPlatform is the platform name reported by the fallback adapter.
const GenericPlatform = "generic"

// Capability describes what a destination platform can do.
type Capability struct {
	Platform             string
	SupportsMergeForward bool
}

// Adapter delivers messages to one destination platform.
type Adapter interface {
	Capability() Capability
	SendIndividual(ctx context.Context, msg Message) error
	SendForwardBundle(ctx context.Context, msgs []Message) error
}

// Transport sends single messages. The generic adapter delivers through it.
type Transport interface {
	SendIndividual(ctx context.Context, msg Message) error
}

// Registry maps platform names to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	fallback Adapter
}

// NewRegistry creates a registry whose unknown platforms resolve to a
// generic adapter sending through fallback. A nil fallback logs messages
// instead of sending them.
func NewRegistry(fallback Transport) *Registry {
	if fallback == nil {
		fallback = LogTransport{}
	}
	return &Registry{
		adapters: make(map[string]Adapter),
		fallback: genericAdapter{transport: fallback},
	}
}

// Register adds adapter under its platform name and every alias.
func (r *Registry) Register(adapter Adapter, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.adapters[normalizePlatform(adapter.Capability().Platform)] = adapter
	for _, alias := range aliases {
		r.adapters[normalizePlatform(alias)] = adapter
	}
}

// Resolve returns the adapter for platform. Unrecognized names get the
// generic adapter, which never merges messages.
func (r *Registry) Resolve(platform string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.adapters[normalizePlatform(platform)]; ok {
		return a
	}
	return r.fallback
}

// Platforms returns the registered platform names and aliases.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

func normalizePlatform(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type genericAdapter struct {
	transport Transport
}

func (a genericAdapter) Capability() Capability {
	return Capability{Platform: GenericPlatform, SupportsMergeForward: false}
}

func (a genericAdapter) SendIndividual(ctx context.Context, msg Message) error {
	return a.transport.SendIndividual(ctx, msg)
}

func (a genericAdapter) SendForwardBundle(context.Context, []Message) error {
	return NewPermanentError(ErrBundleNotSupported)
}

// LogTransport writes messages to the log instead of a chat platform.
type LogTransport struct{}

// SendIndividual implements Transport.
func (LogTransport) SendIndividual(ctx context.Context, msg Message) error {
	ctxlog.FromContext(ctx).Info("notification (log-only delivery)",
		"source", msg.Source,
		"item_type", msg.ItemType,
		"has_image", msg.ImageURL != "",
		"text", msg.Text,
	)
	return nil
}
