package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
)

// GuardConfig tunes the protection wrapped around a provider.
type GuardConfig struct {
	CacheTTL         time.Duration
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // time the breaker stays open
	CallTimeout      time.Duration // bound on a shared upstream call
}

// DefaultGuardConfig returns the defaults used in production.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		CacheTTL:         time.Hour,
		FailureThreshold: 5,
		OpenTimeout:      time.Minute,
		CallTimeout:      DefaultTimeout,
	}
}

type cacheEntry struct {
	res     Result
	err     error
	expires time.Time
}

// Guarded wraps a Provider with a result cache, request coalescing and a
// circuit breaker. It satisfies Provider itself.
type Guarded struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[Result]
	group singleflight.Group
	ttl   time.Duration
	call  time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// Guard wraps p.
func Guard(p Provider, cfg GuardConfig) *Guarded {
	def := DefaultGuardConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}

	id := p.ID()
	breakerState.WithLabelValues(id).Set(0)

	cb := gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("enrichment breaker state changed", "provider", name, "from", from.String(), "to", to.String())
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Guarded{
		inner: p,
		cb:    cb,
		ttl:   cfg.CacheTTL,
		call:  cfg.CallTimeout,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
}

// ID implements Provider.
func (g *Guarded) ID() string { return g.inner.ID() }

// Capabilities implements Provider.
func (g *Guarded) Capabilities() Capability { return g.inner.Capabilities() }

// Fetch implements Provider. Identical concurrent queries share one call.
// Successful results and "not found" answers are cached.
//
// The shared call is detached from any single caller: it keeps the
// request-scoped values of ctx but is bounded by the guard's own timeout,
// and each caller stops waiting when its own ctx is done.
func (g *Guarded) Fetch(ctx context.Context, q Query) (Result, error) {
	key := q.Key()

	if res, err, ok := g.cached(key); ok {
		recordEnrichRequest(g.ID(), "cache_hit")
		return res, err
	}

	ch := g.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.call)
		defer cancel()

		res, err := g.cb.Execute(func() (Result, error) {
			return g.inner.Fetch(callCtx, q)
		})
		g.store(key, res, err)
		return res, err
	})

	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		recordEnrichRequest(g.ID(), "abandoned")
		return Result{}, ctx.Err()
	}

	err := out.Err
	switch {
	case err == nil:
		recordEnrichRequest(g.ID(), "success")
	case errors.Is(err, ErrNotFound):
		recordEnrichRequest(g.ID(), "not_found")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		recordEnrichRequest(g.ID(), "rejected")
	default:
		recordEnrichRequest(g.ID(), "failure")
	}

	res, _ := out.Val.(Result)
	return res, err
}

func (g *Guarded) cached(key string) (Result, error, bool) {
	if g.ttl <= 0 {
		return Result{}, nil, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.cache[key]
	if !ok {
		return Result{}, nil, false
	}
	if !g.now().Before(e.expires) {
		delete(g.cache, key)
		return Result{}, nil, false
	}
	return e.res, e.err, true
}

func (g *Guarded) store(key string, res Result, err error) {
	if g.ttl <= 0 || (err != nil && !errors.Is(err, ErrNotFound)) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache[key] = cacheEntry{res: res, err: err, expires: g.now().Add(g.ttl)}
}

// State returns the breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.cb.State()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
