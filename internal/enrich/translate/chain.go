// Package translate rewrites foreign-language overviews into Chinese
// through an ordered chain of machine translation services.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"
)

// Target is the language every service translates into.
const Target = "zh"

// Service is one machine translation backend.
type Service interface {
	ID() string
	Translate(ctx context.Context, text string) (string, error)
}

// Chain tries services in order until one returns a translation.
type Chain struct {
	services []Service
}

// NewChain orders services with the preferred one first and the rest in
// the given order.
func NewChain(preferred string, services ...Service) *Chain {
	ordered := slices.Clone(services)
	slices.SortStableFunc(ordered, func(a, b Service) int {
		switch {
		case a.ID() == preferred && b.ID() != preferred:
			return -1
		case b.ID() == preferred && a.ID() != preferred:
			return 1
		default:
			return 0
		}
	})
	return &Chain{services: ordered}
}

// Services returns the service IDs in the order they are tried.
func (c *Chain) Services() []string {
	ids := make([]string, len(c.services))
	for i, s := range c.services {
		ids[i] = s.ID()
	}
	return ids
}

// Translate returns text in Chinese. Text that already contains Chinese is
// returned as is. When every service fails the original text is returned
// together with the joined errors.
func (c *Chain) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" || containsHan(text) {
		return text, nil
	}

	var errs []error
	for _, s := range c.services {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		out, err := s.Translate(ctx, text)
		switch {
		case err != nil:
			recordTranslation(s.ID(), "failure")
			slog.Debug("translation service failed", "service", s.ID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.ID(), err))
		case strings.TrimSpace(out) == "" || out == text:
			recordTranslation(s.ID(), "unchanged")
		default:
			recordTranslation(s.ID(), "success")
			return out, nil
		}
	}

	return text, errors.Join(errs...)
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
