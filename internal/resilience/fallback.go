package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when no member of a [FallbackGroup] produced a
// result, either because it failed or because its circuit was open.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig is shared by every member of a [FallbackGroup]. Each member
// gets its own breaker built from CircuitBreaker with Name set to the member.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// OnFailure is called for every failed call. Calls refused by an open
	// circuit are not failures.
	OnFailure func(provider string, err error)
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary provider and its fallbacks in priority order.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group whose only member is primary.
func NewFallbackGroup[T any](primary T, name string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.AddFallback(name, primary)
	return g
}

// AddFallback appends a member tried after every one added before it. It
// must not be called once the group is in use.
func (g *FallbackGroup[T]) AddFallback(name string, value T) {
	cb := g.cfg.CircuitBreaker
	cb.Name = name
	g.members = append(g.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(cb)})
}

// Primary returns the first member.
func (g *FallbackGroup[T]) Primary() T { return g.members[0].value }

// Names lists the members in the order they are tried.
func (g *FallbackGroup[T]) Names() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.name
	}
	return names
}

// Available lists the members whose circuit is not open.
func (g *FallbackGroup[T]) Available() []string {
	var names []string
	for _, m := range g.members {
		if m.breaker.State() != StateOpen {
			names = append(names, m.name)
		}
	}
	return names
}

// Check fails with [ErrAllFailed] while every circuit in the group is open.
func (g *FallbackGroup[T]) Check(context.Context) error {
	if len(g.Available()) == 0 {
		return fmt.Errorf("%w: every circuit is open", ErrAllFailed)
	}
	return nil
}

// Do calls fn on each member in turn and returns the first success. Once ctx
// is done no further member is tried and the context error is returned. When
// every member fails the error wraps [ErrAllFailed] and each member's error.
func Do[T, R any](ctx context.Context, g *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for _, m := range g.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := m.breaker.Execute(func() error {
			var err error
			out, err = fn(m.value)
			return err
		})
		if err == nil {
			return out, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("provider skipped, circuit open", "provider", m.name)
			continue
		}
		if g.cfg.OnFailure != nil {
			g.cfg.OnFailure(m.name, err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
