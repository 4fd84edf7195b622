package client

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// GoogleProvider is the managed identity provider as the controller sees
// it: it becomes ready at some point after startup and can then produce a
// signed identity assertion for the current user.
type GoogleProvider interface {
	// SignIn runs the provider's credential flow and returns the issued
	// identity assertion.
	SignIn(ctx context.Context) (credential string, err error)
}

// ProviderGate tracks when the provider library has finished loading.
// The provider's own load callback calls Ready once; waiters block on a
// bounded timeout instead of polling.
type ProviderGate struct {
	once  sync.Once
	ready chan struct{}
}

// NewProviderGate creates an unready gate.
func NewProviderGate() *ProviderGate {
	return &ProviderGate{ready: make(chan struct{})}
}

// Ready marks the provider as loaded. Safe to call more than once.
func (g *ProviderGate) Ready() {
	g.once.Do(func() { close(g.ready) })
}

// Wait blocks until the provider is ready, the timeout passes, or the
// context is canceled.
func (g *ProviderGate) Wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-g.ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("sign-in provider not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
