package web

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/eightd/eightd/internal/workflow"
)

// Registry maps browser session IDs to their controllers. Idle sessions
// expire after the configured TTL; expiry cancels any in-flight request and
// releases any held result.
type Registry struct {
	// mu serializes every cache access so a lookup never races the
	// expire-then-create step in Get
	mu      sync.Mutex
	cache   *ttlcache.Cache[string, *workflow.Controller]
	factory func(id string) *workflow.Controller
	stop    func()
}

// NewRegistry creates a registry whose controllers are built by factory.
func NewRegistry(ttl time.Duration, factory func(id string) *workflow.Controller) *Registry {
	cache := ttlcache.New[string, *workflow.Controller](
		ttlcache.WithTTL[string, *workflow.Controller](ttl),
	)
	unsubscribe := cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *workflow.Controller]) {
		item.Value().Close()
	})
	go cache.Start()

	return &Registry{
		cache:   cache,
		factory: factory,
		stop: func() {
			unsubscribe()
			cache.Stop()
		},
	}
}

// Get returns the controller for id, creating it on first use. Every hit
// extends the session's lifetime.
func (r *Registry) Get(id string) *workflow.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item := r.cache.Get(id); item != nil {
		return item.Value()
	}
	// An expired entry still occupies the key until deleted; evict it so its
	// controller is closed rather than silently overwritten
	r.cache.DeleteExpired()

	c := r.factory(id)
	r.cache.Set(id, c, ttlcache.DefaultTTL)
	return c
}

// Lookup returns the controller for id without creating one.
func (r *Registry) Lookup(id string) (*workflow.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Remove drops and closes the controller for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item := r.cache.Get(id); item != nil {
		item.Value().Close()
		r.cache.Delete(id)
	}
}

// Expire evicts sessions whose TTL has passed. The cache also does this on
// its own schedule.
func (r *Registry) Expire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.DeleteExpired()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.Len()
}

// Close closes every controller and stops the expiry loop.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.cache.Items() {
		item.Value().Close()
	}
	r.stop()
	r.cache.DeleteAll()
}
