package service

import (
	"sync"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/submit"
)

type pendingOrder struct {
	prep      submit.Prepared
	intent    domain.OrderIntent
	expiresAt time.Time
}

// pendingOrders holds prepared orders awaiting an external signature. An
// entry lives until it is taken or its order expires.
type pendingOrders struct {
	mu      sync.Mutex
	entries map[string]pendingOrder
	now     func() time.Time
}

func newPendingOrders(now func() time.Time) *pendingOrders {
	return &pendingOrders{entries: make(map[string]pendingOrder), now: now}
}

func (p *pendingOrders) put(id string, po pendingOrder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for k, e := range p.entries {
		if !now.Before(e.expiresAt) {
			delete(p.entries, k)
		}
	}
	p.entries[id] = po
}

// take removes and returns the entry for id. Expired entries are not found.
func (p *pendingOrders) take(id string) (pendingOrder, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[id]
	if !ok {
		return pendingOrder{}, false
	}
	delete(p.entries, id)
	if !p.now().Before(e.expiresAt) {
		return pendingOrder{}, false
	}
	return e, true
}

func (p *pendingOrders) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
