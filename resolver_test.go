package ndns

import (
	"errors"
	"sync"

	"github.com/miekg/dns"
)

// stubResolver is a configurable Resolver test double: it counts
// invocations, can be set to fail, echo a canned reply, or run a callback.
type stubResolver struct {
	mu         sync.Mutex
	ResolveFunc func(*dns.Msg, ClientInfo) (*dns.Msg, error)
	Reply      *dns.Msg
	hitCount   int
	shouldFail bool
}

var _ Resolver = &stubResolver{}

func (r *stubResolver) Resolve(q *dns.Msg, ci ClientInfo) (*dns.Msg, error) {
	r.mu.Lock()
	r.hitCount++
	r.mu.Unlock()

	if r.shouldFail {
		return nil, errors.New("stub resolver failure")
	}
	if r.ResolveFunc != nil {
		return r.ResolveFunc(q, ci)
	}
	return r.Reply, nil
}

func (r *stubResolver) String() string { return "stub()" }

func (r *stubResolver) HitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hitCount
}

func (r *stubResolver) SetFail(f bool) { r.shouldFail = f }
