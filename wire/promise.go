package wire

import (
	"context"
	"sync"
)

type replyResult struct {
	reply *Reply
	err   error
}

// Promise is a reply that has been requested but not necessarily observed
// yet. Forcing it blocks until the connection's reader goroutine delivers
// the correlated OP_REPLY, or the context is cancelled first. This is what
// lets the cursor engine prefetch a GetMore while the caller is still
// consuming the previous batch: the GetMore is issued immediately and its
// Promise is only forced when the pending documents run out.
type Promise struct {
	mu     sync.Mutex
	ch     chan replyResult
	result *replyResult
}

func newPromise() *Promise {
	return &Promise{ch: make(chan replyResult, 1)}
}

// NewResolvedPromise returns a Promise already resolved to reply, err. It
// lets a fake Conn hand back a deterministic reply when exercising the
// core driver against something other than a real server, without
// reimplementing the channel-and-cache bookkeeping Force relies on.
func NewResolvedPromise(reply *Reply, err error) *Promise {
	p := newPromise()
	p.deliver(reply, err)
	return p
}

func (p *Promise) deliver(reply *Reply, err error) {
	p.ch <- replyResult{reply, err}
}

// Force blocks until the reply is available or ctx is done. The resolved
// result is cached, so repeated calls are cheap and idempotent.
func (p *Promise) Force(ctx context.Context) (*Reply, error) {
	p.mu.Lock()
	if p.result != nil {
		r := *p.result
		p.mu.Unlock()
		return r.reply, r.err
	}
	p.mu.Unlock()

	select {
	case r := <-p.ch:
		p.mu.Lock()
		p.result = &r
		p.mu.Unlock()
		return r.reply, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
