package mongo

import (
	"context"
	"sync"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

// fakeConn is a scripted wire.Conn used to exercise the driver core
// without a real mongod: every reply-expecting call (Send with a
// non-nil request, or GetMore) consumes the next queued reply in order.
// It is not safe to script fewer replies than the test will need; an
// exhausted script returns errScriptExhausted rather than blocking.
type fakeConn struct {
	mu sync.Mutex

	sends    []sendCall
	getMores []getMoreCall
	killed   []int64
	closed   bool

	replies []scriptedReply
}

type sendCall struct {
	numNotices int
	req        *wire.QueryRequest
}

type getMoreCall struct {
	fullCollection string
	wireBatch      int32
	cursorID       int64
}

type scriptedReply struct {
	reply *wire.Reply
	err   error
}

var errScriptExhausted = &Failure{Kind: QueryFailure, Message: "fakeConn: script exhausted"}

func newFakeConn(replies ...scriptedReply) *fakeConn {
	return &fakeConn{replies: replies}
}

func replyOf(cursorID int64, docs ...interface{}) scriptedReply {
	var raw [][]byte
	for _, d := range docs {
		enc, err := bson.Marshal(d)
		if err != nil {
			panic(err)
		}
		raw = append(raw, enc)
	}
	return scriptedReply{reply: &wire.Reply{CursorID: cursorID, Documents: raw}}
}

func (c *fakeConn) popReply() scriptedReply {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return scriptedReply{err: errScriptExhausted}
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r
}

func (c *fakeConn) Send(ctx context.Context, notices []wire.Notice, req *wire.QueryRequest) (*wire.Promise, error) {
	c.mu.Lock()
	c.sends = append(c.sends, sendCall{numNotices: len(notices), req: req})
	c.mu.Unlock()
	if req == nil {
		return nil, nil
	}
	r := c.popReply()
	return wire.NewResolvedPromise(r.reply, r.err), nil
}

func (c *fakeConn) GetMore(ctx context.Context, fullCollection string, wireBatch int32, cursorID int64) (*wire.Promise, error) {
	c.mu.Lock()
	c.getMores = append(c.getMores, getMoreCall{fullCollection, wireBatch, cursorID})
	c.mu.Unlock()
	r := c.popReply()
	return wire.NewResolvedPromise(r.reply, r.err), nil
}

func (c *fakeConn) KillCursors(ctx context.Context, ids ...int64) error {
	c.mu.Lock()
	c.killed = append(c.killed, ids...)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) UseCompression(name string) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) lastSend() sendCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends[len(c.sends)-1]
}

func newTestSession(c wire.Conn) *Session {
	return &Session{conn: c, db: "test", writeMode: Safe}
}
