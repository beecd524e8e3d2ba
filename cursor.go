package mongo

import (
	"context"
	"runtime"
	"sync"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

// Cursor iterates the results of a find, fetching further batches from
// the server as the caller consumes documents already in hand. A Cursor
// may be used from multiple goroutines: its methods serialize on an
// internal mutex.
//
// A cursor's next batch is requested as soon as the previous one starts
// being consumed rather than when it runs out (the Delayed state below):
// the getMore round trip overlaps with the caller processing documents
// already buffered, instead of the two happening strictly back to back.
type Cursor struct {
	session    *Session
	collection string
	batchSize  int32

	// remainingLimit is recomputed every round by numberToReturn, mirroring
	// batchSizeRemainingLimit's own recurrence rather than being decremented
	// by how many documents a round actually returned.
	remainingLimit int32

	mu       sync.Mutex
	docs     [][]byte
	pos      int
	cursorID int64
	pending  *wire.Promise // non-nil while a getMore is outstanding (Delayed); nil is Ready
	closed   bool
	err      error
}

// newCursor wraps the initial query reply. remainingLimit is the value
// numberToReturn produced alongside the wire batch size used for that
// initial query, not the caller's original Limit.
func newCursor(s *Session, collection string, batchSize, remainingLimit int32, reply *wire.Reply) (*Cursor, error) {
	c := &Cursor{
		session:        s,
		collection:     collection,
		batchSize:      batchSize,
		remainingLimit: remainingLimit,
	}
	if err := c.applyReply(reply); err != nil {
		return nil, err
	}
	c.armFinalizer()
	return c, nil
}

// armFinalizer ensures a cursor the caller forgot to Close still gets its
// server-side resources released eventually. This is a backstop, not a
// substitute for calling Close: a finalizer runs on the garbage
// collector's schedule, which may be much later than the cursor actually
// became unreachable.
func (c *Cursor) armFinalizer() {
	runtime.SetFinalizer(c, func(c *Cursor) {
		c.mu.Lock()
		id := c.cursorID
		closed := c.closed
		c.mu.Unlock()
		if !closed && id != 0 {
			_ = c.session.conn.KillCursors(context.Background(), id)
		}
	})
}

// applyReply absorbs a batch into the cursor's buffer, raising
// CursorNotFound/QueryFailure when the server's response flags say the
// batch is actually an error.
//
// A non-zero cursor id paired with an empty batch is not one of those
// recoverable Failures: it means the client and server disagree about
// the protocol itself, so it is a hard abort rather than a returned
// error.
func (c *Cursor) applyReply(reply *wire.Reply) error {
	if reply.Has(wire.CursorNotFoundFlag) {
		return newCursorNotFound(reply.CursorID)
	}
	if reply.Has(wire.QueryErrorFlag) {
		return queryErrorFromDocs(reply.Documents)
	}
	if len(reply.Documents) == 0 && reply.CursorID != 0 {
		panic("mongo: server returned an empty batch with a non-zero cursor id")
	}
	c.docs = reply.Documents
	c.pos = 0
	c.cursorID = reply.CursorID
	return nil
}

func queryErrorFromDocs(docs [][]byte) error {
	if len(docs) == 0 {
		return newQueryFailure("query failed", 0)
	}
	var doc struct {
		Err  string `bson:"$err"`
		Code int    `bson:"code"`
	}
	if err := bson.Unmarshal(docs[0], &doc); err != nil {
		return newQueryFailure("query failed", 0)
	}
	return newQueryFailure(doc.Err, doc.Code)
}

// prefetch issues a getMore for the next batch, putting the cursor in the
// Delayed state, unless one is already outstanding or the cursor is
// exhausted (cursor id 0) or closed. It does not check the limit itself:
// once a round's wire batch is negative the server closes the cursor,
// and the resulting cursor id of 0 stops further prefetches.
func (c *Cursor) prefetch(ctx context.Context) {
	if c.pending != nil || c.cursorID == 0 || c.closed {
		return
	}
	wireBatch, remaining := numberToReturn(c.batchSize, c.remainingLimit)
	p, err := c.session.conn.GetMore(ctx, c.session.fullCollection(c.collection), wireBatch, c.cursorID)
	if err != nil {
		c.err = err
		return
	}
	c.remainingLimit = remaining
	c.pending = p
}

// force resolves an outstanding getMore (Delayed -> Ready) and absorbs
// its reply into the buffer.
func (c *Cursor) force(ctx context.Context) error {
	if c.pending == nil {
		return nil
	}
	p := c.pending
	c.pending = nil
	reply, err := p.Force(ctx)
	if err != nil {
		return err
	}
	return c.applyReply(reply)
}

// HasNext reports whether at least one more document is available. When
// the buffered batch is used up it forces an outstanding getMore, or
// issues one if the server cursor is still open, and may block on it.
func (c *Cursor) HasNext(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasNextLocked(ctx)
}

func (c *Cursor) hasNextLocked(ctx context.Context) (bool, error) {
	for c.pos >= len(c.docs) {
		if c.err != nil {
			return false, c.err
		}
		if c.pending != nil {
			if err := c.force(ctx); err != nil {
				return false, err
			}
			continue
		}
		if c.cursorID == 0 {
			return false, nil
		}
		c.prefetch(ctx)
		if c.pending == nil {
			return false, c.err
		}
	}
	return true, nil
}

// Next decodes the next document into out, transparently fetching
// further batches as needed. It returns false, nil at normal end of
// stream.
func (c *Cursor) Next(ctx context.Context, out interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ok, err := c.hasNextLocked(ctx)
	if err != nil || !ok {
		return false, err
	}
	doc := c.docs[c.pos]
	c.pos++

	if c.pos < len(c.docs) {
		// The rest of the current batch is still buffered; get the next
		// one in flight now so it is (or is closer to being) ready by
		// the time this batch runs out.
		c.prefetch(ctx)
	}

	if err := bson.Unmarshal(doc, out); err != nil {
		return false, err
	}
	return true, nil
}

// All decodes every remaining document, calling newOut to allocate each
// destination and collect to receive it once decoded.
func (c *Cursor) All(ctx context.Context, newOut func() interface{}, collect func(interface{})) error {
	for {
		out := newOut()
		ok, err := c.Next(ctx, out)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		collect(out)
	}
}

// Close releases the cursor's server-side resources. It is safe to call
// more than once.
func (c *Cursor) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	runtime.SetFinalizer(c, nil)

	if c.pending != nil {
		// Wait for the outstanding getMore's reply before killing the
		// cursor; its documents are discarded.
		_, _ = c.pending.Force(ctx)
		c.pending = nil
	}
	if c.cursorID == 0 {
		return nil
	}
	id := c.cursorID
	c.cursorID = 0
	return c.session.conn.KillCursors(ctx, id)
}

// IsClosed reports whether the cursor is closed: either Close was
// called explicitly, or it has drained (no server cursor remains and no
// documents are buffered locally). A cursor that has merely run out of
// the current batch but still has a getMore outstanding, or still has a
// non-zero cursor id, is not closed yet.
func (c *Cursor) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isClosedLocked()
}

func (c *Cursor) isClosedLocked() bool {
	return c.closed || (c.cursorID == 0 && c.pending == nil && c.pos >= len(c.docs))
}
