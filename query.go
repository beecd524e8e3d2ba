package mongo

import (
	"context"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

// Query builds a find operation against one collection. Build it with
// Session.Find and refine it with the fluent setters before calling
// Cursor, One or Count.
type Query struct {
	session    *Session
	collection string
	selector   interface{}
	projector  interface{}
	options    wire.QueryOption

	sort     bson.D
	hint     interface{}
	snapshot bool
	explain  bool

	skip      int32
	limit     int32
	batchSize int32
}

// Find starts a query over collection. A nil selector matches every
// document.
func (s *Session) Find(collection string, selector interface{}) *Query {
	if selector == nil {
		selector = bson.D{}
	}
	q := &Query{session: s, collection: collection, selector: selector}
	if s.slaveOk {
		q.options |= wire.SlaveOK
	}
	return q
}

// Sort orders the results. Sort fields are applied in document order,
// like every other BSON-ordered document in this package.
func (q *Query) Sort(sort bson.D) *Query { q.sort = sort; return q }

// Hint forces the server to use a specific index.
func (q *Query) Hint(hint interface{}) *Query { q.hint = hint; return q }

// Snapshot requests snapshot mode, avoiding duplicates caused by
// documents moving during the scan.
func (q *Query) Snapshot() *Query { q.snapshot = true; return q }

// Explain returns the query plan instead of the matching documents.
func (q *Query) Explain() *Query { q.explain = true; return q }

// Skip skips the first n matching documents.
func (q *Query) Skip(n int32) *Query { q.skip = n; return q }

// Limit caps the total number of documents the cursor will yield. Zero
// means unlimited.
func (q *Query) Limit(n int32) *Query { q.limit = n; return q }

// BatchSize caps the number of documents fetched per round trip. Zero
// lets the server choose.
func (q *Query) BatchSize(n int32) *Query { q.batchSize = n; return q }

// Fields sets the projection document.
func (q *Query) Fields(projector interface{}) *Query { q.projector = projector; return q }

// SlaveOk permits this query to be served by a secondary.
func (q *Query) SlaveOk() *Query { q.options |= wire.SlaveOK; return q }

// Tailable marks the cursor tailable; only meaningful against a capped
// collection.
func (q *Query) Tailable() *Query { q.options |= wire.TailableCursor; return q }

// AwaitData asks the server to block briefly for more data on a tailable
// cursor instead of returning empty immediately.
func (q *Query) AwaitData() *Query { q.options |= wire.AwaitData; return q }

// NoCursorTimeout disables the server's idle-cursor timeout.
func (q *Query) NoCursorTimeout() *Query { q.options |= wire.NoCursorTimeout; return q }

// PartialResults allows a partial result set when some shards are
// unavailable.
func (q *Query) PartialResults() *Query { q.options |= wire.PartialResults; return q }

// envelope wraps the selector in a $query document whenever a modifier
// ($orderby/$hint/$snapshot/$explain) is in play; a plain find is sent
// with its selector bare, the way every modifier-free query has always
// gone over the wire.
func (q *Query) envelope() interface{} {
	if q.sort == nil && q.hint == nil && !q.snapshot && !q.explain {
		return q.selector
	}
	env := bson.D{{"$query", q.selector}}
	if q.sort != nil {
		env = env.Append("$orderby", q.sort)
	}
	if q.hint != nil {
		env = env.Append("$hint", q.hint)
	}
	if q.snapshot {
		env = env.Append("$snapshot", true)
	}
	if q.explain {
		env = env.Append("$explain", true)
	}
	return env
}

// numberToReturn reconciles a requested batchSize and a cursor's
// remaining limit into the wire numberToReturn value for one round, and
// the remaining limit to carry into the next round.
//
// batchSize == 0 means "let the server choose"; limit == 0 means
// unlimited. A batchSize of exactly 1 is rewritten to 2 first: the server
// treats a wire numberToReturn of 1 as "return one document and close
// the cursor", which would silently defeat a caller who asked for a
// batch size of 1 but still wants the cursor left open for further
// rounds.
//
//   - limit == 0 (unlimited): wire batch is +batchSize, remaining is 0.
//     Note this means an unlimited cursor with no explicit batchSize
//     reconciles to a literal wire value of 0 ("let the server choose"
//     its own default) — that is the documented behavior, not an
//     oversight, even though it looks like it defeats the batchSize-of-1
//     workaround above for this one combination.
//   - 0 < batchSize < limit: wire batch is +batchSize, remaining is
//     limit - batchSize: this round is a partial batch, so the cursor
//     stays open for a getMore using the new remaining limit.
//   - otherwise (batchSize >= limit > 0, or batchSize == 0 < limit):
//     wire batch is -limit, a negative count telling the server to
//     return up to that many documents and close the cursor immediately
//     rather than leave it open for a getMore that will never come. The
//     returned remaining value (1) is a sentinel that is never consulted,
//     because the cursor will already be closed by the time anything
//     would look at it again.
func numberToReturn(batchSize, limit int32) (wireBatch, remaining int32) {
	bs := batchSize
	if bs == 1 {
		bs = 2
	}
	switch {
	case limit == 0:
		return bs, 0
	case bs > 0 && bs < limit:
		return bs, limit - bs
	default:
		return -limit, 1
	}
}

// Cursor runs the query and returns a Cursor over its results.
func (q *Query) Cursor(ctx context.Context) (*Cursor, error) {
	wireBatch, remaining := numberToReturn(q.batchSize, q.limit)
	req := &wire.QueryRequest{
		Options:        q.options,
		FullCollection: q.session.fullCollection(q.collection),
		Skip:           q.skip,
		BatchSize:      wireBatch,
		Selector:       q.envelope(),
		Projector:      q.projector,
	}
	p, err := q.session.conn.Send(ctx, nil, req)
	if err != nil {
		return nil, err
	}
	reply, err := p.Force(ctx)
	if err != nil {
		return nil, err
	}
	return newCursor(q.session, q.collection, q.batchSize, remaining, reply)
}

// Count returns the number of documents matching this query, honoring
// its Skip and Limit the same way a find would.
func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.session.Count(ctx, q.collection, q.selector, q.skip, q.limit)
}

// One runs the query and decodes the first matching document into out.
// It reports newQueryFailure-compatible errors the same way Cursor does;
// if no document matches, it returns ErrNotFound.
func (q *Query) One(ctx context.Context, out interface{}) error {
	cp := *q
	cp.limit = 1
	c, err := cp.Cursor(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)
	ok, err := c.Next(ctx, out)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
