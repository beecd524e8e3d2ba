package mongo

import (
	"context"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

// Run executes a database command and decodes its reply into out, which
// may be nil if the caller only cares whether it succeeded. cmd is
// typically a bson.D, since command documents are order-sensitive: the
// server takes the command name from the first field.
func (s *Session) Run(ctx context.Context, cmd interface{}, out interface{}) error {
	reply, err := s.runCommand(ctx, cmd)
	if err != nil {
		return err
	}
	if err := checkCommandReply(reply); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return bson.Unmarshal(reply.Documents[0], out)
}

// Run1 runs a parameterless command, e.g. s.Run1(ctx, "ping", &out).
func (s *Session) Run1(ctx context.Context, name string, out interface{}) error {
	return s.Run(ctx, bson.D{{name, 1}}, out)
}

func (s *Session) runCommand(ctx context.Context, cmd interface{}) (*wire.Reply, error) {
	req := &wire.QueryRequest{
		FullCollection: s.fullCollection("$cmd"),
		BatchSize:      -1,
		Selector:       cmd,
	}
	if s.slaveOk {
		req.Options |= wire.SlaveOK
	}
	p, err := s.conn.Send(ctx, nil, req)
	if err != nil {
		return nil, err
	}
	return p.Force(ctx)
}

func checkCommandReply(reply *wire.Reply) error {
	if reply.Has(wire.QueryErrorFlag) {
		return queryErrorFromDocs(reply.Documents)
	}
	if len(reply.Documents) == 0 {
		// A command always replies with exactly one document; an empty
		// reply means client and server disagree about the protocol
		// itself, not a condition the caller can recover from.
		panic("mongo: command returned no documents")
	}
	var resp struct {
		Ok     float64 `bson:"ok"`
		Errmsg string  `bson:"errmsg"`
	}
	if err := bson.Unmarshal(reply.Documents[0], &resp); err != nil {
		return err
	}
	if resp.Ok == 0 {
		return newQueryFailure(resp.Errmsg, 0)
	}
	return nil
}

// FindOne finds the first document in collection matching selector and
// decodes it into out.
func (s *Session) FindOne(ctx context.Context, collection string, selector, out interface{}) error {
	return s.Find(collection, selector).One(ctx, out)
}

// Count returns the number of documents in collection matching selector,
// after skipping the first skip matches and capping the count at limit
// (limit == 0 means unlimited, and is omitted from the command entirely
// rather than sent as a literal 0).
func (s *Session) Count(ctx context.Context, collection string, selector interface{}, skip, limit int32) (int64, error) {
	if selector == nil {
		selector = bson.D{}
	}
	cmd := bson.D{{"count", collection}, {"query", selector}, {"skip", skip}}
	if limit != 0 {
		cmd = cmd.Append("limit", limit)
	}
	var resp struct {
		N float64 `bson:"n"`
	}
	if err := s.Run(ctx, cmd, &resp); err != nil {
		return 0, err
	}
	return int64(resp.N), nil
}

// Distinct returns the distinct values of key among documents in
// collection matching selector.
func (s *Session) Distinct(ctx context.Context, collection, key string, selector interface{}) ([]interface{}, error) {
	if selector == nil {
		selector = bson.D{}
	}
	cmd := bson.D{{"distinct", collection}, {"key", key}, {"query", selector}}
	var resp struct {
		Values []interface{} `bson:"values"`
	}
	if err := s.Run(ctx, cmd, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Explain returns the query plan the server would use for this find,
// instead of running it. It is built exactly like findOne (limit 1,
// first document decoded), except that a server which replies with no
// document at all is not a legitimate "no match" the way an ordinary
// find's absence is: an explain always produces a plan document, so a
// missing one means client and server disagree about the protocol
// itself, not that nothing matched.
func (s *Session) Explain(ctx context.Context, collection string, selector interface{}, out interface{}) error {
	cp := *s.Find(collection, selector).Explain()
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
		panic("mongo: explain returned no document")
	}
	return nil
}

// Eval runs fn (JavaScript) on the server with args, and returns its
// return value decoded to a generic Go value (nil, a number, a string, a
// bson.M, or a []interface{}, depending on what fn returns). A reply
// missing retval entirely means client and server disagree about the
// protocol itself, the same class of disagreement checkCommandReply
// already hard-aborts on, so this does too rather than returning a
// recoverable error.
func (s *Session) Eval(ctx context.Context, fn bson.Code, args ...interface{}) (interface{}, error) {
	cmd := bson.D{{"$eval", fn}, {"args", args}}
	reply, err := s.runCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := checkCommandReply(reply); err != nil {
		return nil, err
	}
	var resp bson.M
	if err := bson.Unmarshal(reply.Documents[0], &resp); err != nil {
		return nil, err
	}
	if _, ok := resp["retval"]; !ok {
		panic("mongo: eval reply missing retval")
	}
	return resp["retval"], nil
}
