package mongo

import (
	"context"
	"errors"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

var errMissingID = errors.New("mongo: save requires a document with an _id field")

// write sends notice and, in Safe mode, piggybacks a getLastError request
// in the same wire batch so it is guaranteed to observe notice having
// already landed — this is the piece that makes Safe mode meaningful
// under a connection shared by other concurrent callers: without the
// same-batch guarantee, another caller's notice could land between this
// one and the getLastError that is supposed to be checking it.
func (s *Session) write(ctx context.Context, notice wire.Notice) error {
	if s.writeMode == Unsafe {
		_, err := s.conn.Send(ctx, []wire.Notice{notice}, nil)
		return err
	}

	req := &wire.QueryRequest{
		FullCollection: s.fullCollection("$cmd"),
		BatchSize:      -1,
		Selector:       bson.D{{"getlasterror", 1}},
	}
	p, err := s.conn.Send(ctx, []wire.Notice{notice}, req)
	if err != nil {
		return err
	}
	reply, err := p.Force(ctx)
	if err != nil {
		return err
	}
	return checkLastError(reply)
}

func checkLastError(reply *wire.Reply) error {
	if len(reply.Documents) == 0 {
		return newQueryFailure("getlasterror returned no documents", 0)
	}
	var doc struct {
		Ok   float64 `bson:"ok"`
		Err  string  `bson:"err"`
		Code int     `bson:"code"`
	}
	if err := bson.Unmarshal(reply.Documents[0], &doc); err != nil {
		return err
	}
	if doc.Err != "" {
		return newWriteFailure(doc.Err, doc.Code)
	}
	if doc.Ok == 0 {
		return newWriteFailure("getlasterror command failed", 0)
	}
	return nil
}

// Insert inserts doc into collection and returns its _id, minting and
// splicing in a fresh ObjectId first if doc doesn't already carry one.
func (s *Session) Insert(ctx context.Context, collection string, doc interface{}) (interface{}, error) {
	id, sendable, err := ensureID(doc)
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, wire.Insert(s.fullCollection(collection), sendable)); err != nil {
		return nil, err
	}
	return id, nil
}

// InsertMany inserts docs into collection as a single Insert notice and
// returns their _ids in the same order as docs, minting and splicing in
// a fresh ObjectId for any document that doesn't already carry one.
func (s *Session) InsertMany(ctx context.Context, collection string, docs ...interface{}) ([]interface{}, error) {
	ids := make([]interface{}, len(docs))
	sendable := make([]interface{}, len(docs))
	for i, doc := range docs {
		id, sdoc, err := ensureID(doc)
		if err != nil {
			return nil, err
		}
		ids[i] = id
		sendable[i] = sdoc
	}
	if err := s.write(ctx, wire.Insert(s.fullCollection(collection), sendable...)); err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateFlags controls Update's upsert/multi-document behavior.
type UpdateFlags wire.UpdateFlag

const (
	UpdateUpsert UpdateFlags = UpdateFlags(wire.Upsert)
	UpdateMulti  UpdateFlags = UpdateFlags(wire.MultiUpdate)
)

// Update applies updater to the documents in collection matched by
// selector, with the given flags.
func (s *Session) Update(ctx context.Context, collection string, selector, updater interface{}, flags UpdateFlags) error {
	return s.write(ctx, wire.Update(s.fullCollection(collection), wire.UpdateFlag(flags), selector, updater))
}

// Upsert updates the first document matching selector, inserting updater
// as a new document if none match.
func (s *Session) Upsert(ctx context.Context, collection string, selector, updater interface{}) error {
	return s.Update(ctx, collection, selector, updater, UpdateUpsert)
}

// UpdateAll applies updater to every document in collection matching
// selector.
func (s *Session) UpdateAll(ctx context.Context, collection string, selector, updater interface{}) error {
	return s.Update(ctx, collection, selector, updater, UpdateMulti)
}

// Save replaces doc wholesale by its _id field, upserting it if no
// document with that _id exists yet.
func (s *Session) Save(ctx context.Context, collection string, doc interface{}) error {
	id, err := extractID(doc)
	if err != nil {
		return err
	}
	return s.Upsert(ctx, collection, bson.D{{"_id", id}}, doc)
}

// docID round-trips doc through the document codec to read its _id, so
// it works uniformly whether doc is a bson.D, a bson.M or a tagged
// struct. A nil result means doc has no _id yet, not an error.
func docID(doc interface{}) (interface{}, error) {
	enc, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		ID interface{} `bson:"_id"`
	}
	if err := bson.Unmarshal(enc, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.ID, nil
}

// extractID is docID but requires the id to already be present.
func extractID(doc interface{}) (interface{}, error) {
	id, err := docID(doc)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errMissingID
	}
	return id, nil
}

// ensureID returns doc's _id, minting and splicing in a fresh ObjectId
// if doc doesn't carry one yet. The returned document, not doc itself,
// is what must actually go over the wire: when an id had to be spliced
// in, it is doc re-encoded as a bson.M with _id set, since doc's own
// concrete type (a struct value, say) may have no settable field to
// mutate in place.
func ensureID(doc interface{}) (id interface{}, sendable interface{}, err error) {
	existing, err := docID(doc)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return existing, doc, nil
	}

	oid := bson.NewObjectId()
	enc, err := bson.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(enc, &m); err != nil {
		return nil, nil, err
	}
	m["_id"] = oid
	return oid, m, nil
}

// DeleteFlags are the OP_DELETE flags: Remove sends none (every match is
// deleted) and RemoveFirst sends RemoveSingle.
type DeleteFlags wire.DeleteFlag

const (
	RemoveSingle DeleteFlags = DeleteFlags(wire.SingleRemove)
)

// Remove deletes every document in collection matching selector.
func (s *Session) Remove(ctx context.Context, collection string, selector interface{}) error {
	return s.write(ctx, wire.Delete(s.fullCollection(collection), 0, selector))
}

// RemoveFirst deletes only the first document in collection matching
// selector.
func (s *Session) RemoveFirst(ctx context.Context, collection string, selector interface{}) error {
	return s.write(ctx, wire.Delete(s.fullCollection(collection), wire.DeleteFlag(RemoveSingle), selector))
}
