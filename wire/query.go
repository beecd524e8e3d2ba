package wire

import "github.com/burdmongo/wiredriver/bson"

// QueryRequest is the wire OP_QUERY message: the sole request/reply message
// the core builds directly (GetMore is built internally by Conn.GetMore
// since it needs a live cursor id, not a caller-assembled document).
type QueryRequest struct {
	Options        QueryOption
	FullCollection string
	Skip           int32
	BatchSize      int32 // negative means "one batch then close", per the builder's reconciliation
	Selector       interface{}
	Projector      interface{} // nil means "all fields"
}

func (q *QueryRequest) encode(requestID uint32) ([]byte, error) {
	var b buffer
	writeHeader(&b, requestID, 0, opQuery)
	b.WriteUint32(uint32(q.Options))
	b.WriteCString(q.FullCollection)
	b.WriteInt32(q.Skip)
	b.WriteInt32(q.BatchSize)
	enc, err := bson.Marshal(q.Selector)
	if err != nil {
		return nil, err
	}
	b.Write(enc)
	if q.Projector != nil {
		enc, err = bson.Marshal(q.Projector)
		if err != nil {
			return nil, err
		}
		b.Write(enc)
	}
	patchLength(b)
	return b, nil
}

func encodeGetMore(requestID uint32, fullCollection string, wireBatch int32, cursorID int64) []byte {
	var b buffer
	writeHeader(&b, requestID, 0, opGetMore)
	b.WriteUint32(0) // reserved
	b.WriteCString(fullCollection)
	b.WriteInt32(wireBatch)
	b.WriteInt64(cursorID)
	patchLength(b)
	return b
}
