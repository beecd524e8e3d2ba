package wire

import "github.com/burdmongo/wiredriver/bson"

// Notice is a fire-and-forget wire message: insert, update, delete or
// kill-cursors. Its encoding is deferred until the request id is known, so
// a batch of notices can be laid out back-to-back in a single connection
// write without renumbering.
type Notice struct {
	build func(requestID uint32) ([]byte, error)
}

// Insert builds an OP_INSERT notice carrying one or more documents.
func Insert(fullCollection string, docs ...interface{}) Notice {
	return Notice{func(requestID uint32) ([]byte, error) {
		var b buffer
		writeHeader(&b, requestID, 0, opInsert)
		b.WriteUint32(0) // flags (reserved in this protocol revision)
		b.WriteCString(fullCollection)
		for _, doc := range docs {
			enc, err := bson.Marshal(doc)
			if err != nil {
				return nil, err
			}
			b.Write(enc)
		}
		patchLength(b)
		return b, nil
	}}
}

// Update builds an OP_UPDATE notice.
func Update(fullCollection string, flags UpdateFlag, selector, updater interface{}) Notice {
	return Notice{func(requestID uint32) ([]byte, error) {
		var b buffer
		writeHeader(&b, requestID, 0, opUpdate)
		b.WriteUint32(0) // reserved
		b.WriteCString(fullCollection)
		b.WriteUint32(uint32(flags))
		enc, err := bson.Marshal(selector)
		if err != nil {
			return nil, err
		}
		b.Write(enc)
		enc, err = bson.Marshal(updater)
		if err != nil {
			return nil, err
		}
		b.Write(enc)
		patchLength(b)
		return b, nil
	}}
}

// Delete builds an OP_DELETE notice.
func Delete(fullCollection string, flags DeleteFlag, selector interface{}) Notice {
	return Notice{func(requestID uint32) ([]byte, error) {
		var b buffer
		writeHeader(&b, requestID, 0, opDelete)
		b.WriteUint32(0) // reserved
		b.WriteCString(fullCollection)
		b.WriteUint32(uint32(flags))
		enc, err := bson.Marshal(selector)
		if err != nil {
			return nil, err
		}
		b.Write(enc)
		patchLength(b)
		return b, nil
	}}
}

// KillCursors builds an OP_KILL_CURSORS notice for one or more cursor ids.
func KillCursors(ids ...int64) Notice {
	return Notice{func(requestID uint32) ([]byte, error) {
		var b buffer
		writeHeader(&b, requestID, 0, opKillCursor)
		b.WriteUint32(0) // reserved
		b.WriteInt32(int32(len(ids)))
		for _, id := range ids {
			b.WriteInt64(id)
		}
		patchLength(b)
		return b, nil
	}}
}
