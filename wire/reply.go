package wire

import "fmt"

// Reply is a parsed OP_REPLY message. Documents are left as raw BSON bytes;
// decoding them into Go values is the document codec's job, not the
// framer's.
type Reply struct {
	ResponseFlags ResponseFlag
	CursorID      int64
	StartingFrom  int32
	Documents     [][]byte
}

// Has reports whether flag is set in the reply's response flags.
func (r *Reply) Has(flag ResponseFlag) bool {
	return r.ResponseFlags&flag != 0
}

// parseReply reads one OP_REPLY body (the part after the shared 16-byte
// message header) from p.
func parseReply(op opCode, p []byte) (*Reply, error) {
	if op != opReply {
		return nil, unknownOpCode(int32(op))
	}
	if len(p) < 20 {
		return nil, fmt.Errorf("wire: truncated reply header")
	}
	flags := ResponseFlag(byteOrder.Uint32(p[0:4]))
	cursorID := int64(byteOrder.Uint64(p[4:12]))
	startingFrom := int32(byteOrder.Uint32(p[12:16]))
	numberReturned := int32(byteOrder.Uint32(p[16:20]))

	r := &Reply{ResponseFlags: flags, CursorID: cursorID, StartingFrom: startingFrom}
	pos := 20
	for i := int32(0); i < numberReturned; i++ {
		if pos+4 > len(p) {
			return nil, fmt.Errorf("wire: truncated document in reply")
		}
		n := int(byteOrder.Uint32(p[pos : pos+4]))
		if pos+n > len(p) {
			return nil, fmt.Errorf("wire: document length %d overruns reply body", n)
		}
		doc := make([]byte, n)
		copy(doc, p[pos:pos+n])
		r.Documents = append(r.Documents, doc)
		pos += n
	}
	return r, nil
}
