package wire

import (
	"testing"

	"github.com/burdmongo/wiredriver/bson"
)

func TestQueryRequestEncode(t *testing.T) {
	req := &QueryRequest{
		Options:        SlaveOK,
		FullCollection: "db.coll",
		Skip:           5,
		BatchSize:      -10,
		Selector:       bson.D{{"x", 1}},
	}
	msg, err := req.encode(7)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := byteOrder.Uint32(msg[0:4]); int(got) != len(msg) {
		t.Errorf("message length field = %d, want %d", got, len(msg))
	}
	if got := byteOrder.Uint32(msg[4:8]); got != 7 {
		t.Errorf("requestID = %d, want 7", got)
	}
	if got := opCode(int32(byteOrder.Uint32(msg[12:16]))); got != opQuery {
		t.Errorf("opCode = %d, want %d", got, opQuery)
	}

	body := msg[headerLen:]
	if got := QueryOption(byteOrder.Uint32(body[0:4])); got != SlaveOK {
		t.Errorf("options = %d, want %d", got, SlaveOK)
	}
	wantColl := "db.coll\x00"
	if string(body[4:4+len(wantColl)]) != wantColl {
		t.Errorf("fullCollection = %q, want %q", body[4:4+len(wantColl)], wantColl)
	}
	rest := body[4+len(wantColl):]
	if got := int32(byteOrder.Uint32(rest[0:4])); got != 5 {
		t.Errorf("skip = %d, want 5", got)
	}
	if got := int32(byteOrder.Uint32(rest[4:8])); got != -10 {
		t.Errorf("batchSize = %d, want -10", got)
	}
}

func TestQueryRequestEncodeWithProjection(t *testing.T) {
	req := &QueryRequest{
		FullCollection: "db.coll",
		Selector:       bson.D{{"x", 1}},
		Projector:      bson.D{{"x", 1}, {"_id", 0}},
	}
	msg, err := req.encode(1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	selEnc, err := bson.Marshal(req.Selector)
	if err != nil {
		t.Fatalf("Marshal selector: %v", err)
	}
	projEnc, err := bson.Marshal(req.Projector)
	if err != nil {
		t.Fatalf("Marshal projector: %v", err)
	}
	if len(msg) != headerLen+4+len("db.coll\x00")+4+4+len(selEnc)+len(projEnc) {
		t.Errorf("unexpected encoded length %d", len(msg))
	}
}

func TestEncodeGetMore(t *testing.T) {
	msg := encodeGetMore(3, "db.coll", 100, 999)
	if got := opCode(int32(byteOrder.Uint32(msg[12:16]))); got != opGetMore {
		t.Fatalf("opCode = %d, want %d", got, opGetMore)
	}
	body := msg[headerLen:]
	if got := byteOrder.Uint32(body[0:4]); got != 0 {
		t.Errorf("reserved field = %d, want 0", got)
	}
	wantColl := "db.coll\x00"
	rest := body[4+len(wantColl):]
	if got := int32(byteOrder.Uint32(rest[0:4])); got != 100 {
		t.Errorf("wireBatch = %d, want 100", got)
	}
	if got := int64(byteOrder.Uint64(rest[4:12])); got != 999 {
		t.Errorf("cursorID = %d, want 999", got)
	}
}
