package wire

import (
	"testing"

	"github.com/burdmongo/wiredriver/bson"
)

func buildReplyBody(flags ResponseFlag, cursorID int64, startingFrom int32, docs ...interface{}) []byte {
	var b buffer
	b.WriteUint32(uint32(flags))
	b.WriteInt64(cursorID)
	b.WriteInt32(startingFrom)
	b.WriteInt32(int32(len(docs)))
	for _, d := range docs {
		enc, err := bson.Marshal(d)
		if err != nil {
			panic(err)
		}
		b.Write(enc)
	}
	return []byte(b)
}

func TestParseReply(t *testing.T) {
	body := buildReplyBody(AwaitCapableFlag, 42, 0, bson.D{{"x", 1}}, bson.D{{"x", 2}})
	r, err := parseReply(opReply, body)
	if err != nil {
		t.Fatalf("parseReply: %v", err)
	}
	if r.CursorID != 42 {
		t.Errorf("CursorID = %d, want 42", r.CursorID)
	}
	if !r.Has(AwaitCapableFlag) {
		t.Error("expected AwaitCapableFlag to be set")
	}
	if r.Has(QueryErrorFlag) {
		t.Error("QueryErrorFlag should not be set")
	}
	if len(r.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(r.Documents))
	}
	var out bson.M
	if err := bson.Unmarshal(r.Documents[1], &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["x"] != 2 {
		t.Errorf("second document x = %#v, want 2", out["x"])
	}
}

func TestParseReplyWrongOpCode(t *testing.T) {
	body := buildReplyBody(0, 0, 0)
	if _, err := parseReply(opQuery, body); err == nil {
		t.Error("expected an error for a non-reply opcode")
	}
}

func TestParseReplyTruncatedHeader(t *testing.T) {
	if _, err := parseReply(opReply, []byte{1, 2, 3}); err == nil {
		t.Error("expected a truncated-header error")
	}
}

func TestParseReplyTruncatedDocument(t *testing.T) {
	body := buildReplyBody(0, 0, 0, bson.D{{"x", 1}})
	truncated := body[:len(body)-2]
	if _, err := parseReply(opReply, truncated); err == nil {
		t.Error("expected a truncated-document error")
	}
}

func TestParseReplyDocumentLengthOverrun(t *testing.T) {
	body := buildReplyBody(0, 0, 0, bson.D{{"x", 1}})
	// Corrupt the declared length of the one document to exceed the body.
	byteOrder.PutUint32(body[20:24], uint32(len(body)*2))
	if _, err := parseReply(opReply, body); err == nil {
		t.Error("expected a length-overrun error")
	}
}
