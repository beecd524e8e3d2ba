package mongo

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

func TestNumberToReturn(t *testing.T) {
	tests := []struct {
		name          string
		batchSize     int32
		limit         int32
		wantWireBatch int32
		wantRemaining int32
	}{
		{"unlimited no batch size", 0, 0, 0, 0},
		{"unlimited with batch size", 25, 0, 25, 0},
		{"batch size 1 never yields wire batch 1 (limited)", 1, 10, 2, 8},
		{"batch size 1 unlimited rewrites to 2", 1, 0, 2, 0},
		{"partial batch, cursor stays open", 3, 10, 3, 7},
		{"batch size equals limit closes in one round", 5, 5, -5, 1},
		{"batch size exceeds limit closes in one round", 100, 5, -5, 1},
		{"zero batch size with a limit closes in one round", 0, 5, -5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wireBatch, remaining := numberToReturn(tt.batchSize, tt.limit)
			if wireBatch != tt.wantWireBatch || remaining != tt.wantRemaining {
				t.Errorf("numberToReturn(%d, %d) = (%d, %d), want (%d, %d)",
					tt.batchSize, tt.limit, wireBatch, remaining, tt.wantWireBatch, tt.wantRemaining)
			}
			if tt.batchSize == 1 && wireBatch == 1 {
				t.Errorf("numberToReturn(1, %d) produced wire batch 1", tt.limit)
			}
		})
	}
}

func TestQueryEnvelope(t *testing.T) {
	s := newTestSession(newFakeConn())
	selector := bson.D{{"x", 1}}

	plain := s.Find("t", selector)
	if diff := cmp.Diff(selector, plain.envelope()); diff != "" {
		t.Errorf("plain find should send the bare selector (-want +got):\n%s", diff)
	}

	withSort := s.Find("t", selector).Sort(bson.D{{"x", -1}})
	env, ok := withSort.envelope().(bson.D)
	if !ok {
		t.Fatalf("expected a wrapped $query envelope, got %#v", withSort.envelope())
	}
	if env[0].Key != "$query" {
		t.Errorf("expected $query as first field, got %q", env[0].Key)
	}

	withExplain := s.Find("t", selector).Explain()
	env, ok = withExplain.envelope().(bson.D)
	if !ok {
		t.Fatalf("expected a wrapped $query envelope for explain, got %#v", withExplain.envelope())
	}
	found := false
	for _, item := range env {
		if item.Key == "$explain" && item.Value == true {
			found = true
		}
	}
	if !found {
		t.Errorf("expected $explain: true in envelope, got %#v", env)
	}
}

// BatchSize(1) rewrites the wire batch size to 2, and the cursor still
// drains every matching document across the resulting batches.
func TestBatchSizeQuirkEndToEnd(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(
		replyOf(42, doc(0), doc(1)),
		replyOf(42, doc(2), doc(3)),
		replyOf(0, doc(4)),
	)
	s := newTestSession(fc)

	cur, err := s.Find("t", bson.D{}).BatchSize(1).Limit(5).Cursor(ctx)
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	defer cur.Close(ctx)

	if got := fc.lastSend().req.BatchSize; got != 2 {
		t.Errorf("BatchSize(1) should reconcile to wire batch 2, got %d", got)
	}

	var count int
	for {
		var m map[string]interface{}
		ok, err := cur.Next(ctx, &m)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 5 {
		t.Errorf("expected 5 documents, got %d", count)
	}
	if !cur.IsClosed() {
		t.Error("cursor should be closed after drain")
	}
}

// Scenario 3: a Limit caps the cursor at exactly that many documents even
// though the simulated collection "has" more than that.
func TestLimitExhaustionEndToEnd(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(replyOf(0, doc(0), doc(1), doc(2)))
	s := newTestSession(fc)

	cur, err := s.Find("t", bson.D{}).Limit(3).Cursor(ctx)
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}

	var count int
	for {
		var m map[string]interface{}
		ok, err := cur.Next(ctx, &m)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 3 {
		t.Errorf("expected exactly 3 documents, got %d", count)
	}
	if !cur.IsClosed() {
		t.Error("expected cursor to be closed once the server's single batch is drained")
	}
}

func doc(x int) bson.D {
	return bson.D{{"x", x}}
}

func TestQueryOneNotFound(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(replyOf(0))
	s := newTestSession(fc)

	var m map[string]interface{}
	err := s.Find("t", bson.D{{"missing", true}}).One(ctx, &m)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

var _ wire.Conn = (*fakeConn)(nil)
