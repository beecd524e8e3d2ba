package mongo

import (
	"context"
	"testing"

	"github.com/burdmongo/wiredriver/bson"
	"github.com/burdmongo/wiredriver/wire"
)

func TestAllDatabases(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(scriptedReply{reply: &wire.Reply{
		Documents: [][]byte{marshalDoc(t, bson.D{
			{"ok", 1.0},
			{"databases", []interface{}{
				bson.M{"name": "admin"},
				bson.M{"name": "test"},
			}},
		})},
	}})
	s := newTestSession(fc)

	names, err := s.AllDatabases(ctx)
	if err != nil {
		t.Fatalf("AllDatabases: %v", err)
	}
	want := []string{"admin", "test"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("AllDatabases() = %v, want %v", names, want)
	}
}

func TestAllCollectionsFiltersIndexNamespaces(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(replyOf(0,
		bson.D{{"name", "test.widgets"}},
		bson.D{{"name", "test.widgets.$_id_"}},
		bson.D{{"name", "local.oplog.$main"}},
	))
	s := newTestSession(fc)

	names, err := s.AllCollections(ctx)
	if err != nil {
		t.Fatalf("AllCollections: %v", err)
	}
	want := map[string]bool{"widgets": true, "local.oplog.$main": true}
	if len(names) != len(want) {
		t.Fatalf("unexpected names: %v", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected collection name %q", n)
		}
	}
}

func TestAllCollectionsSortsByName(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(replyOf(0, bson.D{{"name", "test.widgets"}}))
	s := newTestSession(fc)

	if _, err := s.AllCollections(ctx); err != nil {
		t.Fatalf("AllCollections: %v", err)
	}

	call := fc.lastSend()
	env, ok := call.req.Selector.(bson.D)
	if !ok {
		t.Fatalf("expected a $query/$orderby envelope, got %#v", call.req.Selector)
	}
	var sawQuery, sawOrderby bool
	for _, e := range env {
		switch e.Key {
		case "$query":
			sawQuery = true
		case "$orderby":
			sawOrderby = true
			sort, ok := e.Value.(bson.D)
			if !ok || len(sort) != 1 || sort[0].Key != "name" || sort[0].Value != 1 {
				t.Errorf("expected $orderby: {name: 1}, got %#v", e.Value)
			}
		}
	}
	if !sawQuery || !sawOrderby {
		t.Errorf("expected both $query and $orderby in the envelope, got %#v", env)
	}
}

func TestAllDatabasesCollections(t *testing.T) {
	ctx := context.Background()
	fc := newFakeConn(
		scriptedReply{reply: &wire.Reply{Documents: [][]byte{marshalDoc(t, bson.D{
			{"ok", 1.0},
			{"databases", []interface{}{bson.M{"name": "a"}, bson.M{"name": "b"}}},
		})}}},
		replyOf(0, bson.D{{"name", "a.widgets"}}),
		replyOf(0, bson.D{{"name", "b.gadgets"}}),
	)
	s := newTestSession(fc)

	result, err := s.AllDatabasesCollections(ctx)
	if err != nil {
		t.Fatalf("AllDatabasesCollections: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 databases, got %d", len(result))
	}
}
