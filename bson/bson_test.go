// Copyright 2010 Gary Burd
//
// Licensed under the Apache License, Version 2.0 (the "License"): you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package bson

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
)

func TestObjectIdRoundTrip(t *testing.T) {
	id := NewObjectId()
	if !id.Valid() {
		t.Fatalf("freshly generated ObjectId is not valid: %q", id)
	}
	hex := id.Hex()
	back, err := ObjectIdFromHex(hex)
	if err != nil {
		t.Fatalf("ObjectIdFromHex(%q): %v", hex, err)
	}
	if back != id {
		t.Errorf("round trip mismatch: got %q, want %q", back, id)
	}
}

func TestObjectIdUniqueness(t *testing.T) {
	seen := make(map[ObjectId]bool)
	for i := 0; i < 1000; i++ {
		id := NewObjectId()
		if seen[id] {
			t.Fatalf("duplicate ObjectId generated: %q", id)
		}
		seen[id] = true
	}
}

func TestObjectIdCreationTime(t *testing.T) {
	now := time.Now().Unix()
	id := newObjectId(now, 1)
	if got := id.CreationTime().Unix(); got != now {
		t.Errorf("CreationTime() = %d, want %d", got, now)
	}
}

func TestDAppendDoesNotMutateOriginal(t *testing.T) {
	base := D{{"a", 1}}
	extended := base.Append("b", 2)

	if len(base) != 1 {
		t.Fatalf("Append mutated the receiver: %#v", base)
	}
	want := D{{"a", 1}, {"b", 2}}
	if diff := cmp.Diff(want, extended); diff != "" {
		t.Errorf("Append result mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalUnmarshalStruct(t *testing.T) {
	type inner struct {
		Y string `bson:"y"`
	}
	type doc struct {
		ID     ObjectId `bson:"_id"`
		X      int      `bson:"x"`
		Nested inner    `bson:"nested"`
		Absent string   `bson:"absent,omitempty"`
	}

	in := doc{ID: NewObjectId(), X: 42, Nested: inner{Y: "hi"}}
	enc, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out doc
	if err := Unmarshal(enc, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s\nin:  %s\nout: %s", diff, spew.Sdump(in), spew.Sdump(out))
	}
}

func TestMarshalUnmarshalD(t *testing.T) {
	in := D{{"a", int32(1)}, {"b", "two"}, {"c", true}}
	enc, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out M
	if err := Unmarshal(enc, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	// kindInt32 decodes generically to Go's int, regardless of whether
	// the encoded value started out as an int or an int32.
	if out["a"] != int(1) || out["b"] != "two" || out["c"] != true {
		t.Errorf("unexpected decoded map: %#v", out)
	}
}

func TestUnmarshalIntoRaw(t *testing.T) {
	enc, err := Marshal(D{{"x", 1}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var r Raw
	if err := Unmarshal(enc, &r); err != nil {
		t.Fatalf("Unmarshal into Raw: %v", err)
	}

	var m M
	if err := r.Decode(&m); err != nil {
		t.Fatalf("Raw.Decode: %v", err)
	}
	if m["x"] != 1 {
		t.Errorf("expected x=1, got %#v", m)
	}
}

func TestOmitEmptyFieldIsDropped(t *testing.T) {
	type doc struct {
		X int    `bson:"x"`
		Y string `bson:"y,omitempty"`
	}
	enc, err := Marshal(doc{X: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out M
	if err := Unmarshal(enc, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, present := out["y"]; present {
		t.Errorf("expected omitempty field to be absent, got %#v", out)
	}
}
