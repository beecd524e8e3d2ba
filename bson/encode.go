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
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// EncodeTypeError indicates that Marshal encountered a type it cannot
// represent in BSON.
type EncodeTypeError struct {
	Type reflect.Type
}

func (e *EncodeTypeError) Error() string {
	return "bson: unsupported type: " + e.Type.String()
}

type encodeState struct {
	buffer
}

var (
	typeD    = reflect.TypeOf(D{})
	typeM    = reflect.TypeOf(M{})
	typeRaw  = reflect.TypeOf(Raw{})
	idKey    = "_id"
)

// Marshal returns the BSON encoding of doc in a newly allocated slice;
// MarshalAppend appends it to an existing buffer instead.
//
// Struct values encode as BSON documents using the `bson:"name,omitempty"`
// struct tag to rename a field or (with omitempty) skip it when it holds
// its zero value. Map values with string keys encode as documents; in a
// top-level map the "_id" key, if present, is written first, while nested
// maps keep map iteration order. Slices and arrays encode
// as BSON arrays. Pointers and interfaces encode as the value they hold;
// nil skips the field entirely.
func Marshal(doc interface{}) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	e := encodeState{}
	switch v.Type() {
	case typeD:
		e.writeD(v.Interface().(D))
	case typeM:
		e.writeMap(v, true)
	case typeRaw:
		rd := v.Interface().(Raw)
		if rd.Kind != kindDocument {
			return nil, &EncodeTypeError{v.Type()}
		}
		e.Write(rd.Data)
	default:
		switch v.Kind() {
		case reflect.Struct:
			e.writeStruct(v)
		case reflect.Map:
			e.writeMap(v, true)
		default:
			return nil, &EncodeTypeError{v.Type()}
		}
	}
	return []byte(e.buffer), nil
}

// MarshalAppend is Marshal but appends onto an existing buffer, used by the
// wire layer to avoid a document-per-allocation when framing a message.
func MarshalAppend(buf []byte, doc interface{}) ([]byte, error) {
	enc, err := Marshal(doc)
	if err != nil {
		return buf, err
	}
	return append(buf, enc...), nil
}

func (e *encodeState) abort(err error) { panic(err) }

func (e *encodeState) writeKindName(kind byte, name string) {
	e.WriteByte(kind)
	e.WriteCString(name)
}

func (e *encodeState) writeStruct(v reflect.Value) {
	offset := e.beginDoc()
	si := structInfoForType(v.Type())
	for _, fi := range si.list {
		e.encodeValue(fi.name, fi, v.FieldByIndex(fi.index))
	}
	e.WriteByte(0)
	e.endDoc(offset)
}

func (e *encodeState) writeMap(v reflect.Value, topLevel bool) {
	if v.IsNil() {
		e.beginAndEndEmptyDoc()
		return
	}
	if v.Type().Key().Kind() != reflect.String {
		e.abort(&EncodeTypeError{v.Type()})
	}
	offset := e.beginDoc()
	skipId := false
	if topLevel {
		idValue := v.MapIndex(reflect.ValueOf(idKey))
		if idValue.IsValid() {
			skipId = true
			e.encodeValue(idKey, defaultFieldInfo, idValue)
		}
	}
	keys := v.MapKeys()
	for _, k := range keys {
		sk := k.String()
		if skipId && sk == idKey {
			continue
		}
		e.encodeValue(sk, defaultFieldInfo, v.MapIndex(k))
	}
	e.WriteByte(0)
	e.endDoc(offset)
}

func (e *encodeState) beginAndEndEmptyDoc() {
	offset := e.beginDoc()
	e.WriteByte(0)
	e.endDoc(offset)
}

func (e *encodeState) writeD(v D) {
	offset := e.beginDoc()
	for _, kv := range v {
		e.encodeValue(kv.Key, defaultFieldInfo, reflect.ValueOf(kv.Value))
	}
	e.WriteByte(0)
	e.endDoc(offset)
}

func (e *encodeState) encodeValue(name string, fi *fieldInfo, v reflect.Value) {
	if !v.IsValid() {
		return
	}
	t := v.Type()
	if encoder, ok := typeEncoder[t]; ok {
		encoder(e, name, fi, v)
		return
	}
	if encoder, ok := kindEncoder[t.Kind()]; ok {
		encoder(e, name, fi, v)
		return
	}
	e.abort(&EncodeTypeError{t})
}

func encodeBool(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	b := v.Bool()
	if !b && fi.conditional {
		return
	}
	e.writeKindName(kindBool, name)
	if b {
		e.WriteByte(1)
	} else {
		e.WriteByte(0)
	}
}

func encodeInt32(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	i := v.Int()
	if i == 0 && fi.conditional {
		return
	}
	e.writeKindName(kindInt32, name)
	e.WriteUint32(uint32(int32(i)))
}

func encodeUint32(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	i := v.Uint()
	if i == 0 && fi.conditional {
		return
	}
	e.writeKindName(kindInt32, name)
	e.WriteUint32(uint32(i))
}

func encodeInt64Kind(kind byte) func(*encodeState, string, *fieldInfo, reflect.Value) {
	return func(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
		i := v.Int()
		if i == 0 && fi.conditional {
			return
		}
		e.writeKindName(kind, name)
		e.WriteUint64(uint64(i))
	}
}

func encodeUint64(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	i := v.Uint()
	if i == 0 && fi.conditional {
		return
	}
	e.writeKindName(kindInt64, name)
	e.WriteUint64(i)
}

func encodeFloat(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	f := v.Float()
	if f == 0 && fi.conditional {
		return
	}
	e.writeKindName(kindFloat, name)
	e.WriteUint64(math.Float64bits(f))
}

func encodeStringKind(kind byte) func(*encodeState, string, *fieldInfo, reflect.Value) {
	return func(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
		s := v.String()
		if s == "" && fi.conditional {
			return
		}
		e.writeKindName(kind, name)
		e.WriteUint32(uint32(len(s) + 1))
		e.WriteCString(s)
	}
}

func encodeRegexp(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	r := v.Interface().(Regexp)
	if r.Pattern == "" && fi.conditional {
		return
	}
	e.writeKindName(kindRegexp, name)
	e.WriteCString(r.Pattern)
	e.WriteCString(r.Options)
}

func encodeObjectId(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	oid := v.Interface().(ObjectId)
	if oid == "" {
		return
	}
	if len(oid) != 12 {
		e.abort(fmt.Errorf("bson: object id length != 12"))
	}
	e.writeKindName(kindObjectId, name)
	copy(e.Next(12), oid)
}

func encodeRaw(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	rd := v.Interface().(Raw)
	if rd.Kind == 0 {
		return
	}
	e.writeKindName(rd.Kind, name)
	e.Write(rd.Data)
}

func encodeCodeWithScope(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	c := v.Interface().(CodeWithScope)
	if c.Code == "" && c.Scope == nil && fi.conditional {
		return
	}
	e.writeKindName(kindCodeWithScope, name)
	offset := e.beginDoc()
	e.WriteUint32(uint32(len(c.Code) + 1))
	e.WriteCString(c.Code)
	scopeOffset := e.beginDoc()
	for k, v := range c.Scope {
		e.encodeValue(k, defaultFieldInfo, reflect.ValueOf(v))
	}
	e.WriteByte(0)
	e.endDoc(scopeOffset)
	e.endDoc(offset)
}

func encodeMinMax(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	mm := v.Interface().(MinMax)
	if mm == 0 && fi.conditional {
		return
	}
	switch mm {
	case MaxValue:
		e.writeKindName(kindMaxValue, name)
	case MinValue:
		e.writeKindName(kindMinValue, name)
	default:
		e.abort(fmt.Errorf("bson: unknown MinMax value %d", mm))
	}
}

func encodeStruct(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	e.writeKindName(kindDocument, name)
	e.writeStruct(v)
}

func encodeMap(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	if v.IsNil() {
		return
	}
	e.writeKindName(kindDocument, name)
	e.writeMap(v, false)
}

func encodeD(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	d := v.Interface().(D)
	if d == nil {
		return
	}
	e.writeKindName(kindDocument, name)
	e.writeD(d)
}

func encodeByteSlice(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	b := v.Interface().([]byte)
	if b == nil {
		return
	}
	e.writeKindName(kindBinary, name)
	e.WriteUint32(uint32(len(b)))
	e.WriteByte(0)
	e.Write(b)
}

func encodeSliceOrArray(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return
	}
	e.writeKindName(kindArray, name)
	offset := e.beginDoc()
	n := v.Len()
	for i := 0; i < n; i++ {
		e.encodeValue(strconv.Itoa(i), defaultFieldInfo, v.Index(i))
	}
	e.WriteByte(0)
	e.endDoc(offset)
}

func encodeInterfaceOrPtr(e *encodeState, name string, fi *fieldInfo, v reflect.Value) {
	if v.IsNil() {
		return
	}
	e.encodeValue(name, defaultFieldInfo, v.Elem())
}

type encoderFunc func(e *encodeState, name string, fi *fieldInfo, v reflect.Value)

var kindEncoder map[reflect.Kind]encoderFunc
var typeEncoder map[reflect.Type]encoderFunc

func init() {
	kindEncoder = map[reflect.Kind]encoderFunc{
		reflect.Array:   encodeSliceOrArray,
		reflect.Bool:    encodeBool,
		reflect.Float32: encodeFloat,
		reflect.Float64: encodeFloat,
		reflect.Int8:    encodeInt32,
		reflect.Int16:   encodeInt32,
		reflect.Int32:   encodeInt32,
		reflect.Int:     encodeInt32,
		reflect.Uint8:   encodeUint32,
		reflect.Uint16:  encodeUint32,
		reflect.Uint32:  encodeUint64,
		reflect.Uint:    encodeUint64,
		reflect.Int64:   encodeInt64Kind(kindInt64),
		reflect.Interface: encodeInterfaceOrPtr,
		reflect.Map:       encodeMap,
		reflect.Ptr:       encodeInterfaceOrPtr,
		reflect.Slice:     encodeSliceOrArray,
		reflect.String:    encodeStringKind(kindString),
		reflect.Struct:    encodeStruct,
	}
	typeEncoder = map[reflect.Type]encoderFunc{
		typeD:                         encodeD,
		typeRaw:                       encodeRaw,
		reflect.TypeOf(Code("")):      encodeStringKind(kindCode),
		reflect.TypeOf(CodeWithScope{}): encodeCodeWithScope,
		reflect.TypeOf(DateTime(0)):   encodeInt64Kind(kindDateTime),
		reflect.TypeOf(MinMax(0)):     encodeMinMax,
		reflect.TypeOf(ObjectId("")):  encodeObjectId,
		reflect.TypeOf(Regexp{}):      encodeRegexp,
		reflect.TypeOf(Symbol("")):    encodeStringKind(kindSymbol),
		reflect.TypeOf(Timestamp(0)):  encodeInt64Kind(kindTimestamp),
		reflect.TypeOf([]byte{}):      encodeByteSlice,
	}
}
