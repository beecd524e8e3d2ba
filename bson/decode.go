package bson

import (
	"fmt"
	"math"
	"reflect"
)

// DecodeTypeError indicates that Unmarshal could not store a BSON value of
// the given kind into the destination Go type.
type DecodeTypeError struct {
	Kind byte
	Type reflect.Type
}

func (e *DecodeTypeError) Error() string {
	return fmt.Sprintf("bson: cannot decode %s into %s", kindName(e.Kind), e.Type)
}

type decodeState struct {
	data []byte
	pos  int
}

func (d *decodeState) readByte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, fmt.Errorf("bson: truncated document")
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decodeState) readN(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, fmt.Errorf("bson: truncated document")
	}
	p := d.data[d.pos : d.pos+n]
	d.pos += n
	return p, nil
}

func (d *decodeState) readCString() (string, error) {
	start := d.pos
	for d.pos < len(d.data) && d.data[d.pos] != 0 {
		d.pos++
	}
	if d.pos >= len(d.data) {
		return "", fmt.Errorf("bson: unterminated cstring")
	}
	s := string(d.data[start:d.pos])
	d.pos++
	return s, nil
}

func (d *decodeState) readInt32() (int32, error) {
	p, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return int32(wireOrder.Uint32(p)), nil
}

func (d *decodeState) readUint32() (uint32, error) {
	p, err := d.readN(4)
	if err != nil {
		return 0, err
	}
	return wireOrder.Uint32(p), nil
}

func (d *decodeState) readInt64() (int64, error) {
	p, err := d.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(wireOrder.Uint64(p)), nil
}

func (d *decodeState) peekLength() (int, error) {
	if d.pos+4 > len(d.data) {
		return 0, fmt.Errorf("bson: truncated document")
	}
	return int(wireOrder.Uint32(d.data[d.pos : d.pos+4])), nil
}

// element is one decoded (kind, name, value) triple from a document body.
type element struct {
	kind byte
	name string
	val  interface{}
}

// Unmarshal decodes BSON-encoded data into out, which must be a non-nil
// pointer to a map, struct, or bson.D/bson.M.
func Unmarshal(data []byte, out interface{}) error {
	v := reflect.ValueOf(out)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("bson: Unmarshal requires a non-nil pointer")
	}
	if v.Elem().Type() == typeRaw {
		cp := make([]byte, len(data))
		copy(cp, data)
		v.Elem().Set(reflect.ValueOf(Raw{Kind: kindDocument, Data: cp}))
		return nil
	}
	elems, err := decodeDocBody(data)
	if err != nil {
		return err
	}
	return assignDoc(elems, v.Elem())
}

// decodeDocBody parses a whole document (4-byte length prefix included, as
// delivered on the wire or copied out of a Raw) into its elements.
func decodeDocBody(data []byte) ([]element, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("bson: document too short")
	}
	n := int(wireOrder.Uint32(data[0:4]))
	if n > len(data) {
		return nil, fmt.Errorf("bson: declared length %d exceeds buffer of %d", n, len(data))
	}
	d := &decodeState{data: data[4:n]}
	return d.readElements()
}

// readElements reads elements up to (and consuming) the trailing 0x00
// terminator, from a decodeState positioned just past a document's length
// prefix.
func (d *decodeState) readElements() ([]element, error) {
	var elems []element
	for {
		kind, err := d.readByte()
		if err != nil {
			return nil, err
		}
		if kind == 0 {
			return elems, nil
		}
		name, err := d.readCString()
		if err != nil {
			return nil, err
		}
		val, err := d.readValue(kind)
		if err != nil {
			return nil, err
		}
		elems = append(elems, element{kind: kind, name: name, val: val})
	}
}

func (d *decodeState) readValue(kind byte) (interface{}, error) {
	switch kind {
	case kindFloat:
		p, err := d.readN(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(wireOrder.Uint64(p)), nil
	case kindString, kindCode, kindSymbol:
		n, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		p, err := d.readN(int(n))
		if err != nil {
			return nil, err
		}
		s := string(p[:len(p)-1])
		switch kind {
		case kindCode:
			return Code(s), nil
		case kindSymbol:
			return Symbol(s), nil
		default:
			return s, nil
		}
	case kindDocument, kindArray:
		n, err := d.peekLength()
		if err != nil {
			return nil, err
		}
		body, err := d.readN(n)
		if err != nil {
			return nil, err
		}
		sub := &decodeState{data: body[4:]}
		elems, err := sub.readElements()
		if err != nil {
			return nil, err
		}
		if kind == kindArray {
			out := make([]interface{}, len(elems))
			for i, e := range elems {
				out[i] = e.val
			}
			return out, nil
		}
		m := make(M, len(elems))
		for _, e := range elems {
			m[e.name] = e.val
		}
		return m, nil
	case kindBinary:
		n, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		if _, err := d.readByte(); err != nil { // subtype, unused
			return nil, err
		}
		p, err := d.readN(int(n))
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(p))
		copy(out, p)
		return out, nil
	case kindObjectId:
		p, err := d.readN(12)
		if err != nil {
			return nil, err
		}
		return ObjectId(p), nil
	case kindBool:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return b != 0, nil
	case kindDateTime:
		i, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return DateTime(i), nil
	case kindNull:
		return nil, nil
	case kindRegexp:
		pattern, err := d.readCString()
		if err != nil {
			return nil, err
		}
		opts, err := d.readCString()
		if err != nil {
			return nil, err
		}
		return Regexp{Pattern: pattern, Options: opts}, nil
	case kindCodeWithScope:
		total, err := d.peekLength()
		if err != nil {
			return nil, err
		}
		body, err := d.readN(total)
		if err != nil {
			return nil, err
		}
		sub := &decodeState{data: body[4:]}
		n, err := sub.readInt32()
		if err != nil {
			return nil, err
		}
		p, err := sub.readN(int(n))
		if err != nil {
			return nil, err
		}
		code := string(p[:len(p)-1])
		scopeLen, err := sub.peekLength()
		if err != nil {
			return nil, err
		}
		scopeBody, err := sub.readN(scopeLen)
		if err != nil {
			return nil, err
		}
		scopeSub := &decodeState{data: scopeBody[4:]}
		scopeElems, err := scopeSub.readElements()
		if err != nil {
			return nil, err
		}
		scope := make(M, len(scopeElems))
		for _, e := range scopeElems {
			scope[e.name] = e.val
		}
		return CodeWithScope{Code: code, Scope: scope}, nil
	case kindInt32:
		i, err := d.readInt32()
		if err != nil {
			return nil, err
		}
		return int(i), nil
	case kindTimestamp:
		i, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return Timestamp(i), nil
	case kindInt64:
		i, err := d.readInt64()
		if err != nil {
			return nil, err
		}
		return i, nil
	case kindMinValue:
		return MinValue, nil
	case kindMaxValue:
		return MaxValue, nil
	default:
		return nil, fmt.Errorf("bson: unknown element kind 0x%x", kind)
	}
}
