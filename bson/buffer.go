package bson

import "encoding/binary"

var wireOrder = binary.LittleEndian

// buffer wraps a growable byte slice with the little-endian writes BSON and
// the MongoDB wire protocol share.
type buffer []byte

func (b *buffer) Next(n int) []byte {
	begin := len(*b)
	end := begin + n
	if end > cap(*b) {
		grown := make([]byte, begin, 2*cap(*b)+n)
		copy(grown, *b)
		*b = grown
	}
	*b = (*b)[:end]
	return (*b)[begin:end]
}

func (b *buffer) WriteCString(s string) {
	copy(b.Next(len(s)), s)
	b.WriteByte(0)
}

func (b *buffer) Write(p []byte) {
	copy(b.Next(len(p)), p)
}

func (b *buffer) WriteByte(n byte) {
	b.Next(1)[0] = n
}

func (b *buffer) WriteUint32(n uint32) {
	wireOrder.PutUint32(b.Next(4), n)
}

func (b *buffer) WriteUint64(n uint64) {
	wireOrder.PutUint64(b.Next(8), n)
}

// beginDoc reserves the 4-byte length prefix every BSON document (and
// array, and code-with-scope) opens with, returning its offset so a
// matching endDoc can patch it once the document's extent is known.
// Documents nest, so these calls nest too: encodeCodeWithScope opens an
// outer document and then an inner scope document before closing either.
func (b *buffer) beginDoc() int {
	offset := len(*b)
	b.Next(4)
	return offset
}

// endDoc patches the length prefix reserved by the beginDoc call at
// offset, now that everything between them has been written.
func (b *buffer) endDoc(offset int) {
	n := len(*b) - offset
	wireOrder.PutUint32((*b)[offset:offset+4], uint32(n))
}
