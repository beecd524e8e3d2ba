package wire

import "encoding/binary"

var byteOrder = binary.LittleEndian

// buffer is a growable byte slice with the little-endian writes the wire
// protocol's message framing needs. It mirrors bson's internal buffer so
// that message assembly and document assembly look the same to a reader
// moving between the two packages.
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

func (b *buffer) WriteInt32(n int32) {
	byteOrder.PutUint32(b.Next(4), uint32(n))
}

func (b *buffer) WriteUint32(n uint32) {
	byteOrder.PutUint32(b.Next(4), n)
}

func (b *buffer) WriteInt64(n int64) {
	byteOrder.PutUint64(b.Next(8), uint64(n))
}

func (b *buffer) WriteUint64(n uint64) {
	byteOrder.PutUint64(b.Next(8), n)
}
