package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// compressorID identifies the payload compressor used inside an
// OP_COMPRESSED envelope, per the wire protocol's compression extension.
type compressorID byte

const (
	compressorNoop   compressorID = 0
	compressorSnappy compressorID = 1
	compressorZlib   compressorID = 2
	compressorZstd   compressorID = 3
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// compressMessage wraps one already-framed wire message (header included)
// in an OP_COMPRESSED envelope. The inner header's own length/opcode are
// recovered from msg itself; the envelope gets a fresh 16-byte header of
// its own.
func compressMessage(requestID uint32, msg []byte, c compressorID) ([]byte, error) {
	if c == compressorNoop || len(msg) < headerLen {
		return msg, nil
	}
	originalOp := opCode(int32(byteOrder.Uint32(msg[12:16])))
	body := msg[headerLen:]

	payload, err := compressBody(body, c)
	if err != nil {
		return nil, err
	}

	var b buffer
	writeHeader(&b, requestID, 0, opCompressed)
	b.WriteInt32(int32(originalOp))
	b.WriteInt32(int32(len(body)))
	b.WriteByte(byte(c))
	b.Write(payload)
	patchLength(b)
	return b, nil
}

func compressBody(p []byte, c compressorID) ([]byte, error) {
	switch c {
	case compressorSnappy:
		return snappy.Encode(nil, p), nil
	case compressorZlib:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(p); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case compressorZstd:
		return zstdEncoder.EncodeAll(p, nil), nil
	default:
		return nil, fmt.Errorf("wire: unsupported compressor %d", c)
	}
}

// decompress unwraps an OP_COMPRESSED body (the part of the message after
// the shared 16-byte header), returning the opcode and body it wraps.
func decompress(body []byte) (opCode, []byte, error) {
	if len(body) < 9 {
		return 0, nil, fmt.Errorf("wire: truncated compressed message")
	}
	originalOp := opCode(int32(byteOrder.Uint32(body[0:4])))
	uncompressedSize := int32(byteOrder.Uint32(body[4:8]))
	c := compressorID(body[8])
	payload := body[9:]

	var out []byte
	var err error
	switch c {
	case compressorNoop:
		out = payload
	case compressorSnappy:
		out, err = snappy.Decode(nil, payload)
	case compressorZlib:
		var r io.ReadCloser
		r, err = zlib.NewReader(bytes.NewReader(payload))
		if err == nil {
			defer r.Close()
			out, err = io.ReadAll(r)
		}
	case compressorZstd:
		out, err = zstdDecoder.DecodeAll(payload, make([]byte, 0, uncompressedSize))
	default:
		err = fmt.Errorf("wire: unsupported compressor %d", c)
	}
	if err != nil {
		return 0, nil, err
	}
	if int32(len(out)) != uncompressedSize {
		return 0, nil, fmt.Errorf("wire: decompressed size mismatch: got %d want %d", len(out), uncompressedSize)
	}
	return originalOp, out, nil
}
