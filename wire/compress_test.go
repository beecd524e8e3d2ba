package wire

import (
	"testing"
)

// frameMessage builds a minimal well-formed wire message (header plus an
// arbitrary body) the way Notice/QueryRequest encoders do, so compression
// round trips can be tested without going through bson.
func frameMessage(op opCode, body []byte) []byte {
	var b buffer
	writeHeader(&b, 1, 0, op)
	b.Write(body)
	patchLength(b)
	return []byte(b)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	body := []byte("a sample message body that compresses reasonably well well well")
	msg := frameMessage(opQuery, body)

	for _, c := range []compressorID{compressorSnappy, compressorZlib, compressorZstd} {
		t.Run(string(rune('A'+c)), func(t *testing.T) {
			compressed, err := compressMessage(2, msg, c)
			if err != nil {
				t.Fatalf("compressMessage: %v", err)
			}

			// The envelope itself looks like an OP_COMPRESSED message.
			gotOp := opCode(int32(byteOrder.Uint32(compressed[12:16])))
			if gotOp != opCompressed {
				t.Fatalf("expected envelope opcode %d, got %d", opCompressed, gotOp)
			}

			originalOp, uncompressed, err := decompress(compressed[headerLen:])
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if originalOp != opQuery {
				t.Errorf("expected original opcode %d, got %d", opQuery, originalOp)
			}
			if string(uncompressed) != string(body) {
				t.Errorf("decompressed body mismatch: got %q, want %q", uncompressed, body)
			}
		})
	}
}

func TestCompressMessageNoopPassesThrough(t *testing.T) {
	msg := frameMessage(opQuery, []byte("hello"))
	out, err := compressMessage(1, msg, compressorNoop)
	if err != nil {
		t.Fatalf("compressMessage: %v", err)
	}
	if string(out) != string(msg) {
		t.Error("compressorNoop should return the message unchanged")
	}
}

func TestDecompressSizeMismatch(t *testing.T) {
	msg := frameMessage(opQuery, []byte("hello world"))
	compressed, err := compressMessage(1, msg, compressorSnappy)
	if err != nil {
		t.Fatalf("compressMessage: %v", err)
	}
	// Corrupt the declared uncompressed size.
	byteOrder.PutUint32(compressed[headerLen+4:headerLen+8], 999)
	if _, _, err := decompress(compressed[headerLen:]); err == nil {
		t.Error("expected a size-mismatch error")
	}
}
