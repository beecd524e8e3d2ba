package wire

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is a single multiplexed connection to a mongod or mongos. One Conn
// is meant to be shared by many concurrent callers: Send, GetMore and
// KillCursors may be invoked from different goroutines at once, and the
// connection interleaves their messages on the wire while demultiplexing
// replies back to the right caller by request id. Pooling, auth and
// server selection all live above this layer.
type Conn interface {
	// Send transmits a batch of fire-and-forget notices followed,
	// optionally, by a request that expects a reply. The notices and the
	// request are written in a single batch so that a piggybacked
	// getLastError request is guaranteed to observe the notices that
	// precede it, even when other callers are using the connection
	// concurrently. Send returns a nil *Promise when req is nil.
	Send(ctx context.Context, notices []Notice, req *QueryRequest) (*Promise, error)

	// GetMore issues an OP_GET_MORE for an already-open cursor and
	// returns a promise for its reply.
	GetMore(ctx context.Context, fullCollection string, wireBatch int32, cursorID int64) (*Promise, error)

	// KillCursors sends a best-effort OP_KILL_CURSORS notice. There is no
	// reply to a kill-cursors message, so it does not return a Promise.
	KillCursors(ctx context.Context, ids ...int64) error

	// UseCompression enables wire compression for messages written after
	// this call returns. It has no effect on messages already in flight.
	UseCompression(name string) error

	Close() error
}

type conn struct {
	nc     net.Conn
	r      *bufio.Reader
	nextID uint32

	compressor atomic.Value // compressorID

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[uint32]*Promise

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// Dial opens a TCP connection to addr ("host:port") and starts the
// goroutine that demultiplexes its replies.
func Dial(addr string, timeout time.Duration) (Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return newConn(nc), nil
}

func newConn(nc net.Conn) *conn {
	c := &conn{
		nc:      nc,
		r:       bufio.NewReader(nc),
		pending: make(map[uint32]*Promise),
		closed:  make(chan struct{}),
	}
	c.compressor.Store(compressorNoop)
	go c.readLoop()
	return c
}

func (c *conn) UseCompression(name string) error {
	switch name {
	case "", "none":
		c.compressor.Store(compressorNoop)
	case "snappy":
		c.compressor.Store(compressorSnappy)
	case "zlib":
		c.compressor.Store(compressorZlib)
	case "zstd":
		c.compressor.Store(compressorZstd)
	default:
		return fmt.Errorf("wire: unknown compressor %q", name)
	}
	return nil
}

func (c *conn) nextRequestID() uint32 {
	return atomic.AddUint32(&c.nextID, 1)
}

func (c *conn) Send(ctx context.Context, notices []Notice, req *QueryRequest) (*Promise, error) {
	var msgs [][]byte
	for _, n := range notices {
		msg, err := n.build(c.nextRequestID())
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	var p *Promise
	var reqID uint32
	if req != nil {
		reqID = c.nextRequestID()
		msg, err := req.encode(reqID)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		p = newPromise()
		c.registerPending(reqID, p)
	}

	if err := c.writeMessages(msgs); err != nil {
		if p != nil {
			c.unregisterPending(reqID)
		}
		return nil, err
	}
	return p, nil
}

func (c *conn) GetMore(ctx context.Context, fullCollection string, wireBatch int32, cursorID int64) (*Promise, error) {
	id := c.nextRequestID()
	msg := encodeGetMore(id, fullCollection, wireBatch, cursorID)
	p := newPromise()
	c.registerPending(id, p)
	if err := c.writeMessages([][]byte{msg}); err != nil {
		c.unregisterPending(id)
		return nil, err
	}
	return p, nil
}

func (c *conn) KillCursors(ctx context.Context, ids ...int64) error {
	msg, err := KillCursors(ids...).build(c.nextRequestID())
	if err != nil {
		return err
	}
	return c.writeMessages([][]byte{msg})
}

// writeMessages compresses (if negotiated) and writes a batch of already
// framed messages in a single Write call, so the kernel never interleaves
// them with another goroutine's batch.
func (c *conn) writeMessages(msgs [][]byte) error {
	compressor := c.compressor.Load().(compressorID)

	var batch []byte
	for _, msg := range msgs {
		if compressor != compressorNoop {
			compressed, err := compressMessage(c.nextRequestID(), msg, compressor)
			if err != nil {
				return err
			}
			msg = compressed
		}
		batch = append(batch, msg...)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return c.closeErr
	default:
	}
	_, err := c.nc.Write(batch)
	if err != nil {
		c.fatal(err)
	}
	return err
}

func (c *conn) registerPending(id uint32, p *Promise) {
	c.pendingMu.Lock()
	c.pending[id] = p
	c.pendingMu.Unlock()
}

func (c *conn) unregisterPending(id uint32) *Promise {
	c.pendingMu.Lock()
	p := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()
	return p
}

func (c *conn) readLoop() {
	for {
		op, responseTo, body, err := c.readMessage()
		if err != nil {
			c.fatal(err)
			return
		}
		p := c.unregisterPending(responseTo)
		if p == nil {
			// Reply whose responseTo matches no registered request.
			// A caller that stopped forcing its promise (for example on
			// a cancelled context) still has an entry here, so its reply
			// is delivered to the promise's buffer, not dropped.
			continue
		}
		reply, err := parseReply(op, body)
		p.deliver(reply, err)
	}
}

func (c *conn) readMessage() (opCode, uint32, []byte, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return 0, 0, nil, err
	}
	length := byteOrder.Uint32(hdr[0:4])
	responseTo := byteOrder.Uint32(hdr[8:12])
	op := opCode(int32(byteOrder.Uint32(hdr[12:16])))
	if length < headerLen {
		return 0, 0, nil, fmt.Errorf("wire: invalid message length %d", length)
	}

	body := make([]byte, length-headerLen)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return 0, 0, nil, err
	}

	if op == opCompressed {
		originalOp, uncompressed, err := decompress(body)
		if err != nil {
			return 0, 0, nil, err
		}
		return originalOp, responseTo, uncompressed, nil
	}
	return op, responseTo, body, nil
}

// fatal tears the connection down and fails every pending promise, so a
// broken socket never strands a caller in a blocking Force call.
func (c *conn) fatal(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.closed)
		c.nc.Close()

		c.pendingMu.Lock()
		pending := c.pending
		c.pending = make(map[uint32]*Promise)
		c.pendingMu.Unlock()

		for _, p := range pending {
			p.deliver(nil, err)
		}
	})
}

func (c *conn) Close() error {
	c.fatal(io.ErrClosedPipe)
	if c.closeErr == io.ErrClosedPipe {
		return nil
	}
	return c.closeErr
}
