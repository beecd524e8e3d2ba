package mongo

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/burdmongo/wiredriver/wire"
)

// loggingConn decorates a wire.Conn, logging each send/getMore/killCursors
// at debug level with a per-connection sequence number. The same shape as
// the driver has always used: logging lives at the connection boundary so
// every layer above it stays oblivious to whether anyone is watching. Each
// wrapped connection gets its own correlation id, so its traffic stays
// distinguishable from any other connection sharing the same log stream.
type loggingConn struct {
	wire.Conn
	log *zap.Logger
	id  uuid.UUID
	seq uint64
}

// withLogging wraps conn so its traffic is logged. A nil logger disables
// the wrapper entirely rather than logging to a no-op sink, so the common
// case costs nothing.
func withLogging(conn wire.Conn, log *zap.Logger) wire.Conn {
	if log == nil {
		return conn
	}
	return &loggingConn{Conn: conn, log: log, id: uuid.New()}
}

func (c *loggingConn) nextSeq() uint64 { return atomic.AddUint64(&c.seq, 1) }

func (c *loggingConn) Send(ctx context.Context, notices []wire.Notice, req *wire.QueryRequest) (*wire.Promise, error) {
	seq := c.nextSeq()
	collection := ""
	if req != nil {
		collection = req.FullCollection
	}
	c.log.Debug("send",
		zap.Uint64("seq", seq),
		zap.String("conn", c.id.String()),
		zap.Int("notices", len(notices)),
		zap.Bool("request", req != nil),
		zap.String("collection", collection),
	)
	p, err := c.Conn.Send(ctx, notices, req)
	if err != nil {
		c.log.Debug("send failed", zap.Uint64("seq", seq), zap.String("conn", c.id.String()), zap.Error(err))
	}
	return p, err
}

func (c *loggingConn) GetMore(ctx context.Context, fullCollection string, wireBatch int32, cursorID int64) (*wire.Promise, error) {
	seq := c.nextSeq()
	c.log.Debug("getMore",
		zap.Uint64("seq", seq),
		zap.String("conn", c.id.String()),
		zap.String("collection", fullCollection),
		zap.Int64("cursorId", cursorID),
	)
	p, err := c.Conn.GetMore(ctx, fullCollection, wireBatch, cursorID)
	if err != nil {
		c.log.Debug("getMore failed", zap.Uint64("seq", seq), zap.String("conn", c.id.String()), zap.Error(err))
	}
	return p, err
}

func (c *loggingConn) KillCursors(ctx context.Context, ids ...int64) error {
	seq := c.nextSeq()
	c.log.Debug("killCursors", zap.Uint64("seq", seq), zap.String("conn", c.id.String()), zap.Int64s("ids", ids))
	err := c.Conn.KillCursors(ctx, ids...)
	if err != nil {
		c.log.Debug("killCursors failed", zap.Uint64("seq", seq), zap.String("conn", c.id.String()), zap.Error(err))
	}
	return err
}
