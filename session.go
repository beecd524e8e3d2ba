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

// Package mongo implements the query and cursor layer of a MongoDB
// client: translating insert/update/delete/find/count/distinct/group/
// map-reduce/command operations into wire protocol messages, and managing
// the lifetime of server-side cursors over a single multiplexed
// connection. Connection pooling and credential storage are external
// collaborators; see internal/auth for the authentication handshake this
// package drives.
package mongo

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/burdmongo/wiredriver/wire"
)

// WriteMode selects how a write's acknowledgement is handled.
type WriteMode int

const (
	// Safe piggybacks a getLastError request onto the same wire batch as
	// the notice, so it is guaranteed to observe the notice, and waits
	// for the reply before returning.
	Safe WriteMode = iota
	// Unsafe fires the notice and returns as soon as it is queued on the
	// connection, without waiting to learn whether it succeeded.
	Unsafe
)

// Session is the ambient context threaded through every call in this
// package: which connection to use, which database, whether reads may
// land on a secondary, and how writes are acknowledged. Every mutator
// (UseDB, SlaveOk, SetWriteMode) returns a new, independent Session — the
// receiver is never modified — so a Session tree can fan out safely
// across goroutines from a single dialed connection.
type Session struct {
	conn      wire.Conn
	db        string
	slaveOk   bool
	writeMode WriteMode
	log       *zap.Logger
}

// Options configures Connect.
type Options struct {
	// Timeout bounds the initial TCP handshake. Zero means 10 seconds.
	Timeout time.Duration
	// Compression negotiates wire compression: "", "snappy", "zlib" or
	// "zstd".
	Compression string
	// Logger receives debug-level connection traffic when non-nil.
	Logger *zap.Logger
}

// Connect dials addr ("host:port") and returns a Session scoped to db
// with Safe write mode and no secondary reads.
func Connect(ctx context.Context, addr, db string, opts Options) (*Session, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	c, err := wire.Dial(addr, timeout)
	if err != nil {
		return nil, err
	}
	if opts.Compression != "" {
		if err := c.UseCompression(opts.Compression); err != nil {
			c.Close()
			return nil, err
		}
	}

	return &Session{
		conn:      withLogging(c, opts.Logger),
		db:        db,
		writeMode: Safe,
		log:       opts.Logger,
	}, nil
}

// UseDB returns a Session scoped to a different database on the same
// connection.
func (s *Session) UseDB(db string) *Session {
	cp := *s
	cp.db = db
	return &cp
}

// SlaveOk returns a Session permitted to read from secondaries.
func (s *Session) SlaveOk() *Session {
	cp := *s
	cp.slaveOk = true
	return &cp
}

// SetWriteMode returns a Session using the given write acknowledgement
// mode.
func (s *Session) SetWriteMode(mode WriteMode) *Session {
	cp := *s
	cp.writeMode = mode
	return &cp
}

// DB returns the session's current database name.
func (s *Session) DB() string { return s.db }

func (s *Session) fullCollection(collection string) string {
	return s.db + "." + collection
}

// Close releases the underlying connection. Because UseDB/SlaveOk/
// SetWriteMode share one connection across every Session forked from it,
// closing any of them closes the connection for all of them.
func (s *Session) Close() error {
	return s.conn.Close()
}
