// Copyright 2011 Gary Burd
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

// Package wire implements the MongoDB wire protocol framer: message
// headers and the Notice/Request/Reply encodings, plus the connection that
// performs fire-and-forget sends and pipelined request/reply calls. The
// core driver package treats everything here as an opaque collaborator.
package wire

import "fmt"

// opCode identifies a wire message type.
type opCode int32

const (
	opReply      opCode = 1
	opUpdate     opCode = 2001
	opInsert     opCode = 2002
	opQuery      opCode = 2004
	opGetMore    opCode = 2005
	opDelete     opCode = 2006
	opKillCursor opCode = 2007
	opCompressed opCode = 2012
)

// QueryOption flags select in the query message header.
type QueryOption uint32

const (
	TailableCursor  QueryOption = 1 << 1
	SlaveOK         QueryOption = 1 << 2
	NoCursorTimeout QueryOption = 1 << 4
	AwaitData       QueryOption = 1 << 5
	Exhaust         QueryOption = 1 << 6
	PartialResults  QueryOption = 1 << 7
)

// UpdateFlag flags select in the update message header.
type UpdateFlag uint32

const (
	Upsert      UpdateFlag = 1 << 0
	MultiUpdate UpdateFlag = 1 << 1
)

// DeleteFlag flags select in the delete message header.
type DeleteFlag uint32

const (
	SingleRemove DeleteFlag = 1 << 0
)

// ResponseFlag bits appear in an OP_REPLY header.
type ResponseFlag uint32

const (
	CursorNotFoundFlag ResponseFlag = 1 << 0
	QueryErrorFlag     ResponseFlag = 1 << 1
	AwaitCapableFlag   ResponseFlag = 1 << 3
)

const headerLen = 16 // messageLength, requestID, responseTo, opCode

func writeHeader(b *buffer, requestID, responseTo uint32, op opCode) {
	b.Next(4) // message length placeholder, patched by the caller
	b.WriteUint32(requestID)
	b.WriteUint32(responseTo)
	b.WriteInt32(int32(op))
}

func patchLength(b buffer) {
	byteOrder.PutUint32(b[0:4], uint32(len(b)))
}

func unknownOpCode(op int32) error {
	return fmt.Errorf("wire: unknown response opcode %d", op)
}
