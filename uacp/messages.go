// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uacp

import "github.com/opcgo/opcua/ua"

// MessageType is the 3-letter ASCII type tag at the start of every UA-TCP
// frame (§6).
type MessageType [3]byte

var (
	MessageTypeHello       = MessageType{'H', 'E', 'L'}
	MessageTypeAcknowledge = MessageType{'A', 'C', 'K'}
	MessageTypeError       = MessageType{'E', 'R', 'R'}
	MessageTypeOpen        = MessageType{'O', 'P', 'N'}
	MessageTypeClose       = MessageType{'C', 'L', 'O'}
	MessageTypeMessage     = MessageType{'M', 'S', 'G'}
)

// ChunkType is the 4th byte of the header: final, intermediate or abort
// (§6).
type ChunkType byte

const (
	ChunkTypeFinal        ChunkType = 'F'
	ChunkTypeIntermediate ChunkType = 'C'
	ChunkTypeAbort        ChunkType = 'A'
)

// headerSize is the 8 fixed bytes every frame starts with: 4-byte type,
// 4-byte little-endian length including the header itself (§6).
const headerSize = 8

// Hello is the client's opening frame (§4.1, §6).
type Hello struct {
	ProtocolVersion   uint32
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
	EndpointURL       string
}

func (h *Hello) Encode(e *ua.Encoder) {
	e.WriteUint32(h.ProtocolVersion)
	e.WriteUint32(h.ReceiveBufferSize)
	e.WriteUint32(h.SendBufferSize)
	e.WriteUint32(h.MaxMessageSize)
	e.WriteUint32(h.MaxChunkCount)
	e.WriteString(h.EndpointURL)
}

func decodeHello(d *ua.Decoder) *Hello {
	return &Hello{
		ProtocolVersion:   d.ReadUint32(),
		ReceiveBufferSize: d.ReadUint32(),
		SendBufferSize:    d.ReadUint32(),
		MaxMessageSize:    d.ReadUint32(),
		MaxChunkCount:     d.ReadUint32(),
		EndpointURL:       d.ReadString(),
	}
}

// Acknowledge is the server's reply to Hello, carrying its own negotiated
// options (§4.1, §6).
type Acknowledge struct {
	ProtocolVersion   uint32
	SendBufferSize    uint32
	ReceiveBufferSize uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

func (a *Acknowledge) Encode(e *ua.Encoder) {
	e.WriteUint32(a.ProtocolVersion)
	e.WriteUint32(a.SendBufferSize)
	e.WriteUint32(a.ReceiveBufferSize)
	e.WriteUint32(a.MaxMessageSize)
	e.WriteUint32(a.MaxChunkCount)
}

func decodeAcknowledge(d *ua.Decoder) *Acknowledge {
	return &Acknowledge{
		ProtocolVersion:   d.ReadUint32(),
		SendBufferSize:    d.ReadUint32(),
		ReceiveBufferSize: d.ReadUint32(),
		MaxMessageSize:    d.ReadUint32(),
		MaxChunkCount:     d.ReadUint32(),
	}
}

// ErrorMessage is sent by either side to abort the transport with a status
// code and a human-readable reason (§4.1, §6).
type ErrorMessage struct {
	ErrorCode uint32
	Reason    string
}

func (m *ErrorMessage) Encode(e *ua.Encoder) {
	e.WriteUint32(m.ErrorCode)
	e.WriteString(m.Reason)
}

func decodeErrorMessage(d *ua.Decoder) *ErrorMessage {
	return &ErrorMessage{ErrorCode: d.ReadUint32(), Reason: d.ReadString()}
}

// Error adapts an inbound ERR frame to the error interface, as returned by
// Dial and DialOptions when the server answers HELLO with ERR.
type Error struct {
	ErrorCode uint32
	Reason    string
}

func (e *Error) Error() string {
	return ua.StatusCode(e.ErrorCode).Error() + ": " + e.Reason
}
