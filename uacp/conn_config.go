// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uacp

// Default transport negotiation values (§6 Configuration options).
const (
	DefaultProtocolVersion = 0

	DefaultReceiveBufferSize = 64 * 1024
	DefaultSendBufferSize    = 64 * 1024
	DefaultMaxMessageSize    = 16 * 1024 * 1024
	DefaultMaxChunkCount     = 4096
)

// Options is the negotiated-once-per-transport set of §3
// TransportConnectionOptions: buffer sizes, max message size and max chunk
// count, local values going in, remote (possibly smaller) values coming
// back out of the Hello/Acknowledge exchange.
type Options struct {
	ReceiveBufferSize uint32
	SendBufferSize    uint32
	MaxMessageSize    uint32
	MaxChunkCount     uint32
}

// DefaultOptions returns the client's default local transport options.
func DefaultOptions() Options {
	return Options{
		ReceiveBufferSize: DefaultReceiveBufferSize,
		SendBufferSize:    DefaultSendBufferSize,
		MaxMessageSize:    DefaultMaxMessageSize,
		MaxChunkCount:     DefaultMaxChunkCount,
	}
}
