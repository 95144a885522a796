// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import "github.com/opcgo/opcua/ua"

// sequenceHeader prefixes every chunk's payload, asymmetric or symmetric
// (§6). SequenceNumber increments by one per chunk sent on the channel and
// wraps at the uint32 boundary; RequestID is the wire-level id the server
// echoes back in MSG responses, used to reassemble multi-chunk messages
// rather than to correlate requests (that's RequestHandle's job, carried
// inside RequestHeader).
type sequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

func (h *sequenceHeader) encode(e *ua.Encoder) {
	e.WriteUint32(h.SequenceNumber)
	e.WriteUint32(h.RequestID)
}

func decodeSequenceHeader(d *ua.Decoder) sequenceHeader {
	return sequenceHeader{SequenceNumber: d.ReadUint32(), RequestID: d.ReadUint32()}
}

// asymmetricSecurityHeader appears on every OPN chunk (§6). It names the
// policy and, for anything other than None, carries the sender's
// certificate and the SHA-1 thumbprint of the certificate the sender
// expects the receiver to use to decrypt.
type asymmetricSecurityHeader struct {
	SecurityPolicyURI            string
	SenderCertificate             []byte
	ReceiverCertificateThumbprint []byte
}

func (h *asymmetricSecurityHeader) encode(e *ua.Encoder) {
	e.WriteString(h.SecurityPolicyURI)
	e.WriteByteString(h.SenderCertificate)
	e.WriteByteString(h.ReceiverCertificateThumbprint)
}

func decodeAsymmetricSecurityHeader(d *ua.Decoder) asymmetricSecurityHeader {
	return asymmetricSecurityHeader{
		SecurityPolicyURI:             d.ReadString(),
		SenderCertificate:             d.ReadByteString(),
		ReceiverCertificateThumbprint: d.ReadByteString(),
	}
}

// symmetricSecurityHeader appears on every MSG/CLO chunk (§6): just the
// token id identifying which of the current/previous SecurityTokens
// protects this chunk, which is how a token renewal is allowed to overlap
// in-flight traffic.
type symmetricSecurityHeader struct {
	TokenID uint32
}

func (h *symmetricSecurityHeader) encode(e *ua.Encoder) {
	e.WriteUint32(h.TokenID)
}

func decodeSymmetricSecurityHeader(d *ua.Decoder) symmetricSecurityHeader {
	return symmetricSecurityHeader{TokenID: d.ReadUint32()}
}
