// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/opcgo/opcua/id"

// ChannelSecurityToken is the SecurityToken of §3: the channel/token id
// pair, issue time and revised lifetime an OpenSecureChannelResponse
// grants.
type ChannelSecurityToken struct {
	ChannelID       uint32
	TokenID         uint32
	CreatedAt       float64 // raw DateTime ticks (100ns since 1601) as read off the wire
	RevisedLifetime uint32
}

func (t *ChannelSecurityToken) Encode(e *Encoder) {
	e.WriteUint32(t.ChannelID)
	e.WriteUint32(t.TokenID)
	e.WriteInt64(int64(t.CreatedAt))
	e.WriteUint32(t.RevisedLifetime)
}

func DecodeChannelSecurityToken(d *Decoder) *ChannelSecurityToken {
	return &ChannelSecurityToken{
		ChannelID:       d.ReadUint32(),
		TokenID:         d.ReadUint32(),
		CreatedAt:       float64(d.ReadInt64()),
		RevisedLifetime: d.ReadUint32(),
	}
}

// OpenSecureChannelRequest opens or renews a secure channel (§4.2, §4.4).
type OpenSecureChannelRequest struct {
	RequestHeader   *RequestHeader
	ClientProtocolVersion uint32
	RequestType     SecurityTokenRequestType
	SecurityMode    MessageSecurityMode
	ClientNonce     []byte
	RequestedLifetime uint32
}

func (r *OpenSecureChannelRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.OpenSecureChannelRequest_Encoding_DefaultBinary)
}

func (r *OpenSecureChannelRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteUint32(r.ClientProtocolVersion)
	e.WriteUint32(uint32(r.RequestType))
	e.WriteUint32(uint32(r.SecurityMode))
	e.WriteByteString(r.ClientNonce)
	e.WriteUint32(r.RequestedLifetime)
}

func DecodeOpenSecureChannelRequest(d *Decoder) *OpenSecureChannelRequest {
	r := &OpenSecureChannelRequest{}
	r.RequestHeader = DecodeRequestHeader(d)
	r.ClientProtocolVersion = d.ReadUint32()
	r.RequestType = SecurityTokenRequestType(d.ReadUint32())
	r.SecurityMode = MessageSecurityMode(d.ReadUint32())
	r.ClientNonce = d.ReadByteString()
	r.RequestedLifetime = d.ReadUint32()
	return r
}

// OpenSecureChannelResponse grants a ChannelSecurityToken and a server
// nonce for symmetric key derivation (§4.2).
type OpenSecureChannelResponse struct {
	ResponseHeader        *ResponseHeader
	ServerProtocolVersion uint32
	SecurityToken         *ChannelSecurityToken
	ServerNonce           []byte
}

func (r *OpenSecureChannelResponse) Header() *ResponseHeader { return r.ResponseHeader }

func (r *OpenSecureChannelResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteUint32(r.ServerProtocolVersion)
	r.SecurityToken.Encode(e)
	e.WriteByteString(r.ServerNonce)
}

func (r *OpenSecureChannelResponse) Decode(d *Decoder) {
	r.ResponseHeader = DecodeResponseHeader(d)
	r.ServerProtocolVersion = d.ReadUint32()
	r.SecurityToken = DecodeChannelSecurityToken(d)
	r.ServerNonce = d.ReadByteString()
}

// CloseSecureChannelRequest requests that the server close the channel
// (§4.4 close path). The server is not required to respond.
type CloseSecureChannelRequest struct {
	RequestHeader *RequestHeader
}

func (r *CloseSecureChannelRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.CloseSecureChannelRequest_Encoding_DefaultBinary)
}

func (r *CloseSecureChannelRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
}

func DecodeCloseSecureChannelRequest(d *Decoder) *CloseSecureChannelRequest {
	return &CloseSecureChannelRequest{RequestHeader: DecodeRequestHeader(d)}
}

// CloseSecureChannelResponse is synthesized locally by the dispatcher
// (§4.4) since the server need not send one; it is still a real decodable
// type for servers that do.
type CloseSecureChannelResponse struct {
	ResponseHeader *ResponseHeader
}

func (r *CloseSecureChannelResponse) Header() *ResponseHeader { return r.ResponseHeader }
func (r *CloseSecureChannelResponse) Encode(e *Encoder)        { r.ResponseHeader.Encode(e) }
func (r *CloseSecureChannelResponse) Decode(d *Decoder)        { r.ResponseHeader = DecodeResponseHeader(d) }
