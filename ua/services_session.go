// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/opcgo/opcua/id"

// CreateSessionRequest begins session establishment (§4.5).
type CreateSessionRequest struct {
	RequestHeader           *RequestHeader
	ClientDescription       *ApplicationDescription
	ServerURI               string
	EndpointURL             string
	SessionName             string
	ClientNonce             []byte
	ClientCertificate       []byte
	RequestedSessionTimeout float64
	MaxResponseMessageSize  uint32
}

func (r *CreateSessionRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.CreateSessionRequest_Encoding_DefaultBinary)
}

func (r *CreateSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	r.ClientDescription.Encode(e)
	e.WriteString(r.ServerURI)
	e.WriteString(r.EndpointURL)
	e.WriteString(r.SessionName)
	e.WriteByteString(r.ClientNonce)
	e.WriteByteString(r.ClientCertificate)
	e.WriteFloat64(r.RequestedSessionTimeout)
	e.WriteUint32(r.MaxResponseMessageSize)
}

func DecodeCreateSessionRequest(d *Decoder) *CreateSessionRequest {
	r := &CreateSessionRequest{}
	r.RequestHeader = DecodeRequestHeader(d)
	r.ClientDescription = DecodeApplicationDescription(d)
	r.ServerURI = d.ReadString()
	r.EndpointURL = d.ReadString()
	r.SessionName = d.ReadString()
	r.ClientNonce = d.ReadByteString()
	r.ClientCertificate = d.ReadByteString()
	r.RequestedSessionTimeout = d.ReadFloat64()
	r.MaxResponseMessageSize = d.ReadUint32()
	return r
}

// CreateSessionResponse grants the session/authentication NodeIds and the
// server certificate/signature needed to verify and then activate (§4.5).
type CreateSessionResponse struct {
	ResponseHeader             *ResponseHeader
	SessionID                  *NodeID
	AuthenticationToken        *NodeID
	RevisedSessionTimeout      float64
	ServerNonce                []byte
	ServerCertificate          []byte
	ServerEndpoints            []*EndpointDescription
	ServerSignature            *SignatureData
	MaxRequestMessageSize      uint32
}

func (r *CreateSessionResponse) Header() *ResponseHeader { return r.ResponseHeader }

func (r *CreateSessionResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	r.SessionID.Encode(e)
	r.AuthenticationToken.Encode(e)
	e.WriteFloat64(r.RevisedSessionTimeout)
	e.WriteByteString(r.ServerNonce)
	e.WriteByteString(r.ServerCertificate)
	e.WriteInt32(int32(len(r.ServerEndpoints)))
	for _, ep := range r.ServerEndpoints {
		ep.Encode(e)
	}
	// ServerSoftwareCertificates: empty array.
	e.WriteInt32(0)
	r.ServerSignature.Encode(e)
	e.WriteUint32(r.MaxRequestMessageSize)
}

func (r *CreateSessionResponse) Decode(d *Decoder) {
	r.ResponseHeader = DecodeResponseHeader(d)
	r.SessionID = DecodeNodeID(d)
	r.AuthenticationToken = DecodeNodeID(d)
	r.RevisedSessionTimeout = d.ReadFloat64()
	r.ServerNonce = d.ReadByteString()
	r.ServerCertificate = d.ReadByteString()
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		r.ServerEndpoints = append(r.ServerEndpoints, DecodeEndpointDescription(d))
	}
	nc := d.ReadInt32() // ServerSoftwareCertificates
	for i := int32(0); i < nc; i++ {
		DecodeExtensionObjectBody(d)
	}
	r.ServerSignature = DecodeSignatureData(d)
	r.MaxRequestMessageSize = d.ReadUint32()
}

// ActivateSessionRequest binds a user identity to a created session
// (§4.5).
type ActivateSessionRequest struct {
	RequestHeader              *RequestHeader
	ClientSignature            *SignatureData
	LocaleIDs                  []string
	UserIdentityToken          *ExtensionObject
	UserTokenSignature         *SignatureData
}

func (r *ActivateSessionRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.ActivateSessionRequest_Encoding_DefaultBinary)
}

func (r *ActivateSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	r.ClientSignature.Encode(e)
	// ClientSoftwareCertificates: empty array.
	e.WriteInt32(0)
	e.WriteInt32(int32(len(r.LocaleIDs)))
	for _, l := range r.LocaleIDs {
		e.WriteString(l)
	}
	r.UserIdentityToken.Encode(e)
	r.UserTokenSignature.Encode(e)
}

func DecodeActivateSessionRequest(d *Decoder) *ActivateSessionRequest {
	r := &ActivateSessionRequest{}
	r.RequestHeader = DecodeRequestHeader(d)
	r.ClientSignature = DecodeSignatureData(d)
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		DecodeExtensionObjectBody(d)
	}
	nl := d.ReadInt32()
	for i := int32(0); i < nl; i++ {
		r.LocaleIDs = append(r.LocaleIDs, d.ReadString())
	}
	typeID, mask, body := DecodeExtensionObjectBody(d)
	r.UserIdentityToken = &ExtensionObject{TypeID: typeID, EncodingMask: mask}
	if mask == ExtensionObjectBinary {
		inner := NewDecoder(body, d.ctx)
		switch typeID.NodeID.IntID() {
		case 321:
			r.UserIdentityToken.Value = DecodeAnonymousIdentityToken(inner)
		case 324:
			r.UserIdentityToken.Value = DecodeUserNameIdentityToken(inner)
		case 327:
			r.UserIdentityToken.Value = DecodeX509IdentityToken(inner)
		case 938:
			r.UserIdentityToken.Value = DecodeIssuedIdentityToken(inner)
		}
	}
	r.UserTokenSignature = DecodeSignatureData(d)
	return r
}

// ActivateSessionResponse returns a fresh server nonce used to sign the
// next ActivateSession or renew key material (§4.5).
type ActivateSessionResponse struct {
	ResponseHeader *ResponseHeader
	ServerNonce    []byte
}

func (r *ActivateSessionResponse) Header() *ResponseHeader { return r.ResponseHeader }
func (r *ActivateSessionResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteByteString(r.ServerNonce)
	e.WriteInt32(0) // Results
	e.WriteInt32(0) // DiagnosticInfos
}
func (r *ActivateSessionResponse) Decode(d *Decoder) {
	r.ResponseHeader = DecodeResponseHeader(d)
	r.ServerNonce = d.ReadByteString()
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		d.ReadUint32()
	}
	dn := d.ReadInt32()
	for i := int32(0); i < dn; i++ {
		d.ReadByte()
	}
}

// CloseSessionRequest closes the session (§4.5); DeleteSubscriptions is
// always true from this client, matching the teacher.
type CloseSessionRequest struct {
	RequestHeader       *RequestHeader
	DeleteSubscriptions bool
}

func (r *CloseSessionRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.CloseSessionRequest_Encoding_DefaultBinary)
}

func (r *CloseSessionRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteBool(r.DeleteSubscriptions)
}

func DecodeCloseSessionRequest(d *Decoder) *CloseSessionRequest {
	return &CloseSessionRequest{RequestHeader: DecodeRequestHeader(d), DeleteSubscriptions: d.ReadBool()}
}

// CloseSessionResponse acknowledges session closure.
type CloseSessionResponse struct {
	ResponseHeader *ResponseHeader
}

func (r *CloseSessionResponse) Header() *ResponseHeader { return r.ResponseHeader }
func (r *CloseSessionResponse) Encode(e *Encoder)        { r.ResponseHeader.Encode(e) }
func (r *CloseSessionResponse) Decode(d *Decoder)        { r.ResponseHeader = DecodeResponseHeader(d) }
