// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/opcgo/opcua/id"

// UserIdentityToken is implemented by the four identity shapes §4.5
// requires: Anonymous, UserName, X509 and Issued. ActivateSessionRequest
// wraps whichever one the caller configured in an ExtensionObject.
type UserIdentityToken interface {
	Encodable
	TypeID() *ExpandedNodeID
}

// AnonymousIdentityToken is used for the None identity (§4.5).
type AnonymousIdentityToken struct {
	PolicyID string
}

func (t *AnonymousIdentityToken) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.AnonymousIdentityToken_Encoding_DefaultBinary)
}

func (t *AnonymousIdentityToken) Encode(e *Encoder) {
	e.WriteString(t.PolicyID)
}

func DecodeAnonymousIdentityToken(d *Decoder) *AnonymousIdentityToken {
	return &AnonymousIdentityToken{PolicyID: d.ReadString()}
}

// UserNameIdentityToken carries a (possibly encrypted) username/password
// pair (§4.5).
type UserNameIdentityToken struct {
	PolicyID            string
	UserName            string
	Password            []byte
	EncryptionAlgorithm string
}

func (t *UserNameIdentityToken) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.UserNameIdentityToken_Encoding_DefaultBinary)
}

func (t *UserNameIdentityToken) Encode(e *Encoder) {
	e.WriteString(t.PolicyID)
	e.WriteString(t.UserName)
	e.WriteByteString(t.Password)
	e.WriteString(t.EncryptionAlgorithm)
}

func DecodeUserNameIdentityToken(d *Decoder) *UserNameIdentityToken {
	return &UserNameIdentityToken{
		PolicyID:            d.ReadString(),
		UserName:            d.ReadString(),
		Password:            d.ReadByteString(),
		EncryptionAlgorithm: d.ReadString(),
	}
}

// X509IdentityToken carries a DER certificate as the identity.
type X509IdentityToken struct {
	PolicyID        string
	CertificateData []byte
}

func (t *X509IdentityToken) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.X509IdentityToken_Encoding_DefaultBinary)
}

func (t *X509IdentityToken) Encode(e *Encoder) {
	e.WriteString(t.PolicyID)
	e.WriteByteString(t.CertificateData)
}

func DecodeX509IdentityToken(d *Decoder) *X509IdentityToken {
	return &X509IdentityToken{PolicyID: d.ReadString(), CertificateData: d.ReadByteString()}
}

// IssuedIdentityToken carries an opaque token (e.g. a SAML or JWT token)
// issued by a separate token service.
type IssuedIdentityToken struct {
	PolicyID            string
	TokenData           []byte
	EncryptionAlgorithm string
}

func (t *IssuedIdentityToken) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.IssuedIdentityToken_Encoding_DefaultBinary)
}

func (t *IssuedIdentityToken) Encode(e *Encoder) {
	e.WriteString(t.PolicyID)
	e.WriteByteString(t.TokenData)
	e.WriteString(t.EncryptionAlgorithm)
}

func DecodeIssuedIdentityToken(d *Decoder) *IssuedIdentityToken {
	return &IssuedIdentityToken{
		PolicyID:            d.ReadString(),
		TokenData:           d.ReadByteString(),
		EncryptionAlgorithm: d.ReadString(),
	}
}
