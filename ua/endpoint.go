// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// UserTokenPolicy describes one identity shape an endpoint accepts (§3,
// §4.5).
type UserTokenPolicy struct {
	PolicyID          string
	TokenType         UserTokenType
	IssuedTokenType   string
	IssuerEndpointURL string
	SecurityPolicyURI string
}

func (p *UserTokenPolicy) Encode(e *Encoder) {
	e.WriteString(p.PolicyID)
	e.WriteUint32(uint32(p.TokenType))
	e.WriteString(p.IssuedTokenType)
	e.WriteString(p.IssuerEndpointURL)
	e.WriteString(p.SecurityPolicyURI)
}

func DecodeUserTokenPolicy(d *Decoder) *UserTokenPolicy {
	return &UserTokenPolicy{
		PolicyID:          d.ReadString(),
		TokenType:         UserTokenType(d.ReadUint32()),
		IssuedTokenType:   d.ReadString(),
		IssuerEndpointURL: d.ReadString(),
		SecurityPolicyURI: d.ReadString(),
	}
}

// EndpointDescription is the server-advertised endpoint (§3): URL, security
// policy/mode, server certificate and the identity shapes it accepts.
type EndpointDescription struct {
	EndpointURL         string
	Server              *ApplicationDescription
	ServerCertificate   []byte
	SecurityMode        MessageSecurityMode
	SecurityPolicyURI   string
	UserIdentityTokens  []*UserTokenPolicy
	TransportProfileURI string
	SecurityLevel       byte
}

func (ep *EndpointDescription) Encode(e *Encoder) {
	e.WriteString(ep.EndpointURL)
	if ep.Server != nil {
		ep.Server.Encode(e)
	} else {
		(&ApplicationDescription{}).Encode(e)
	}
	e.WriteByteString(ep.ServerCertificate)
	e.WriteUint32(uint32(ep.SecurityMode))
	e.WriteString(ep.SecurityPolicyURI)
	e.WriteInt32(int32(len(ep.UserIdentityTokens)))
	for _, t := range ep.UserIdentityTokens {
		t.Encode(e)
	}
	e.WriteString(ep.TransportProfileURI)
	e.WriteByte(ep.SecurityLevel)
}

func DecodeEndpointDescription(d *Decoder) *EndpointDescription {
	ep := &EndpointDescription{}
	ep.EndpointURL = d.ReadString()
	ep.Server = DecodeApplicationDescription(d)
	ep.ServerCertificate = d.ReadByteString()
	ep.SecurityMode = MessageSecurityMode(d.ReadUint32())
	ep.SecurityPolicyURI = d.ReadString()
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		ep.UserIdentityTokens = append(ep.UserIdentityTokens, DecodeUserTokenPolicy(d))
	}
	ep.TransportProfileURI = d.ReadString()
	ep.SecurityLevel = d.ReadByte()
	return ep
}
