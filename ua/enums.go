// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// MessageSecurityMode is the channel security mode negotiated by an
// endpoint (§3 EndpointDescription).
type MessageSecurityMode uint32

const (
	MessageSecurityModeInvalid MessageSecurityMode = iota
	MessageSecurityModeNone
	MessageSecurityModeSign
	MessageSecurityModeSignAndEncrypt
)

func (m MessageSecurityMode) String() string {
	switch m {
	case MessageSecurityModeNone:
		return "None"
	case MessageSecurityModeSign:
		return "Sign"
	case MessageSecurityModeSignAndEncrypt:
		return "SignAndEncrypt"
	default:
		return "Invalid"
	}
}

// UserTokenType enumerates the identity shapes §4.5 requires support for.
type UserTokenType uint32

const (
	UserTokenTypeAnonymous UserTokenType = iota
	UserTokenTypeUserName
	UserTokenTypeCertificate
	UserTokenTypeIssuedToken
)

// TimestampsToReturn controls which timestamps a Read response includes.
type TimestampsToReturn uint32

const (
	TimestampsToReturnSource TimestampsToReturn = iota
	TimestampsToReturnServer
	TimestampsToReturnBoth
	TimestampsToReturnNeither
)

// SecurityTokenRequestType distinguishes an initial Open from a Renew on
// the OpenSecureChannelRequest (§4.4 token renewal).
type SecurityTokenRequestType uint32

const (
	SecurityTokenRequestTypeIssue SecurityTokenRequestType = iota
	SecurityTokenRequestTypeRenew
)

// AttributeID identifies which attribute a ReadValueID targets.
type AttributeID uint32

const AttributeIDValue AttributeID = 13

// Well-known security policy URIs (§4.2).
const (
	SecurityPolicyURINone           = "http://opcfoundation.org/UA/SecurityPolicy#None"
	SecurityPolicyURIBasic128Rsa15  = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	SecurityPolicyURIBasic256       = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	SecurityPolicyURIBasic256Sha256 = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
)

// FormatSecurityPolicyURI accepts either a bare policy name ("None",
// "Basic256Sha256", ...) or a full URI and returns the full URI, or ""
// if policy is "".
func FormatSecurityPolicyURI(policy string) string {
	if policy == "" {
		return ""
	}
	for _, uri := range []string{
		SecurityPolicyURINone,
		SecurityPolicyURIBasic128Rsa15,
		SecurityPolicyURIBasic256,
		SecurityPolicyURIBasic256Sha256,
	} {
		if uri == policy || uri[len(uri)-len(policy):] == policy {
			return uri
		}
	}
	return policy
}

// Password/certificate encryption algorithm URIs (§4.5).
const (
	EncryptionAlgorithmRSA15  = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	EncryptionAlgorithmRSAOAEP = "http://www.w3.org/2001/04/xmlenc#rsa-oaep"

	SignatureAlgorithmRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	SignatureAlgorithmRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
)
