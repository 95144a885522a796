// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "fmt"

// StatusCode is the flat OPC UA status code taxonomy (§7). It implements
// error directly so a bad ServiceResult in a response header can be
// returned to the caller without an extra wrapper type.
type StatusCode uint32

// IsGood reports whether the code is in the Good range.
func (s StatusCode) IsGood() bool { return s&0xC0000000 == 0 }

// IsBad reports whether the code is in the Bad range.
func (s StatusCode) IsBad() bool { return s&0x80000000 != 0 }

// IsUncertain reports whether the code is in the Uncertain range.
func (s StatusCode) IsUncertain() bool { return s&0xC0000000 == 0x40000000 }

func (s StatusCode) Error() string {
	if name, ok := statusCodeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(%#08x)", uint32(s))
}

// Core status codes referenced by the specification (§7) plus the handful
// needed to make the session/endpoint bring-up paths and tests realistic.
// The numeric values match Part 6's Opc.Ua.StatusCodes.csv.
const (
	StatusOK StatusCode = 0x00000000

	StatusBad StatusCode = 0x80000000

	// Transport (§7 Transport)
	StatusBadTCPMessageTypeInvalid     StatusCode = 0x807A0001
	StatusBadResponseTooLarge          StatusCode = 0x80B80000
	StatusBadProtocolVersionUnsupported StatusCode = 0x80840000
	StatusBadServerNotConnected        StatusCode = 0x808B0000
	StatusBadConnectionClosed          StatusCode = 0x80AE0000
	StatusBadTCPEndpointURLInvalid     StatusCode = 0x807A0002
	StatusBadTCPNotEnoughResources     StatusCode = 0x807A0003
	StatusBadTCPInternalError         StatusCode = 0x807A0004
	StatusBadSecureChannelClosed      StatusCode = 0x80560000

	// Security (§7 Security)
	StatusBadSecurityChecksFailed      StatusCode = 0x80130000
	StatusBadCertificateInvalid        StatusCode = 0x80160000
	StatusBadApplicationSignatureInvalid StatusCode = 0x80290000
	StatusBadSecureChannelTokenUnknown StatusCode = 0x80570000
	StatusBadSecureChannelIDInvalid    StatusCode = 0x80550000
	StatusBadNonceInvalid              StatusCode = 0x80460000

	// Request (§7 Request)
	StatusBadRequestTimeout      StatusCode = 0x800A0000
	StatusBadIdentityTokenRejected StatusCode = 0x80240000
	StatusBadIdentityTokenInvalid  StatusCode = 0x80230000
	StatusBadRequestHeaderInvalid  StatusCode = 0x802A0000
	StatusBadSessionClosed         StatusCode = 0x80530000
	StatusBadSessionIDInvalid      StatusCode = 0x80250000
	StatusBadSubscriptionIDInvalid StatusCode = 0x80280000
	StatusBadUnknownResponse       StatusCode = 0x80320000
	StatusBadUserAccessDenied      StatusCode = 0x801F0000
	StatusBadDataTypeIDUnknown     StatusCode = 0x80140000
	StatusBadMessageNotAvailable   StatusCode = 0x807E0000
)

var statusCodeNames = map[StatusCode]string{
	StatusOK:                             "Good",
	StatusBadTCPMessageTypeInvalid:       "BadTcpMessageTypeInvalid",
	StatusBadResponseTooLarge:            "BadResponseTooLarge",
	StatusBadProtocolVersionUnsupported:  "BadProtocolVersionUnsupported",
	StatusBadServerNotConnected:          "BadServerNotConnected",
	StatusBadConnectionClosed:            "BadConnectionClosed",
	StatusBadTCPEndpointURLInvalid:       "BadTcpEndpointUrlInvalid",
	StatusBadTCPNotEnoughResources:       "BadTcpNotEnoughResources",
	StatusBadTCPInternalError:            "BadTcpInternalError",
	StatusBadSecureChannelClosed:         "BadSecureChannelClosed",
	StatusBadSecurityChecksFailed:        "BadSecurityChecksFailed",
	StatusBadCertificateInvalid:          "BadCertificateInvalid",
	StatusBadApplicationSignatureInvalid: "BadApplicationSignatureInvalid",
	StatusBadSecureChannelTokenUnknown:   "BadSecureChannelTokenUnknown",
	StatusBadSecureChannelIDInvalid:      "BadSecureChannelIdInvalid",
	StatusBadNonceInvalid:                "BadNonceInvalid",
	StatusBadRequestTimeout:              "BadRequestTimeout",
	StatusBadIdentityTokenRejected:       "BadIdentityTokenRejected",
	StatusBadIdentityTokenInvalid:        "BadIdentityTokenInvalid",
	StatusBadRequestHeaderInvalid:        "BadRequestHeaderInvalid",
	StatusBadSessionClosed:               "BadSessionClosed",
	StatusBadSessionIDInvalid:            "BadSessionIdInvalid",
	StatusBadSubscriptionIDInvalid:       "BadSubscriptionIdInvalid",
	StatusBadUnknownResponse:             "BadUnknownResponse",
	StatusBadUserAccessDenied:            "BadUserAccessDenied",
	StatusBadDataTypeIDUnknown:           "BadDataTypeIdUnknown",
	StatusBadMessageNotAvailable:         "BadMessageNotAvailable",
}
