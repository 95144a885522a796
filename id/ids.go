// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package id contains the well-known numeric NodeIds (namespace 0) used by
// the secure-channel and session core. The full OPC UA NodeIds table (Part
// 6, Opc.Ua.NodeIds.csv) contains several thousand entries; per §1 of the
// specification, generating that table is out of scope. This package keeps
// only the identifiers the core actually encodes or decodes: the binary
// encoding ids for the in-scope service request/response pairs and identity
// tokens, and the variable ids read during session bring-up.
package id

// Service request/response binary encoding ids (ExpandedNodeId.Identifier
// for the DefaultBinary encoding of each structured type), Part 6 Table.
const (
	OpenSecureChannelRequest_Encoding_DefaultBinary  = 446
	OpenSecureChannelResponse_Encoding_DefaultBinary = 449
	CloseSecureChannelRequest_Encoding_DefaultBinary = 452
	CloseSecureChannelResponse_Encoding_DefaultBinary = 455

	GetEndpointsRequest_Encoding_DefaultBinary  = 428
	GetEndpointsResponse_Encoding_DefaultBinary = 431

	CreateSessionRequest_Encoding_DefaultBinary  = 461
	CreateSessionResponse_Encoding_DefaultBinary = 464

	ActivateSessionRequest_Encoding_DefaultBinary  = 467
	ActivateSessionResponse_Encoding_DefaultBinary = 470

	CloseSessionRequest_Encoding_DefaultBinary  = 473
	CloseSessionResponse_Encoding_DefaultBinary = 476

	ReadRequest_Encoding_DefaultBinary  = 631
	ReadResponse_Encoding_DefaultBinary = 634

	ServiceFault_Encoding_DefaultBinary = 397
)

// User identity token binary encoding ids.
const (
	AnonymousIdentityToken_Encoding_DefaultBinary = 321
	UserNameIdentityToken_Encoding_DefaultBinary  = 324
	X509IdentityToken_Encoding_DefaultBinary      = 327
	IssuedIdentityToken_Encoding_DefaultBinary    = 938
)

// Well-known object and variable NodeIds exercised during session bring-up
// and endpoint selection.
const (
	RootFolder   = 84
	ObjectsFolder = 85

	Server                    = 2253
	Server_ServerArray        = 2254
	Server_NamespaceArray     = 2255
	Server_ServerStatus       = 2256
	Server_ServerStatus_State = 2259
)
