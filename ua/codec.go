// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/opcgo/opcua/id"

// DecodeMessage reads the ExpandedNodeId naming a service response from
// the front of b, decodes the matching concrete Response, and returns it.
// This is the bounded type-coded registry the Encoding Provider contract
// (§6) calls for: only the response types this core sends requests for are
// registered, not an arbitrary-type dictionary.
func DecodeMessage(b []byte, ctx *Context) (Response, error) {
	d := NewDecoder(b, ctx)
	typeID := DecodeExpandedNodeID(d)
	if d.Err() != nil {
		return nil, d.Err()
	}

	var resp Response
	switch typeID.NodeID.IntID() {
	case id.OpenSecureChannelResponse_Encoding_DefaultBinary:
		resp = &OpenSecureChannelResponse{}
	case id.CloseSecureChannelResponse_Encoding_DefaultBinary:
		resp = &CloseSecureChannelResponse{}
	case id.CreateSessionResponse_Encoding_DefaultBinary:
		resp = &CreateSessionResponse{}
	case id.ActivateSessionResponse_Encoding_DefaultBinary:
		resp = &ActivateSessionResponse{}
	case id.CloseSessionResponse_Encoding_DefaultBinary:
		resp = &CloseSessionResponse{}
	case id.ReadResponse_Encoding_DefaultBinary:
		resp = &ReadResponse{}
	case id.GetEndpointsResponse_Encoding_DefaultBinary:
		resp = &GetEndpointsResponse{}
	case id.ServiceFault_Encoding_DefaultBinary:
		resp = &ServiceFault{}
	default:
		return nil, StatusBadUnknownResponse
	}

	resp.Decode(d)
	if d.Err() != nil {
		return nil, d.Err()
	}
	return resp, nil
}

// EncodeMessage encodes req prefixed with its TypeId, ready to be chunked
// by the conversation.
func EncodeMessage(req Request, ctx *Context) []byte {
	e := NewEncoder(ctx)
	req.TypeID().Encode(e)
	req.Encode(e)
	return e.Bytes()
}
