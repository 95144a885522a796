// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// Request is implemented by every service request body the dispatcher can
// send (§6 service NodeIds list). TypeID names the binary encoding of the
// request so the conversation can prefix it correctly (§4.2).
type Request interface {
	Encodable
	TypeID() *ExpandedNodeID
}

// Response is implemented by every service response body. Header returns
// the embedded ResponseHeader so the dispatcher can check ServiceResult
// and correlate on RequestHandle without a type switch (§4.4).
type Response interface {
	Decodable
	Header() *ResponseHeader
}

// ServiceFault is the generic response a server sends in place of the
// expected response type when a request is rejected outright; its
// ResponseHeader.ServiceResult carries the reason.
type ServiceFault struct {
	ResponseHeader *ResponseHeader
}

func (f *ServiceFault) Header() *ResponseHeader { return f.ResponseHeader }
func (f *ServiceFault) Decode(d *Decoder)        { f.ResponseHeader = DecodeResponseHeader(d) }
