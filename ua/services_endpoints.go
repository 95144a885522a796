// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/opcgo/opcua/id"

// GetEndpointsRequest asks a server (or discovery endpoint) for the
// endpoints it exposes, ahead of selecting one and dialing a secure
// channel against it.
type GetEndpointsRequest struct {
	RequestHeader *RequestHeader
	EndpointURL   string
	LocaleIDs     []string
	ProfileURIs   []string
}

func (r *GetEndpointsRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.GetEndpointsRequest_Encoding_DefaultBinary)
}

func (r *GetEndpointsRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteString(r.EndpointURL)
	e.WriteInt32(int32(len(r.LocaleIDs)))
	for _, l := range r.LocaleIDs {
		e.WriteString(l)
	}
	e.WriteInt32(int32(len(r.ProfileURIs)))
	for _, p := range r.ProfileURIs {
		e.WriteString(p)
	}
}

func DecodeGetEndpointsRequest(d *Decoder) *GetEndpointsRequest {
	r := &GetEndpointsRequest{}
	r.RequestHeader = DecodeRequestHeader(d)
	r.EndpointURL = d.ReadString()
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		r.LocaleIDs = append(r.LocaleIDs, d.ReadString())
	}
	np := d.ReadInt32()
	for i := int32(0); i < np; i++ {
		r.ProfileURIs = append(r.ProfileURIs, d.ReadString())
	}
	return r
}

// GetEndpointsResponse lists the endpoints a server exposes.
type GetEndpointsResponse struct {
	ResponseHeader *ResponseHeader
	Endpoints      []*EndpointDescription
}

func (r *GetEndpointsResponse) Header() *ResponseHeader { return r.ResponseHeader }

func (r *GetEndpointsResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Endpoints)))
	for _, ep := range r.Endpoints {
		ep.Encode(e)
	}
}

func (r *GetEndpointsResponse) Decode(d *Decoder) {
	r.ResponseHeader = DecodeResponseHeader(d)
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		r.Endpoints = append(r.Endpoints, DecodeEndpointDescription(d))
	}
}
