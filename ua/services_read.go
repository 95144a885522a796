// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "github.com/opcgo/opcua/id"

// ReadValueID identifies one attribute of one node to read.
type ReadValueID struct {
	NodeID       *NodeID
	AttributeID  AttributeID
	IndexRange   string
	DataEncoding *QualifiedName
}

func (r *ReadValueID) Encode(e *Encoder) {
	r.NodeID.Encode(e)
	e.WriteUint32(uint32(r.AttributeID))
	e.WriteString(r.IndexRange)
	if r.DataEncoding != nil {
		r.DataEncoding.Encode(e)
	} else {
		(&QualifiedName{}).Encode(e)
	}
}

func DecodeReadValueID(d *Decoder) *ReadValueID {
	return &ReadValueID{
		NodeID:       DecodeNodeID(d),
		AttributeID:  AttributeID(d.ReadUint32()),
		IndexRange:   d.ReadString(),
		DataEncoding: DecodeQualifiedName(d),
	}
}

// ReadRequest reads one or more node attributes (§6 service NodeIds
// list).
type ReadRequest struct {
	RequestHeader      *RequestHeader
	MaxAge             float64
	TimestampsToReturn TimestampsToReturn
	NodesToRead        []*ReadValueID
}

func (r *ReadRequest) TypeID() *ExpandedNodeID {
	return NewFourByteExpandedNodeID(0, id.ReadRequest_Encoding_DefaultBinary)
}

func (r *ReadRequest) Encode(e *Encoder) {
	r.RequestHeader.Encode(e)
	e.WriteFloat64(r.MaxAge)
	e.WriteUint32(uint32(r.TimestampsToReturn))
	e.WriteInt32(int32(len(r.NodesToRead)))
	for _, n := range r.NodesToRead {
		n.Encode(e)
	}
}

func DecodeReadRequest(d *Decoder) *ReadRequest {
	r := &ReadRequest{}
	r.RequestHeader = DecodeRequestHeader(d)
	r.MaxAge = d.ReadFloat64()
	r.TimestampsToReturn = TimestampsToReturn(d.ReadUint32())
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		r.NodesToRead = append(r.NodesToRead, DecodeReadValueID(d))
	}
	return r
}

// ReadResponse returns one DataValue per ReadValueID, in order.
type ReadResponse struct {
	ResponseHeader *ResponseHeader
	Results        []*DataValue
}

func (r *ReadResponse) Header() *ResponseHeader { return r.ResponseHeader }

func (r *ReadResponse) Encode(e *Encoder) {
	r.ResponseHeader.Encode(e)
	e.WriteInt32(int32(len(r.Results)))
	for _, v := range r.Results {
		v.Encode(e)
	}
	e.WriteInt32(0) // DiagnosticInfos
}

func (r *ReadResponse) Decode(d *Decoder) {
	r.ResponseHeader = DecodeResponseHeader(d)
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		r.Results = append(r.Results, DecodeDataValue(d))
	}
	dn := d.ReadInt32()
	for i := int32(0); i < dn; i++ {
		d.ReadByte()
	}
}
