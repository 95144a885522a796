// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

// ExtensionObjectEncoding identifies how an ExtensionObject's Body is
// encoded (Part 6 §5.2.2.15).
type ExtensionObjectEncoding byte

const (
	ExtensionObjectNone ExtensionObjectEncoding = iota
	ExtensionObjectBinary
	ExtensionObjectXML
)

// ExtensionObject wraps a type-coded value with the ExpandedNodeId naming
// its binary encoding (§6 "type-coded readers/writers keyed by NodeId").
// This repo only ever puts a concrete Encodable (a UserIdentityToken
// variant) in Value; it never implements
// the fully generic "decode anything by NodeId" registry the original
// library provides, since that codec is explicitly out of scope (§1).
type ExtensionObject struct {
	TypeID       *ExpandedNodeID
	EncodingMask ExtensionObjectEncoding
	Value        Encodable
}

// NewExtensionObject wraps v using its TypeID() method. v must implement
// both Encodable and TypeID() *ExpandedNodeID (every UserIdentityToken
// variant in this package does).
func NewExtensionObject(v interface {
	Encodable
	TypeID() *ExpandedNodeID
}) *ExtensionObject {
	if v == nil {
		return nil
	}
	return &ExtensionObject{
		TypeID:       v.TypeID(),
		EncodingMask: ExtensionObjectBinary,
		Value:        v,
	}
}

func (o *ExtensionObject) Encode(e *Encoder) {
	if o == nil || o.Value == nil {
		NewTwoByteExpandedNodeIDNil().Encode(e)
		e.WriteByte(byte(ExtensionObjectNone))
		return
	}
	o.TypeID.Encode(e)
	e.WriteByte(byte(o.EncodingMask))
	if o.EncodingMask == ExtensionObjectBinary {
		body := NewEncoder(e.Context())
		o.Value.Encode(body)
		e.WriteByteString(body.Bytes())
	}
}

// NewTwoByteExpandedNodeIDNil returns the ExpandedNodeId used to encode a
// null ExtensionObject.
func NewTwoByteExpandedNodeIDNil() *ExpandedNodeID {
	return &ExpandedNodeID{NodeID: NewTwoByteNodeID(0)}
}

// DecodeExtensionObjectBody decodes the raw TypeId/mask/body of an
// ExtensionObject. Resolving the body bytes into a concrete Go type by
// TypeId is delegated to the specific service response decoder that knows
// which types it can appear as (e.g. an identity token echoed back); there
// is intentionally no generic registry.
func DecodeExtensionObjectBody(d *Decoder) (typeID *ExpandedNodeID, mask ExtensionObjectEncoding, body []byte) {
	typeID = DecodeExpandedNodeID(d)
	mask = ExtensionObjectEncoding(d.ReadByte())
	if mask == ExtensionObjectBinary {
		body = d.ReadByteString()
	}
	return
}
