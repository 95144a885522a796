// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opcgo/opcua/errors"
)

// NodeIDType identifies which of the five NodeId encodings is in use.
type NodeIDType byte

const (
	NodeIDTypeTwoByte NodeIDType = iota
	NodeIDTypeFourByte
	NodeIDTypeNumeric
	NodeIDTypeString
	NodeIDTypeGUID
	NodeIDTypeByteString
)

const nodeIDEncodingMask = 0x3f

// NodeID identifies a node within a server's address space (Part 3,
// §8.2.1). Numeric, string and byte-string ids can be constructed and
// cover every NodeId this repo builds (service types live in namespace 0
// as numeric ids; server-assigned session/auth tokens are typically
// numeric, string or opaque). A GUID id is decoded, encoded and compared
// as received, but has no constructor and is not parsed by ParseNodeID.
type NodeID struct {
	typ       NodeIDType
	ns        uint16
	numeric   uint32
	stringID  string
	byteID    []byte
	guid      [16]byte
}

func NewTwoByteNodeID(id byte) *NodeID {
	return &NodeID{typ: NodeIDTypeTwoByte, numeric: uint32(id)}
}

func NewFourByteNodeID(ns uint8, id uint16) *NodeID {
	return &NodeID{typ: NodeIDTypeFourByte, ns: uint16(ns), numeric: uint32(id)}
}

func NewNumericNodeID(ns uint16, id uint32) *NodeID {
	return &NodeID{typ: NodeIDTypeNumeric, ns: ns, numeric: id}
}

func NewStringNodeID(ns uint16, id string) *NodeID {
	return &NodeID{typ: NodeIDTypeString, ns: ns, stringID: id}
}

func NewByteStringNodeID(ns uint16, id []byte) *NodeID {
	return &NodeID{typ: NodeIDTypeByteString, ns: ns, byteID: id}
}

// Type returns the wire encoding type of the id.
func (n *NodeID) Type() NodeIDType { return n.typ }

// Namespace returns the namespace index of the id.
func (n *NodeID) Namespace() uint16 {
	if n == nil {
		return 0
	}
	return n.ns
}

// IntID returns the numeric identifier, or 0 if this is not a numeric id.
func (n *NodeID) IntID() uint32 {
	if n == nil {
		return 0
	}
	return n.numeric
}

// StringID returns the string identifier, or "" if this is not a string
// id.
func (n *NodeID) StringID() string {
	if n == nil {
		return ""
	}
	return n.stringID
}

// IsZero reports whether n is the nil NodeId (ns=0, id=0), used to test for
// an absent authentication token.
func (n *NodeID) IsZero() bool {
	return n == nil || (n.typ <= NodeIDTypeNumeric && n.ns == 0 && n.numeric == 0)
}

func (n *NodeID) String() string {
	if n == nil {
		return "i=0"
	}
	switch n.typ {
	case NodeIDTypeTwoByte, NodeIDTypeFourByte, NodeIDTypeNumeric:
		if n.ns == 0 {
			return fmt.Sprintf("i=%d", n.numeric)
		}
		return fmt.Sprintf("ns=%d;i=%d", n.ns, n.numeric)
	case NodeIDTypeString:
		if n.ns == 0 {
			return fmt.Sprintf("s=%s", n.stringID)
		}
		return fmt.Sprintf("ns=%d;s=%s", n.ns, n.stringID)
	case NodeIDTypeByteString:
		if n.ns == 0 {
			return fmt.Sprintf("b=%x", n.byteID)
		}
		return fmt.Sprintf("ns=%d;b=%x", n.ns, n.byteID)
	default:
		return fmt.Sprintf("g=%x", n.guid)
	}
}

// ParseNodeID parses the textual NodeId syntax of Part 6 §5.3.1.10, e.g.
// "ns=2;s=my.node" or "i=85".
func ParseNodeID(s string) (*NodeID, error) {
	if s == "" {
		return NewTwoByteNodeID(0), nil
	}
	var ns uint16
	parts := strings.SplitN(s, ";", 2)
	ident := parts[0]
	if len(parts) == 2 {
		if !strings.HasPrefix(parts[0], "ns=") {
			return nil, errors.Errorf("invalid node id: %s", s)
		}
		v, err := strconv.ParseUint(parts[0][3:], 10, 16)
		if err != nil {
			return nil, errors.Errorf("invalid node id namespace: %s", s)
		}
		ns = uint16(v)
		ident = parts[1]
	}
	switch {
	case strings.HasPrefix(ident, "i="):
		v, err := strconv.ParseUint(ident[2:], 10, 32)
		if err != nil {
			return nil, errors.Errorf("invalid numeric node id: %s", s)
		}
		return NewNumericNodeID(ns, uint32(v)), nil
	case strings.HasPrefix(ident, "s="):
		return NewStringNodeID(ns, ident[2:]), nil
	default:
		return nil, errors.Errorf("unsupported node id syntax: %s", s)
	}
}

// Encode writes the NodeId in the encoding it was constructed or decoded
// with; it does not switch to a more compact form.
func (n *NodeID) Encode(e *Encoder) {
	if n == nil {
		e.WriteByte(byte(NodeIDTypeTwoByte))
		e.WriteByte(0)
		return
	}
	switch n.typ {
	case NodeIDTypeTwoByte:
		e.WriteByte(byte(NodeIDTypeTwoByte))
		e.WriteByte(byte(n.numeric))
	case NodeIDTypeFourByte:
		e.WriteByte(byte(NodeIDTypeFourByte))
		e.WriteByte(byte(n.ns))
		e.WriteUint16(uint16(n.numeric))
	case NodeIDTypeNumeric:
		e.WriteByte(byte(NodeIDTypeNumeric))
		e.WriteUint16(n.ns)
		e.WriteUint32(n.numeric)
	case NodeIDTypeString:
		e.WriteByte(byte(NodeIDTypeString))
		e.WriteUint16(n.ns)
		e.WriteString(n.stringID)
	case NodeIDTypeByteString:
		e.WriteByte(byte(NodeIDTypeByteString))
		e.WriteUint16(n.ns)
		e.WriteByteString(n.byteID)
	case NodeIDTypeGUID:
		e.WriteByte(byte(NodeIDTypeGUID))
		e.WriteUint16(n.ns)
		e.WriteBytes(n.guid[:])
	}
}

// DecodeNodeID reads a NodeId from d.
func DecodeNodeID(d *Decoder) *NodeID {
	mask := d.ReadByte()
	typ := NodeIDType(mask & nodeIDEncodingMask)
	n := &NodeID{typ: typ}
	switch typ {
	case NodeIDTypeTwoByte:
		n.numeric = uint32(d.ReadByte())
	case NodeIDTypeFourByte:
		n.ns = uint16(d.ReadByte())
		n.numeric = uint32(d.ReadUint16())
	case NodeIDTypeNumeric:
		n.ns = d.ReadUint16()
		n.numeric = d.ReadUint32()
	case NodeIDTypeString:
		n.ns = d.ReadUint16()
		n.stringID = d.ReadString()
	case NodeIDTypeByteString:
		n.ns = d.ReadUint16()
		n.byteID = d.ReadByteString()
	case NodeIDTypeGUID:
		n.ns = d.ReadUint16()
		copy(n.guid[:], d.ReadBytes(16))
	default:
		d.fail(errors.Errorf("unknown node id encoding %#x", mask))
	}
	return n
}

// ExpandedNodeID is a NodeId plus an optional namespace URI / server index,
// used to identify the type of an ExtensionObject body across servers
// (Part 6 §5.2.2.10).
type ExpandedNodeID struct {
	NodeID       *NodeID
	NamespaceURI string
	ServerIndex  uint32
}

// NewFourByteExpandedNodeID builds the common case: a namespace-0 numeric
// id naming a DefaultBinary encoding, as used for every request/response
// and identity token TypeId in this repo.
func NewFourByteExpandedNodeID(ns uint8, id uint16) *ExpandedNodeID {
	return &ExpandedNodeID{NodeID: NewFourByteNodeID(ns, id)}
}

func NewNumericExpandedNodeID(ns uint16, id uint32) *ExpandedNodeID {
	return &ExpandedNodeID{NodeID: NewNumericNodeID(ns, id)}
}

const (
	expandedFlagNamespaceURI = 0x80
	expandedFlagServerIndex  = 0x40
)

func (n *ExpandedNodeID) Encode(e *Encoder) {
	if n == nil || n.NodeID == nil {
		NewTwoByteNodeID(0).Encode(e)
		return
	}
	// encode the inner NodeId, then OR in the expanded flags on the first
	// byte already written.
	start := e.Len()
	n.NodeID.Encode(e)
	b := e.buf.Bytes()
	flags := byte(0)
	if n.NamespaceURI != "" {
		flags |= expandedFlagNamespaceURI
	}
	if n.ServerIndex != 0 {
		flags |= expandedFlagServerIndex
	}
	b[start] |= flags
	if n.NamespaceURI != "" {
		e.WriteString(n.NamespaceURI)
	}
	if n.ServerIndex != 0 {
		e.WriteUint32(n.ServerIndex)
	}
}

func DecodeExpandedNodeID(d *Decoder) *ExpandedNodeID {
	mask := d.ReadByte()
	typ := NodeIDType(mask & nodeIDEncodingMask)
	n := &NodeID{typ: typ}
	switch typ {
	case NodeIDTypeTwoByte:
		n.numeric = uint32(d.ReadByte())
	case NodeIDTypeFourByte:
		n.ns = uint16(d.ReadByte())
		n.numeric = uint32(d.ReadUint16())
	case NodeIDTypeNumeric:
		n.ns = d.ReadUint16()
		n.numeric = d.ReadUint32()
	case NodeIDTypeString:
		n.ns = d.ReadUint16()
		n.stringID = d.ReadString()
	case NodeIDTypeByteString:
		n.ns = d.ReadUint16()
		n.byteID = d.ReadByteString()
	case NodeIDTypeGUID:
		n.ns = d.ReadUint16()
		copy(n.guid[:], d.ReadBytes(16))
	}
	en := &ExpandedNodeID{NodeID: n}
	if mask&expandedFlagNamespaceURI != 0 {
		en.NamespaceURI = d.ReadString()
	}
	if mask&expandedFlagServerIndex != 0 {
		en.ServerIndex = d.ReadUint32()
	}
	return en
}

// Equal reports whether two NodeIds identify the same node.
func (n *NodeID) Equal(o *NodeID) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.ns != o.ns {
		return false
	}
	switch n.typ {
	case NodeIDTypeString:
		return o.typ == NodeIDTypeString && n.stringID == o.stringID
	case NodeIDTypeByteString:
		return o.typ == NodeIDTypeByteString && string(n.byteID) == string(o.byteID)
	case NodeIDTypeGUID:
		return o.typ == NodeIDTypeGUID && n.guid == o.guid
	default:
		switch o.typ {
		case NodeIDTypeTwoByte, NodeIDTypeFourByte, NodeIDTypeNumeric:
			return n.numeric == o.numeric
		default:
			return false
		}
	}
}
