// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"time"

	"github.com/opcgo/opcua/errors"
)

// VariantType is the builtin type id embedded in a Variant's encoding mask
// (Part 6 §5.2.2.16, Table 14). Only the handful of builtin types the core
// needs to move through Read responses and test fixtures are implemented;
// a general Variant capable of carrying every builtin type (and arbitrary
// structures via ExtensionObject) is the arbitrary-type codec that §1
// places out of scope.
type VariantType byte

const (
	VariantTypeBoolean VariantType = 1
	VariantTypeInt32    VariantType = 6
	VariantTypeUInt32   VariantType = 7
	VariantTypeString   VariantType = 12
)

const variantArrayMask = 0x80

// Variant is a tagged union wrapping a scalar of one of the builtin types
// above, or a single-dimension array of strings (arrays of the other types
// are not supported).
type Variant struct {
	typ   VariantType
	array bool
	value interface{}
}

// MustVariant wraps v in a Variant, or panics if v's Go type has no
// corresponding builtin type. Mirrors the teacher's helper of the same
// name used when building WriteValues in tests.
func MustVariant(v interface{}) *Variant {
	vv, err := NewVariant(v)
	if err != nil {
		panic(err)
	}
	return vv
}

// NewVariant wraps v in a Variant.
func NewVariant(v interface{}) (*Variant, error) {
	switch x := v.(type) {
	case bool:
		return &Variant{typ: VariantTypeBoolean, value: x}, nil
	case int32:
		return &Variant{typ: VariantTypeInt32, value: x}, nil
	case uint32:
		return &Variant{typ: VariantTypeUInt32, value: x}, nil
	case string:
		return &Variant{typ: VariantTypeString, value: x}, nil
	case []string:
		return &Variant{typ: VariantTypeString, array: true, value: x}, nil
	default:
		return nil, errors.Errorf("unsupported variant type %T", v)
	}
}

// Value returns the wrapped Go value.
func (v *Variant) Value() interface{} {
	if v == nil {
		return nil
	}
	return v.value
}

func (v *Variant) Encode(e *Encoder) {
	if v == nil {
		e.WriteByte(0)
		return
	}
	mask := byte(v.typ)
	if v.array {
		mask |= variantArrayMask
	}
	e.WriteByte(mask)
	if v.array {
		arr := v.value.([]string)
		e.WriteInt32(int32(len(arr)))
		for _, s := range arr {
			e.WriteString(s)
		}
		return
	}
	switch v.typ {
	case VariantTypeBoolean:
		e.WriteBool(v.value.(bool))
	case VariantTypeInt32:
		e.WriteInt32(v.value.(int32))
	case VariantTypeUInt32:
		e.WriteUint32(v.value.(uint32))
	case VariantTypeString:
		e.WriteString(v.value.(string))
	}
}

func DecodeVariant(d *Decoder) *Variant {
	mask := d.ReadByte()
	typ := VariantType(mask &^ variantArrayMask)
	array := mask&variantArrayMask != 0
	v := &Variant{typ: typ, array: array}
	if array {
		n := d.ReadInt32()
		arr := make([]string, 0, max32(n, 0))
		for i := int32(0); i < n; i++ {
			arr = append(arr, decodeScalarString(d, typ))
		}
		v.value = arr
		return v
	}
	switch typ {
	case VariantTypeBoolean:
		v.value = d.ReadBool()
	case VariantTypeInt32:
		v.value = d.ReadInt32()
	case VariantTypeUInt32:
		v.value = d.ReadUint32()
	case VariantTypeString:
		v.value = d.ReadString()
	default:
		d.fail(errors.Errorf("unsupported variant builtin type %d", typ))
	}
	return v
}

func decodeScalarString(d *Decoder, typ VariantType) string {
	if typ == VariantTypeString {
		return d.ReadString()
	}
	d.fail(errors.Errorf("unsupported variant array type %d", typ))
	return ""
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// DataValueEncoding bits select which of a DataValue's optional fields are
// present (Part 6 §5.2.2.17).
const (
	DataValueValue             byte = 0x1
	DataValueStatusCode        byte = 0x2
	DataValueSourceTimestamp   byte = 0x4
	DataValueServerTimestamp   byte = 0x8
	DataValueSourcePicoseconds byte = 0x10
	DataValueServerPicoseconds byte = 0x20
)

// DataValue is the value-plus-metadata structure returned by Read (§6
// service NodeIds list includes ReadResponse).
type DataValue struct {
	EncodingMask    byte
	Value           *Variant
	Status          StatusCode
	SourceTimestamp time.Time
	ServerTimestamp time.Time
}

func (v *DataValue) Encode(e *Encoder) {
	e.WriteByte(v.EncodingMask)
	if v.EncodingMask&DataValueValue != 0 {
		v.Value.Encode(e)
	}
	if v.EncodingMask&DataValueStatusCode != 0 {
		e.WriteUint32(uint32(v.Status))
	}
	if v.EncodingMask&DataValueSourceTimestamp != 0 {
		encodeDateTime(e, v.SourceTimestamp)
	}
	if v.EncodingMask&DataValueServerTimestamp != 0 {
		encodeDateTime(e, v.ServerTimestamp)
	}
}

func DecodeDataValue(d *Decoder) *DataValue {
	v := &DataValue{}
	v.EncodingMask = d.ReadByte()
	if v.EncodingMask&DataValueValue != 0 {
		v.Value = DecodeVariant(d)
	}
	if v.EncodingMask&DataValueStatusCode != 0 {
		v.Status = StatusCode(d.ReadUint32())
	}
	if v.EncodingMask&DataValueSourceTimestamp != 0 {
		v.SourceTimestamp = decodeDateTime(d)
	}
	if v.EncodingMask&DataValueServerTimestamp != 0 {
		v.ServerTimestamp = decodeDateTime(d)
	}
	return v
}
