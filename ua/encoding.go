// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/opcgo/opcua/errors"
)

// Encoder writes OPC UA binary primitives to an underlying buffer. It is
// the stateless factory the specification calls the Encoding Provider
// (§4.3): callers bind one to a Context and a byte buffer per message, not
// per connection.
type Encoder struct {
	buf bytes.Buffer
	ctx *Context
}

// NewEncoder returns an Encoder bound to ctx. A nil ctx is replaced with
// DefaultContext().
func NewEncoder(ctx *Context) *Encoder {
	if ctx == nil {
		ctx = DefaultContext()
	}
	return &Encoder{ctx: ctx}
}

// Bytes returns the bytes written so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return e.buf.Len() }

// Reset discards everything written so far.
func (e *Encoder) Reset() { e.buf.Reset() }

// Context returns the encoding context this encoder is bound to.
func (e *Encoder) Context() *Context { return e.ctx }

func (e *Encoder) WriteByte(v byte)      { e.buf.WriteByte(v) }
func (e *Encoder) WriteBytes(v []byte)   { e.buf.Write(v) }
func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}
func (e *Encoder) WriteUint16(v uint16) { e.writeLE(v) }
func (e *Encoder) WriteUint32(v uint32) { e.writeLE(v) }
func (e *Encoder) WriteUint64(v uint64) { e.writeLE(v) }
func (e *Encoder) WriteInt16(v int16)   { e.writeLE(v) }
func (e *Encoder) WriteInt32(v int32)   { e.writeLE(v) }
func (e *Encoder) WriteInt64(v int64)   { e.writeLE(v) }
func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

func (e *Encoder) writeLE(v interface{}) {
	_ = binary.Write(&e.buf, binary.LittleEndian, v)
}

// WriteString writes a length-prefixed UTF-8 string. A negative length (-1)
// marks a null string.
func (e *Encoder) WriteString(v string) {
	if v == "" {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	e.buf.WriteString(v)
}

// WriteByteString writes a length-prefixed byte string using the same
// convention as WriteString: nil encodes as length -1.
func (e *Encoder) WriteByteString(v []byte) {
	if v == nil {
		e.WriteInt32(-1)
		return
	}
	e.WriteInt32(int32(len(v)))
	e.buf.Write(v)
}

// Decoder reads OPC UA binary primitives from an in-memory buffer.
type Decoder struct {
	r   *bytes.Reader
	ctx *Context
	err error
}

// NewDecoder returns a Decoder over b bound to ctx. A nil ctx is replaced
// with DefaultContext().
func NewDecoder(b []byte, ctx *Context) *Decoder {
	if ctx == nil {
		ctx = DefaultContext()
	}
	return &Decoder{r: bytes.NewReader(b), ctx: ctx}
}

// Context returns the encoding context this decoder is bound to.
func (d *Decoder) Context() *Context { return d.ctx }

// Err returns the first error encountered during decoding, if any. Once an
// error occurs, all further reads are no-ops so callers can decode a whole
// struct and check Err once at the end.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) ReadByte() byte {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.fail(err)
		return 0
	}
	return b
}

func (d *Decoder) ReadBool() bool { return d.ReadByte() != 0 }

func (d *Decoder) ReadBytes(n int) []byte {
	if d.err != nil || n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail(err)
		return nil
	}
	return buf
}

func (d *Decoder) ReadUint16() uint16 { var v uint16; d.readLE(&v); return v }
func (d *Decoder) ReadUint32() uint32 { var v uint32; d.readLE(&v); return v }
func (d *Decoder) ReadUint64() uint64 { var v uint64; d.readLE(&v); return v }
func (d *Decoder) ReadInt16() int16   { var v int16; d.readLE(&v); return v }
func (d *Decoder) ReadInt32() int32   { var v int32; d.readLE(&v); return v }
func (d *Decoder) ReadInt64() int64   { var v int64; d.readLE(&v); return v }
func (d *Decoder) ReadFloat64() float64 {
	return math.Float64frombits(d.ReadUint64())
}

func (d *Decoder) readLE(v interface{}) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		d.fail(err)
	}
}

// ReadString reads a length-prefixed UTF-8 string. A length of -1 decodes
// to "".
func (d *Decoder) ReadString() string {
	n := d.ReadInt32()
	if d.err != nil || n < 0 {
		return ""
	}
	if int(n) > d.ctx.MaxStringLength && d.ctx.MaxStringLength > 0 {
		d.fail(errors.Errorf("string length %d exceeds limit %d", n, d.ctx.MaxStringLength))
		return ""
	}
	return string(d.ReadBytes(int(n)))
}

// ReadByteString reads a length-prefixed byte string. A length of -1
// decodes to nil.
func (d *Decoder) ReadByteString() []byte {
	n := d.ReadInt32()
	if d.err != nil || n < 0 {
		return nil
	}
	if int(n) > d.ctx.MaxByteStringLength && d.ctx.MaxByteStringLength > 0 {
		d.fail(errors.Errorf("byte string length %d exceeds limit %d", n, d.ctx.MaxByteStringLength))
		return nil
	}
	return d.ReadBytes(int(n))
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return d.r.Len() }

// Encodable is implemented by every structured type that appears as a
// top-level request/response body or inside one.
type Encodable interface {
	Encode(e *Encoder)
}

// Decodable is the read-side counterpart of Encodable.
type Decodable interface {
	Decode(d *Decoder)
}
