// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import (
	"testing"
	"time"

	"github.com/opcgo/opcua/id"
	"github.com/pascaldekloe/goe/verify"
)

// encodeResponse prefixes a response's own binary-encoding TypeId and
// serializes its body, mirroring what EncodeMessage does for requests, so
// the round trip goes through the real DecodeMessage registry dispatch.
func encodeResponse(ctx *Context, typeID uint16, body interface{ Encode(*Encoder) }) []byte {
	e := NewEncoder(ctx)
	NewFourByteExpandedNodeID(0, typeID).Encode(e)
	body.Encode(e)
	return e.Bytes()
}

func TestNodeIDRoundTrip(t *testing.T) {
	cases := []*NodeID{
		NewTwoByteNodeID(5),
		NewFourByteNodeID(2, 12345),
		NewNumericNodeID(3, 70000),
		NewStringNodeID(1, "Temperature.Sensor1"),
		NewByteStringNodeID(4, []byte{1, 2, 3, 4}),
	}
	for _, n := range cases {
		e := NewEncoder(nil)
		n.Encode(e)
		d := NewDecoder(e.Bytes(), nil)
		got := DecodeNodeID(d)
		if d.Err() != nil {
			t.Fatalf("decode: %v", d.Err())
		}
		if !n.Equal(got) {
			t.Fatalf("round trip mismatch: got %+v want %+v", got, n)
		}
	}
}

func TestExpandedNodeIDRoundTrip(t *testing.T) {
	n := &ExpandedNodeID{NodeID: NewNumericNodeID(0, 446), NamespaceURI: "urn:test:ns", ServerIndex: 7}
	e := NewEncoder(nil)
	n.Encode(e)
	d := NewDecoder(e.Bytes(), nil)
	got := DecodeExpandedNodeID(d)
	if d.Err() != nil {
		t.Fatalf("decode: %v", d.Err())
	}
	if !got.NodeID.Equal(n.NodeID) {
		t.Fatalf("NodeID mismatch: got %+v want %+v", got.NodeID, n.NodeID)
	}
	if got.NamespaceURI != n.NamespaceURI || got.ServerIndex != n.ServerIndex {
		t.Fatalf("got %+v want %+v", got, n)
	}
}

func TestStringAndByteStringNullEncoding(t *testing.T) {
	e := NewEncoder(nil)
	e.WriteString("")
	e.WriteByteString(nil)
	d := NewDecoder(e.Bytes(), nil)
	if s := d.ReadString(); s != "" {
		t.Fatalf("ReadString() = %q, want empty", s)
	}
	if b := d.ReadByteString(); b != nil {
		t.Fatalf("ReadByteString() = %v, want nil", b)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	want := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	e := NewEncoder(nil)
	encodeDateTime(e, want)
	d := NewDecoder(e.Bytes(), nil)
	got := decodeDateTime(d)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestZeroDateTimeRoundTrip(t *testing.T) {
	e := NewEncoder(nil)
	encodeDateTime(e, time.Time{})
	d := NewDecoder(e.Bytes(), nil)
	if got := decodeDateTime(d); !got.IsZero() {
		t.Fatalf("got %v, want zero time", got)
	}
}

// TestOpenSecureChannelResponseRoundTrip exercises EncodeMessage/
// DecodeMessage end to end for a concrete response type, using
// pascaldekloe/goe/verify for the deep-equality check (teacher convention,
// see DESIGN.md).
func TestOpenSecureChannelResponseRoundTrip(t *testing.T) {
	ctx := DefaultContext()
	want := &OpenSecureChannelResponse{
		ResponseHeader: &ResponseHeader{
			RequestHandle: 42,
			ServiceResult: StatusOK,
			StringTable:   []string{"diag one", "diag two"},
		},
		ServerProtocolVersion: 0,
		SecurityToken: &ChannelSecurityToken{
			ChannelID:       7,
			TokenID:         1,
			RevisedLifetime: 60000,
		},
		ServerNonce: []byte{9, 9, 9, 9},
	}

	body := encodeResponse(ctx, id.OpenSecureChannelResponse_Encoding_DefaultBinary, want)

	got, err := DecodeMessage(body, ctx)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	verify.Values(t, "", got, want)
}

func TestReadResponseRoundTrip(t *testing.T) {
	ctx := DefaultContext()
	want := &ReadResponse{
		ResponseHeader: &ResponseHeader{RequestHandle: 1, ServiceResult: StatusOK},
		Results: []*DataValue{
			{EncodingMask: DataValueValue | DataValueStatusCode, Value: MustVariant(uint32(3)), Status: StatusOK},
			{EncodingMask: DataValueValue | DataValueStatusCode, Value: MustVariant("hello"), Status: StatusOK},
		},
	}
	body := encodeResponse(ctx, id.ReadResponse_Encoding_DefaultBinary, want)
	got, err := DecodeMessage(body, ctx)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	verify.Values(t, "", got, want)
}
