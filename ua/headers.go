// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "time"

// epoch is the OPC UA DateTime epoch: 1601-01-01 UTC. DateTime values on
// the wire are 100ns ticks since this instant (Part 6 §5.2.2.5).
var epoch = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

func encodeDateTime(e *Encoder, t time.Time) {
	if t.IsZero() {
		e.WriteInt64(0)
		return
	}
	// computed from Unix seconds: the span since 1601 is too long for a
	// time.Duration, so t.Sub(epoch) would saturate.
	e.WriteInt64((t.Unix()-epoch.Unix())*10000000 + int64(t.Nanosecond())/100)
}

func decodeDateTime(d *Decoder) time.Time {
	ticks := d.ReadInt64()
	if ticks <= 0 {
		return time.Time{}
	}
	return time.Unix(epoch.Unix()+ticks/10000000, (ticks%10000000)*100).UTC()
}

// RequestHeader is present on every service request (§3).
type RequestHeader struct {
	AuthenticationToken *NodeID
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	AuditEntryID        string
	TimeoutHint         uint32
	// AdditionalHeader is always encoded as a null ExtensionObject; this
	// repo has no use for vendor-specific request header extensions.
}

func (h *RequestHeader) Encode(e *Encoder) {
	h.AuthenticationToken.Encode(e)
	encodeDateTime(e, h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	e.WriteUint32(h.ReturnDiagnostics)
	e.WriteString(h.AuditEntryID)
	e.WriteUint32(h.TimeoutHint)
	(&ExtensionObject{}).Encode(e)
}

func DecodeRequestHeader(d *Decoder) *RequestHeader {
	h := &RequestHeader{}
	h.AuthenticationToken = DecodeNodeID(d)
	h.Timestamp = decodeDateTime(d)
	h.RequestHandle = d.ReadUint32()
	h.ReturnDiagnostics = d.ReadUint32()
	h.AuditEntryID = d.ReadString()
	h.TimeoutHint = d.ReadUint32()
	DecodeExtensionObjectBody(d) // discard AdditionalHeader
	return h
}

// ResponseHeader is present on every service response (§3), and carries
// the ServiceResult that §4.4 raises on the awaiting operation when it is
// not StatusOK.
type ResponseHeader struct {
	Timestamp     time.Time
	RequestHandle uint32
	ServiceResult StatusCode
	StringTable   []string
}

func (h *ResponseHeader) Encode(e *Encoder) {
	encodeDateTime(e, h.Timestamp)
	e.WriteUint32(h.RequestHandle)
	e.WriteUint32(uint32(h.ServiceResult))
	// DiagnosticInfo: null.
	e.WriteByte(0)
	e.WriteInt32(int32(len(h.StringTable)))
	for _, s := range h.StringTable {
		e.WriteString(s)
	}
	(&ExtensionObject{}).Encode(e)
}

func DecodeResponseHeader(d *Decoder) *ResponseHeader {
	h := &ResponseHeader{}
	h.Timestamp = decodeDateTime(d)
	h.RequestHandle = d.ReadUint32()
	h.ServiceResult = StatusCode(d.ReadUint32())
	d.ReadByte() // DiagnosticInfo encoding mask, always null here
	n := d.ReadInt32()
	if n > 0 {
		h.StringTable = make([]string, n)
		for i := range h.StringTable {
			h.StringTable[i] = d.ReadString()
		}
	}
	DecodeExtensionObjectBody(d) // discard AdditionalHeader
	return h
}

// SignatureData carries a signature algorithm URI and the signature bytes
// (§4.5 client/server/user-token signatures).
type SignatureData struct {
	Algorithm string
	Signature []byte
}

func (s *SignatureData) Encode(e *Encoder) {
	if s == nil {
		e.WriteString("")
		e.WriteByteString(nil)
		return
	}
	e.WriteString(s.Algorithm)
	e.WriteByteString(s.Signature)
}

func DecodeSignatureData(d *Decoder) *SignatureData {
	return &SignatureData{Algorithm: d.ReadString(), Signature: d.ReadByteString()}
}

// QualifiedName is a name qualified by a namespace index.
type QualifiedName struct {
	NamespaceIndex uint16
	Name           string
}

func (q *QualifiedName) Encode(e *Encoder) {
	if q == nil {
		e.WriteUint16(0)
		e.WriteString("")
		return
	}
	e.WriteUint16(q.NamespaceIndex)
	e.WriteString(q.Name)
}

func DecodeQualifiedName(d *Decoder) *QualifiedName {
	return &QualifiedName{NamespaceIndex: d.ReadUint16(), Name: d.ReadString()}
}

// LocalizedText is a string tagged with an optional locale.
type LocalizedText struct {
	Locale string
	Text   string
}

const (
	localizedTextLocale = 0x1
	localizedTextText   = 0x2
)

func (l *LocalizedText) Encode(e *Encoder) {
	if l == nil {
		e.WriteByte(0)
		return
	}
	mask := byte(0)
	if l.Locale != "" {
		mask |= localizedTextLocale
	}
	if l.Text != "" {
		mask |= localizedTextText
	}
	e.WriteByte(mask)
	if mask&localizedTextLocale != 0 {
		e.WriteString(l.Locale)
	}
	if mask&localizedTextText != 0 {
		e.WriteString(l.Text)
	}
}

func DecodeLocalizedText(d *Decoder) *LocalizedText {
	mask := d.ReadByte()
	l := &LocalizedText{}
	if mask&localizedTextLocale != 0 {
		l.Locale = d.ReadString()
	}
	if mask&localizedTextText != 0 {
		l.Text = d.ReadString()
	}
	return l
}

// ApplicationDescription describes the client or server application (§3).
type ApplicationDescription struct {
	ApplicationURI      string
	ProductURI          string
	ApplicationName     *LocalizedText
	ApplicationType      uint32
	GatewayServerURI     string
	DiscoveryProfileURI  string
	DiscoveryURLs        []string
}

func (a *ApplicationDescription) Encode(e *Encoder) {
	e.WriteString(a.ApplicationURI)
	e.WriteString(a.ProductURI)
	a.ApplicationName.Encode(e)
	e.WriteUint32(a.ApplicationType)
	e.WriteString(a.GatewayServerURI)
	e.WriteString(a.DiscoveryProfileURI)
	e.WriteInt32(int32(len(a.DiscoveryURLs)))
	for _, u := range a.DiscoveryURLs {
		e.WriteString(u)
	}
}

func DecodeApplicationDescription(d *Decoder) *ApplicationDescription {
	a := &ApplicationDescription{}
	a.ApplicationURI = d.ReadString()
	a.ProductURI = d.ReadString()
	a.ApplicationName = DecodeLocalizedText(d)
	a.ApplicationType = d.ReadUint32()
	a.GatewayServerURI = d.ReadString()
	a.DiscoveryProfileURI = d.ReadString()
	n := d.ReadInt32()
	for i := int32(0); i < n; i++ {
		a.DiscoveryURLs = append(a.DiscoveryURLs, d.ReadString())
	}
	return a
}
