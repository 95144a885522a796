// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uacp implements the UA-TCP transport connection (§4.1): the
// 8-byte type+length framing all UA-TCP messages share, and the HELLO/
// ACKNOWLEDGE handshake that negotiates per-transport buffer and message
// size limits before a secure channel is opened on top.
package uacp

import (
	"context"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/opcgo/opcua/debug"
	"github.com/opcgo/opcua/errors"
	"github.com/opcgo/opcua/internal/bufpool"
	"github.com/opcgo/opcua/internal/lifecycle"
	"github.com/opcgo/opcua/ua"
)

// Conn is one TCP connection framed as UA-TCP messages. It owns the
// Communication Object lifecycle (§4.3) for the transport layer: Close is
// idempotent and safe to call from any state.
type Conn struct {
	c       net.Conn
	life    *lifecycle.Machine
	opts    Options
	writeMu sync.Mutex

	framePool *bufpool.Pool

	closeOnce sync.Once
}

// framebufPool returns the byte-buffer pool writeFrame assembles each
// outgoing frame in, lazily sized to the negotiated send buffer the first
// time a frame is written. Callers hold writeMu, so lazy init races with
// nothing.
func (c *Conn) framebufPool() *bufpool.Pool {
	if c.framePool == nil {
		capacity := int(c.opts.SendBufferSize)
		if capacity == 0 {
			capacity = DefaultSendBufferSize
		}
		c.framePool = bufpool.New(capacity)
	}
	return c.framePool
}

// Dial opens a TCP connection to the host:port encoded in endpoint (an
// "opc.tcp://host:port/path" URL) and runs the HELLO handshake with
// DefaultOptions as the local side. Use DialOptions for control over the
// negotiated options.
func Dial(ctx context.Context, endpoint string) (*Conn, error) {
	return DialOptions(ctx, endpoint, DefaultOptions())
}

// DialOptions is Dial with explicit local transport options.
func DialOptions(ctx context.Context, endpoint string, opts Options) (*Conn, error) {
	addr, err := hostPort(endpoint)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "uacp: dial")
	}

	conn := &Conn{c: nc, opts: opts}
	conn.life = lifecycle.New(lifecycle.Hooks{
		Open: func() error {
			negotiated, err := conn.hello(endpoint)
			if err != nil {
				return err
			}
			conn.opts = negotiated
			return nil
		},
	})
	if err := conn.life.Open(); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return conn, nil
}

func hostPort(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "uacp: invalid endpoint url %q", endpoint)
	}
	if u.Scheme != "opc.tcp" {
		return "", errors.Errorf("uacp: unsupported scheme %q, want opc.tcp", u.Scheme)
	}
	host := u.Host
	if !strings.Contains(host, ":") {
		host += ":4840"
	}
	return host, nil
}

// hello performs the HELLO/ACKNOWLEDGE exchange described in §4.1: send a
// HELF frame with the local options, and either read back an ACKF with the
// server's negotiated (possibly smaller, per scenario (a)) options, or an
// ERRF which fails the open with the encoded status code.
func (c *Conn) hello(endpointURL string) (Options, error) {
	h := &Hello{
		ProtocolVersion:   DefaultProtocolVersion,
		ReceiveBufferSize: c.opts.ReceiveBufferSize,
		SendBufferSize:    c.opts.SendBufferSize,
		MaxMessageSize:    c.opts.MaxMessageSize,
		MaxChunkCount:     c.opts.MaxChunkCount,
		EndpointURL:       endpointURL,
	}
	e := ua.NewEncoder(nil)
	h.Encode(e)
	if err := c.writeFrame(MessageTypeHello, ChunkTypeFinal, e.Bytes()); err != nil {
		return Options{}, err
	}

	typ, chunk, body, err := c.readFrame()
	if err != nil {
		return Options{}, err
	}
	_ = chunk

	switch typ {
	case MessageTypeAcknowledge:
		d := ua.NewDecoder(body, nil)
		ack := decodeAcknowledge(d)
		if d.Err() != nil {
			return Options{}, errors.Wrap(d.Err(), "uacp: decode acknowledge")
		}
		if ack.ProtocolVersion > DefaultProtocolVersion {
			return Options{}, ua.StatusBadProtocolVersionUnsupported
		}
		return Options{
			ReceiveBufferSize: ack.ReceiveBufferSize,
			SendBufferSize:    ack.SendBufferSize,
			MaxMessageSize:    ack.MaxMessageSize,
			MaxChunkCount:     ack.MaxChunkCount,
		}, nil

	case MessageTypeError:
		d := ua.NewDecoder(body, nil)
		em := decodeErrorMessage(d)
		return Options{}, &Error{ErrorCode: em.ErrorCode, Reason: em.Reason}

	default:
		return Options{}, errors.Errorf("uacp: unexpected message type %q during handshake", typ)
	}
}

// Options returns the negotiated transport options (local values
// overwritten with whatever the server's ACK reported, per scenario (a)).
func (c *Conn) Options() Options { return c.opts }

// Send writes one already-assembled frame body (everything after the
// 8-byte transport header) with the given type and chunk marker.
func (c *Conn) Send(typ MessageType, chunk ChunkType, body []byte) error {
	return c.writeFrame(typ, chunk, body)
}

// writeFrame assembles the 8-byte transport header and body into one
// pooled buffer and writes it in a single call, so a slow or partial
// network write can't interleave the header and body of two concurrent
// frames (writeMu already serializes callers; the single Write also avoids
// giving the kernel two separate small writes per frame).
func (c *Conn) writeFrame(typ MessageType, chunk ChunkType, body []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	total := headerSize + len(body)
	var header [headerSize]byte
	header[0], header[1], header[2], header[3] = typ[0], typ[1], typ[2], byte(chunk)
	header[4] = byte(total)
	header[5] = byte(total >> 8)
	header[6] = byte(total >> 16)
	header[7] = byte(total >> 24)

	h := c.framebufPool().Get()
	defer h.Release()
	h.Append(header[:])
	h.Append(body)

	if _, err := c.c.Write(h.Bytes()); err != nil {
		return c.transportError(err)
	}
	return nil
}

// Receive reads one frame and returns its type, chunk marker and body
// (everything after the 8-byte header).
func (c *Conn) Receive() (MessageType, ChunkType, []byte, error) {
	return c.readFrame()
}

func (c *Conn) readFrame() (MessageType, ChunkType, []byte, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(c.c, header); err != nil {
		return MessageType{}, 0, nil, c.transportError(err)
	}

	typ := MessageType{header[0], header[1], header[2]}
	chunk := ChunkType(header[3])
	total := uint32(header[4]) | uint32(header[5])<<8 | uint32(header[6])<<16 | uint32(header[7])<<24

	ceiling := c.opts.ReceiveBufferSize
	if ceiling == 0 {
		ceiling = DefaultMaxMessageSize
	}
	if total < headerSize || total > ceiling && ceiling > 0 && total > DefaultMaxMessageSize {
		return MessageType{}, 0, nil, ua.StatusBadResponseTooLarge
	}

	body := make([]byte, total-headerSize)
	if _, err := io.ReadFull(c.c, body); err != nil {
		return MessageType{}, 0, nil, c.transportError(err)
	}

	debug.Printf("uacp: received %s chunk (%d bytes)", string(typ[:]), total)
	return typ, chunk, body, nil
}

func (c *Conn) transportError(err error) error {
	if c.life != nil && c.life.State() == lifecycle.Closed {
		return ua.StatusBadSecureChannelClosed
	}
	if err == io.EOF {
		return err
	}
	if ne, ok := err.(net.Error); ok && !ne.Temporary() {
		return ua.StatusBadServerNotConnected
	}
	return errors.Wrap(err, "uacp: transport error")
}

// Close closes the underlying socket. It is idempotent: after the first
// call, further Send/Receive calls fail with BadSecureChannelClosed (§4.1).
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.life.Close()
		_ = c.c.Close()
	})
	return nil
}

// LocalAddr and RemoteAddr expose the underlying socket endpoints, useful
// for logging and tests.
func (c *Conn) LocalAddr() net.Addr  { return c.c.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.c.RemoteAddr() }
