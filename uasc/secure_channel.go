// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opcgo/opcua/debug"
	"github.com/opcgo/opcua/errors"
	"github.com/opcgo/opcua/internal/lifecycle"
	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uacp"
	"github.com/opcgo/opcua/uapolicy"
)

// SecureChannel is the Client Secure Channel + Session component of §2: a
// Communication Object that layers the Conversation's crypto over a
// uacp.Conn and adds a serialized sender, a background receiver and a
// correlation map keyed by request handle.
type SecureChannel struct {
	endpointURL string
	conn        *uacp.Conn
	cfg         *Config
	errCh       chan error

	life *lifecycle.Machine
	ctx  *ua.Context

	convMu sync.RWMutex
	conv   *conversation

	sendMu sync.Mutex

	handleCounter uint32 // atomic, §9 "skip 0, wraparound"

	openMu   sync.Mutex
	openWait chan openResult

	pendingMu sync.Mutex
	pending   map[uint32]*pendingRequest

	renewTimer *time.Timer
}

type openResult struct {
	resp *ua.OpenSecureChannelResponse
	err  error
}

// pendingRequest is the ServiceOperation of §3: one in-flight request
// waiting for its response, cancellation or timeout.
type pendingRequest struct {
	handler func(interface{}) error
	done    chan struct{}
	err     error
}

// NewSecureChannel builds a SecureChannel bound to an already-Hello/Ack'd
// transport connection. errCh receives an error (sent without blocking,
// and never closed by the channel) the moment the channel can no longer make progress, mirroring the caller's
// reconnection-monitor contract.
func NewSecureChannel(endpointURL string, conn *uacp.Conn, cfg *Config, errCh chan error) (*SecureChannel, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SecureChannel{
		endpointURL: endpointURL,
		conn:        conn,
		cfg:         cfg,
		errCh:       errCh,
		ctx:         ua.DefaultContext(),
		pending:     make(map[uint32]*pendingRequest),
	}, nil
}

// EncodingContext returns the namespace/server URI table this channel's
// messages are encoded and decoded against.
func (s *SecureChannel) EncodingContext() *ua.Context { return s.ctx }

// Open performs the transport-level OpenSecureChannel handshake (§4.2,
// §4.4 "issue") and starts the background receiver.
func (s *SecureChannel) Open(ctx context.Context) error {
	s.life = lifecycle.New(lifecycle.Hooks{
		Opening: func() error {
			go s.receiveLoop()
			return nil
		},
		Open: func() error {
			return s.openChannel(ctx, ua.SecurityTokenRequestTypeIssue)
		},
		Close: func() error { return s.conn.Close() },
		Abort: func() error { return s.conn.Close() },
		Faulted: s.propagateFault,
	})
	return s.life.Open()
}

func (s *SecureChannel) openChannel(ctx context.Context, reqType ua.SecurityTokenRequestType) error {
	conv, err := newConversation(s.cfg)
	if err != nil {
		return err
	}
	nonce, err := func() ([]byte, error) {
		if reqType == ua.SecurityTokenRequestTypeRenew {
			s.convMu.RLock()
			defer s.convMu.RUnlock()
			if s.conv != nil {
				conv.channelID = s.conv.channelID
				conv.remoteCert = s.conv.remoteCert
				conv.remoteKey = s.conv.remoteKey
			}
		}
		return uapolicy.Nonce(conv.policy.NonceLength)
	}()
	if err != nil {
		return err
	}
	conv.localNonce = nonce

	req := &ua.OpenSecureChannelRequest{
		RequestHeader: &ua.RequestHeader{
			AuthenticationToken: ua.NewTwoByteNodeID(0),
			TimeoutHint:         uint32(s.cfg.RequestTimeout / time.Millisecond),
		},
		ClientProtocolVersion: 0,
		RequestType:           reqType,
		SecurityMode:          s.cfg.SecurityMode,
		ClientNonce:           nonce,
		RequestedLifetime:     uint32(s.cfg.Lifetime / time.Millisecond),
	}

	s.openMu.Lock()
	s.openWait = make(chan openResult, 1)
	s.openMu.Unlock()

	payload := ua.EncodeMessage(req, s.ctx)
	if err := s.sendFrame(uacp.MessageTypeOpen, conv, func(conv *conversation, requestID uint32) ([]byte, error) {
		return conv.encryptOpen(s.ctx, conv.channelID, requestID, payload)
	}); err != nil {
		return err
	}

	var res openResult
	select {
	case res = <-s.openWait:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.RequestTimeout):
		return ua.StatusBadRequestTimeout
	}
	if res.err != nil {
		return res.err
	}
	if res.resp.ResponseHeader.ServiceResult != ua.StatusOK {
		return res.resp.ResponseHeader.ServiceResult
	}

	conv.channelID = res.resp.SecurityToken.ChannelID
	conv.remoteNonce = res.resp.ServerNonce
	conv.deriveKeys()
	if reqType == ua.SecurityTokenRequestTypeRenew {
		s.convMu.RLock()
		if s.conv != nil {
			conv.prevToken = s.conv.token
			conv.prevRemoteKeys = s.conv.remoteKeys
			conv.recvSeqPrev = s.conv.recvSeqActive
		}
		s.convMu.RUnlock()
	}
	conv.token = res.resp.SecurityToken

	s.convMu.Lock()
	s.conv = conv
	s.convMu.Unlock()

	s.scheduleRenew(time.Duration(res.resp.SecurityToken.RevisedLifetime) * time.Millisecond)
	return nil
}

// scheduleRenew arms a timer to renew the security token at 75% of its
// lifetime (§4.4 "renew before expiry"), matching common client practice
// even though the specification leaves the exact margin unstated.
func (s *SecureChannel) scheduleRenew(lifetime time.Duration) {
	if s.renewTimer != nil {
		s.renewTimer.Stop()
	}
	if lifetime <= 0 {
		return
	}
	s.renewTimer = time.AfterFunc(lifetime*3/4, func() {
		if s.life.State() != lifecycle.Opened {
			return
		}
		if err := s.openChannel(context.Background(), ua.SecurityTokenRequestTypeRenew); err != nil {
			debug.Printf("uasc: token renewal failed: %v", err)
			s.life.Fault(err)
		}
	})
}

// Close sends CloseSecureChannel and tears down the transport (§4.4 close
// path). The server is not required to answer, so the request is fired
// without registering a pending completion.
func (s *SecureChannel) Close() error {
	if s.renewTimer != nil {
		s.renewTimer.Stop()
	}
	if s.life != nil && s.life.State() == lifecycle.Opened {
		req := &ua.CloseSecureChannelRequest{RequestHeader: requestHeader(nil, s.nextRequestHandle(), s.cfg.RequestTimeout)}
		payload := ua.EncodeMessage(req, s.ctx)
		_ = s.sendChunks(uacp.MessageTypeClose, func(conv *conversation, requestID uint32) ([]messageChunk, error) {
			return conv.encryptMessageChunks(s.ctx, requestID, payload, s.maxChunkSize(), s.maxChunkCount())
		})
	}
	if s.life == nil {
		return nil
	}
	return s.life.Close()
}

// nextRequestHandle allocates the next request handle, skipping 0 (reserved
// for "no handle") and wrapping at the uint32 boundary (§9).
func (s *SecureChannel) nextRequestHandle() uint32 {
	for {
		h := atomic.AddUint32(&s.handleCounter, 1)
		if h != 0 {
			return h
		}
	}
}

func (s *SecureChannel) nextRequestID() uint32 {
	return s.nextRequestHandle()
}

// maxChunkSize returns the largest size one outbound chunk may have on the
// wire, per the transport options negotiated during Hello/Acknowledge.
func (s *SecureChannel) maxChunkSize() uint32 {
	if opts := s.conn.Options(); opts.SendBufferSize > 0 {
		return opts.SendBufferSize
	}
	return uacp.DefaultSendBufferSize
}

// maxChunkCount returns the most chunks a single logical message may be
// split into, per the negotiated transport options.
func (s *SecureChannel) maxChunkCount() uint32 {
	if opts := s.conn.Options(); opts.MaxChunkCount > 0 {
		return opts.MaxChunkCount
	}
	return uacp.DefaultMaxChunkCount
}

// sendFrame assigns a request id, encodes and writes one frame as a single
// atomic step under the send lock, so two concurrent callers can never
// interleave sequence-number assignment with the wire write (§5 "sends are
// strictly serialized by a send semaphore"; §8 property 2).
func (s *SecureChannel) sendFrame(typ uacp.MessageType, conv *conversation, encode func(conv *conversation, requestID uint32) ([]byte, error)) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	requestID := s.nextRequestID()
	frame, err := encode(conv, requestID)
	if err != nil {
		return err
	}
	return s.conn.Send(typ, uacp.ChunkTypeFinal, frame)
}

// sendChunks is sendFrame against the channel's current conversation,
// splitting the message across as many chunks as the negotiated transport
// options require (§4.2 "chunk the body"). Request-id assignment, every
// chunk's encryption and every chunk's write happen under one send-lock
// acquisition, so no other sender can slip a frame in between them.
func (s *SecureChannel) sendChunks(typ uacp.MessageType, encode func(conv *conversation, requestID uint32) ([]messageChunk, error)) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.convMu.RLock()
	conv := s.conv
	s.convMu.RUnlock()
	if conv == nil {
		return ua.StatusBadServerNotConnected
	}

	requestID := s.nextRequestID()
	chunks, err := encode(conv, requestID)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := s.conn.Send(typ, c.chunkType, c.body); err != nil {
			return err
		}
	}
	return nil
}

// SendRequest sends req and blocks until its response arrives, the channel
// faults, or the default timeout elapses.
func (s *SecureChannel) SendRequest(req ua.Request, authToken *ua.NodeID, h func(interface{}) error) error {
	return s.SendRequestWithTimeout(req, authToken, s.cfg.RequestTimeout, h)
}

// SendRequestWithTimeout is SendRequest with an explicit per-call timeout
// (§3 "TimeoutHint"). The handler runs on the channel's background
// receiver goroutine when the response arrives, and its error becomes the
// call's result; the caller blocks until then, giving the teacher's
// synchronous request/response call shape. A handler must not itself wait
// for another response on the same channel.
func (s *SecureChannel) SendRequestWithTimeout(req ua.Request, authToken *ua.NodeID, timeout time.Duration, h func(interface{}) error) error {
	if s.life == nil || s.life.State() != lifecycle.Opened {
		return ua.StatusBadServerNotConnected
	}

	handle := s.nextRequestHandle()
	switch r := req.(type) {
	case *ua.ReadRequest:
		r.RequestHeader = requestHeader(authToken, handle, timeout)
	case *ua.CreateSessionRequest:
		r.RequestHeader = requestHeader(authToken, handle, timeout)
	case *ua.ActivateSessionRequest:
		r.RequestHeader = requestHeader(authToken, handle, timeout)
	case *ua.CloseSessionRequest:
		r.RequestHeader = requestHeader(authToken, handle, timeout)
	case *ua.GetEndpointsRequest:
		r.RequestHeader = requestHeader(authToken, handle, timeout)
	}

	pr := &pendingRequest{handler: h, done: make(chan struct{})}
	s.pendingMu.Lock()
	s.pending[handle] = pr
	s.pendingMu.Unlock()

	payload := ua.EncodeMessage(req, s.ctx)

	if err := s.sendChunks(uacp.MessageTypeMessage, func(conv *conversation, requestID uint32) ([]messageChunk, error) {
		return conv.encryptMessageChunks(s.ctx, requestID, payload, s.maxChunkSize(), s.maxChunkCount())
	}); err != nil {
		s.removePending(handle)
		return err
	}

	select {
	case <-pr.done:
		return pr.err
	case <-time.After(timeout):
		s.removePending(handle)
		return ua.StatusBadRequestTimeout
	}
}

func requestHeader(authToken *ua.NodeID, handle uint32, timeout time.Duration) *ua.RequestHeader {
	if authToken == nil {
		authToken = ua.NewTwoByteNodeID(0)
	}
	return &ua.RequestHeader{
		AuthenticationToken: authToken,
		Timestamp:           time.Now(),
		RequestHandle:       handle,
		TimeoutHint:         uint32(timeout / time.Millisecond),
	}
}

func (s *SecureChannel) removePending(handle uint32) {
	s.pendingMu.Lock()
	delete(s.pending, handle)
	s.pendingMu.Unlock()
}

// chunkAssembly accumulates the decrypted plaintext of consecutive
// Intermediate chunks into one logical message, until a Final chunk closes
// it or an Abort chunk discards it (§4.2 "pull chunks until the final-chunk
// bit is set or an abort-chunk is seen"). requestID pins the chunks
// together: every chunk of one logical message carries the same RequestID
// in its sequence header.
type chunkAssembly struct {
	payload   []byte
	requestID uint32
	active    bool
}

func (a *chunkAssembly) reset() { *a = chunkAssembly{} }

// append adds one chunk's decrypted payload to the assembly, verifying it
// belongs to the same logical message as any chunk already accumulated
// (§4.2 "request ids match across chunks"). It reports whether the
// assembly is now complete (chunk was Final).
func (a *chunkAssembly) append(chunk uacp.ChunkType, requestID uint32, payload []byte) (complete bool, err error) {
	if a.active && requestID != a.requestID {
		a.reset()
		return false, errors.New("uasc: chunk request id mismatch mid-message")
	}
	a.payload = append(a.payload, payload...)
	a.requestID = requestID
	a.active = true
	return chunk == uacp.ChunkTypeFinal, nil
}

// receiveLoop is the background receiver (§2 component 5): it reads
// frames, decrypts them through the conversation, reassembles multi-chunk
// messages, and either completes the pending Open() call or dispatches a
// response to its correlated ServiceOperation. Any transport-level error
// faults the channel and fails every outstanding operation.
func (s *SecureChannel) receiveLoop() {
	var openAcc, msgAcc chunkAssembly
	for {
		typ, chunk, body, err := s.conn.Receive()
		if err != nil {
			s.fail(err)
			return
		}
		if len(body) < 4 {
			continue
		}
		switch typ {
		case uacp.MessageTypeOpen:
			s.handleOpenChunk(chunk, body, &openAcc)
		case uacp.MessageTypeMessage, uacp.MessageTypeClose:
			s.handleMessageChunk(chunk, body, &msgAcc)
		default:
			debug.Printf("uasc: unexpected frame type %q", typ)
		}
	}
}

func (s *SecureChannel) handleOpenChunk(chunk uacp.ChunkType, body []byte, acc *chunkAssembly) {
	if chunk == uacp.ChunkTypeAbort {
		acc.reset()
		return
	}

	d := ua.NewDecoder(body, s.ctx)
	_ = d.ReadUint32() // SecureChannelId
	_ = decodeAsymmetricSecurityHeader(d)
	rest := body[len(body)-d.Remaining():]

	s.convMu.RLock()
	conv := s.conv
	s.convMu.RUnlock()
	if conv == nil {
		conv, _ = newConversation(s.cfg)
	}

	seq, payload, err := conv.decryptOpen(rest)
	if err != nil {
		acc.reset()
		s.deliverOpen(nil, err)
		return
	}
	complete, err := acc.append(chunk, seq.RequestID, payload)
	if err != nil {
		s.deliverOpen(nil, err)
		return
	}
	if !complete {
		return
	}
	full := acc.payload
	acc.reset()
	s.deliverOpen(full, nil)
}

func (s *SecureChannel) deliverOpen(payload []byte, err error) {
	var resp *ua.OpenSecureChannelResponse
	if err == nil {
		r, derr := ua.DecodeMessage(payload, s.ctx)
		if derr != nil {
			err = derr
		} else if rr, ok := r.(*ua.OpenSecureChannelResponse); ok {
			resp = rr
		} else {
			err = errors.New("uasc: unexpected response to OpenSecureChannel")
		}
	}
	s.openMu.Lock()
	ch := s.openWait
	s.openMu.Unlock()
	if ch != nil {
		ch <- openResult{resp: resp, err: err}
	}
}

func (s *SecureChannel) handleMessageChunk(chunk uacp.ChunkType, body []byte, acc *chunkAssembly) {
	if chunk == uacp.ChunkTypeAbort {
		acc.reset()
		return
	}

	d := ua.NewDecoder(body, s.ctx)
	_ = d.ReadUint32() // SecureChannelId
	hdr := decodeSymmetricSecurityHeader(d)
	rest := body[len(body)-d.Remaining():]

	s.convMu.RLock()
	conv := s.conv
	s.convMu.RUnlock()
	if conv == nil {
		return
	}

	seq, payload, err := conv.decryptMessage(hdr.TokenID, rest)
	if err != nil {
		debug.Printf("uasc: decrypt MSG/CLO chunk: %v", err)
		acc.reset()
		return
	}
	complete, err := acc.append(chunk, seq.RequestID, payload)
	if err != nil {
		debug.Printf("uasc: reassemble MSG/CLO chunk: %v", err)
		return
	}
	if !complete {
		return
	}
	full := acc.payload
	acc.reset()

	resp, err := ua.DecodeMessage(full, s.ctx)
	if err != nil {
		debug.Printf("uasc: decode MSG response: %v", err)
		return
	}
	s.dispatch(resp)
}

func (s *SecureChannel) dispatch(resp ua.Response) {
	handle := resp.Header().RequestHandle
	s.pendingMu.Lock()
	pr, ok := s.pending[handle]
	if ok {
		delete(s.pending, handle)
	}
	s.pendingMu.Unlock()
	if !ok {
		debug.Printf("uasc: response for unknown request handle %d", handle)
		return
	}
	if sr := resp.Header().ServiceResult; sr != ua.StatusOK {
		pr.err = sr
		close(pr.done)
		return
	}
	pr.err = pr.handler(resp)
	close(pr.done)
}

// fail aborts every outstanding operation, faults the lifecycle and
// surfaces err to the caller's reconnection monitor.
func (s *SecureChannel) fail(err error) {
	s.pendingMu.Lock()
	for h, pr := range s.pending {
		pr.err = err
		close(pr.done)
		delete(s.pending, h)
	}
	s.pendingMu.Unlock()

	s.openMu.Lock()
	if s.openWait != nil {
		select {
		case s.openWait <- openResult{err: err}:
		default:
		}
	}
	s.openMu.Unlock()

	if s.life != nil {
		s.life.Fault(err)
	}
	s.propagateFault(err)
}

func (s *SecureChannel) propagateFault(err error) {
	if s.errCh == nil {
		return
	}
	select {
	case s.errCh <- err:
	default:
	}
}
