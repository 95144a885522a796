// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uacp"
	"github.com/opcgo/opcua/uapolicy"
)

// selfSignedCert returns a DER-encoded self-signed certificate for priv,
// good enough to exercise the RSA public key extraction encryptOpen and
// decryptOpen rely on.
func selfSignedCert(t *testing.T, priv *rsa.PrivateKey) []byte {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatal(err)
	}
	return der
}

// pairedConversations builds two conversation values representing the two
// ends of one secure channel under policy/mode, with nonces and derived
// keys set up so that what one side encrypts, the other can decrypt (§8
// property 4, "round-trip framing").
func pairedConversations(t *testing.T, policyURI string, mode ua.MessageSecurityMode) (local, remote *conversation) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	cert := selfSignedCert(t, priv)

	policy, err := uapolicy.ByURI(policyURI)
	if err != nil {
		t.Fatal(err)
	}

	local = &conversation{policy: policy, mode: mode, localCert: cert, localKey: priv, remoteCert: cert, remoteKey: &priv.PublicKey}
	remote = &conversation{policy: policy, mode: mode, localCert: cert, localKey: priv, remoteCert: cert, remoteKey: &priv.PublicKey}

	nonceLen := policy.NonceLength
	if nonceLen == 0 {
		nonceLen = 32
	}
	localNonce, err := uapolicy.Nonce(nonceLen)
	if err != nil {
		t.Fatal(err)
	}
	remoteNonce, err := uapolicy.Nonce(nonceLen)
	if err != nil {
		t.Fatal(err)
	}

	local.localNonce, local.remoteNonce = localNonce, remoteNonce
	remote.localNonce, remote.remoteNonce = remoteNonce, localNonce
	local.deriveKeys()
	remote.deriveKeys()

	local.channelID, remote.channelID = 7, 7
	tok := &ua.ChannelSecurityToken{ChannelID: 7, TokenID: 1, RevisedLifetime: 60000}
	local.token, remote.token = tok, tok

	return local, remote
}

func testModesAndPolicies() []struct {
	name   string
	policy string
	mode   ua.MessageSecurityMode
} {
	return []struct {
		name   string
		policy string
		mode   ua.MessageSecurityMode
	}{
		{"none", uapolicy.None, ua.MessageSecurityModeNone},
		{"basic128rsa15/sign", uapolicy.Basic128Rsa15, ua.MessageSecurityModeSign},
		{"basic256/signAndEncrypt", uapolicy.Basic256, ua.MessageSecurityModeSignAndEncrypt},
		{"basic256sha256/signAndEncrypt", uapolicy.Basic256Sha256, ua.MessageSecurityModeSignAndEncrypt},
	}
}

// TestMessageRoundTrip is §8 property 4 for MSG/CLO chunks: encryptMessage
// followed by the paired conversation's decryptMessage recovers the
// original payload exactly, across every policy/mode combination the
// channel supports.
func TestMessageRoundTrip(t *testing.T) {
	for _, tc := range testModesAndPolicies() {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			local, remote := pairedConversations(t, tc.policy, tc.mode)
			ctx := ua.DefaultContext()

			payload := []byte("ReadRequest body, pretend encoded bytes follow here")
			frame, err := local.encryptMessage(ctx, 42, payload)
			if err != nil {
				t.Fatalf("encryptMessage: %v", err)
			}

			// Strip SecureChannelId + SymmetricSecurityHeader the way
			// SecureChannel.handleMessageChunk does before handing the
			// rest to decryptMessage.
			d := ua.NewDecoder(frame, ctx)
			d.ReadUint32()
			hdr := decodeSymmetricSecurityHeader(d)
			rest := frame[len(frame)-d.Remaining():]

			seq, got, err := remote.decryptMessage(hdr.TokenID, rest)
			if err != nil {
				t.Fatalf("decryptMessage: %v", err)
			}
			if seq.RequestID != 42 {
				t.Fatalf("RequestID = %d, want 42", seq.RequestID)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch: got %q want %q", got, payload)
			}
		})
	}
}

// TestMessageRoundTripAtBlockBoundary checks that a payload exactly one
// AES block long still round-trips through a single encryptMessage call
// (the max_chunk_size boundary is covered by
// TestEncryptMessageChunksSplitsAndReassembles).
func TestMessageRoundTripAtBlockBoundary(t *testing.T) {
	local, remote := pairedConversations(t, uapolicy.Basic256Sha256, ua.MessageSecurityModeSignAndEncrypt)
	ctx := ua.DefaultContext()

	payload := bytes.Repeat([]byte{0xAB}, 16) // exactly one AES block
	frame, err := local.encryptMessage(ctx, 1, payload)
	if err != nil {
		t.Fatal(err)
	}
	d := ua.NewDecoder(frame, ctx)
	d.ReadUint32()
	hdr := decodeSymmetricSecurityHeader(d)
	rest := frame[len(frame)-d.Remaining():]

	_, got, err := remote.decryptMessage(hdr.TokenID, rest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("boundary round trip mismatch: got %x want %x", got, payload)
	}
}

// TestOpenRoundTrip is §8 property 4 applied to the asymmetric OPN path.
func TestOpenRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		policy string
		mode   ua.MessageSecurityMode
	}{
		{"none", uapolicy.None, ua.MessageSecurityModeNone},
		{"basic256sha256/signAndEncrypt", uapolicy.Basic256Sha256, ua.MessageSecurityModeSignAndEncrypt},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			local, remote := pairedConversations(t, tc.policy, tc.mode)
			ctx := ua.DefaultContext()

			payload := []byte("OpenSecureChannelRequest body")
			frame, err := local.encryptOpen(ctx, 7, 99, payload)
			if err != nil {
				t.Fatalf("encryptOpen: %v", err)
			}

			d := ua.NewDecoder(frame, ctx)
			d.ReadUint32()
			decodeAsymmetricSecurityHeader(d)
			rest := frame[len(frame)-d.Remaining():]

			seq, got, err := remote.decryptOpen(rest)
			if err != nil {
				t.Fatalf("decryptOpen: %v", err)
			}
			if seq.RequestID != 99 {
				t.Fatalf("RequestID = %d, want 99", seq.RequestID)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch: got %q want %q", got, payload)
			}
		})
	}
}

// TestDecryptMessageRejectsTamperedSignature exercises BadSecurityChecksFailed
// territory: a bit flip in transit must not silently decode.
func TestDecryptMessageRejectsTamperedSignature(t *testing.T) {
	local, remote := pairedConversations(t, uapolicy.Basic256, ua.MessageSecurityModeSign)
	ctx := ua.DefaultContext()

	frame, err := local.encryptMessage(ctx, 1, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	frame[len(frame)-1] ^= 0xFF // flip the last signature byte

	d := ua.NewDecoder(frame, ctx)
	d.ReadUint32()
	hdr := decodeSymmetricSecurityHeader(d)
	rest := frame[len(frame)-d.Remaining():]

	if _, _, err := remote.decryptMessage(hdr.TokenID, rest); err == nil {
		t.Fatal("decryptMessage accepted a tampered signature")
	}
}

// TestEncryptMessageChunksSplitsAndReassembles is §8 property 4's chunk
// boundary case for real: a payload well past one maxChunkSize is split
// into Intermediate-then-Final chunks by encryptMessageChunks, and
// decrypting each chunk in order and concatenating the plaintext recovers
// the original payload.
func TestEncryptMessageChunksSplitsAndReassembles(t *testing.T) {
	local, remote := pairedConversations(t, uapolicy.Basic256Sha256, ua.MessageSecurityModeSignAndEncrypt)
	ctx := ua.DefaultContext()

	const maxChunkSize = 256
	payload := bytes.Repeat([]byte("0123456789abcdef"), 40) // 640 bytes, forces multiple chunks

	chunks, err := local.encryptMessageChunks(ctx, 55, payload, maxChunkSize, 0)
	if err != nil {
		t.Fatalf("encryptMessageChunks: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected more than one chunk, got %d", len(chunks))
	}
	for i, c := range chunks {
		if i < len(chunks)-1 && c.chunkType != uacp.ChunkTypeIntermediate {
			t.Fatalf("chunk %d: chunkType = %v, want Intermediate", i, c.chunkType)
		}
	}
	if chunks[len(chunks)-1].chunkType != uacp.ChunkTypeFinal {
		t.Fatal("last chunk is not Final")
	}

	var assembled []byte
	var lastReqID uint32
	for i, c := range chunks {
		d := ua.NewDecoder(c.body, ctx)
		d.ReadUint32()
		hdr := decodeSymmetricSecurityHeader(d)
		rest := c.body[len(c.body)-d.Remaining():]

		seq, got, err := remote.decryptMessage(hdr.TokenID, rest)
		if err != nil {
			t.Fatalf("chunk %d: decryptMessage: %v", i, err)
		}
		if seq.RequestID != 55 {
			t.Fatalf("chunk %d: RequestID = %d, want 55", i, seq.RequestID)
		}
		if i > 0 && seq.RequestID != lastReqID {
			t.Fatalf("chunk %d: RequestID changed mid-message", i)
		}
		lastReqID = seq.RequestID
		assembled = append(assembled, got...)
	}
	if !bytes.Equal(assembled, payload) {
		t.Fatalf("reassembled payload mismatch: got %d bytes, want %d bytes", len(assembled), len(payload))
	}
}

// TestEncryptMessageChunksRejectsOverflow checks the max_chunk_count
// enforcement: a payload that would need more chunks than the negotiated
// ceiling allows is rejected outright rather than silently truncated.
func TestEncryptMessageChunksRejectsOverflow(t *testing.T) {
	local, _ := pairedConversations(t, uapolicy.None, ua.MessageSecurityModeNone)
	ctx := ua.DefaultContext()

	payload := bytes.Repeat([]byte{0x01}, 1000)
	if _, err := local.encryptMessageChunks(ctx, 1, payload, 64, 2); err != ua.StatusBadResponseTooLarge {
		t.Fatalf("err = %v, want BadResponseTooLarge", err)
	}
}

// TestDecryptMessageAcceptsPreviousToken is §8 property 5 / §3's "at most
// two tokens... the immediately prior one accepted on inbound frames
// during overlap": a frame signed with the token that was active before a
// renewal still decrypts correctly against the post-renewal conversation,
// as long as its sequence number is fresh for that token.
func TestDecryptMessageAcceptsPreviousToken(t *testing.T) {
	local, remote := pairedConversations(t, uapolicy.Basic256, ua.MessageSecurityModeSign)

	// local encrypts under the token both sides currently share (token id 1).
	ctx := ua.DefaultContext()
	frame, err := local.encryptMessage(ctx, 1, []byte("pre-renewal request"))
	if err != nil {
		t.Fatal(err)
	}

	// remote now renews: token 1 becomes its previous token, a new token 2
	// becomes active, and the previous token's receive keys/sequence move
	// to the prev slots exactly as SecureChannel.openChannel does on renew.
	remote.prevToken = remote.token
	remote.prevRemoteKeys = remote.remoteKeys
	remote.recvSeqPrev = remote.recvSeqActive
	remote.token = &ua.ChannelSecurityToken{ChannelID: remote.channelID, TokenID: 2, RevisedLifetime: 60000}

	d := ua.NewDecoder(frame, ctx)
	d.ReadUint32()
	hdr := decodeSymmetricSecurityHeader(d)
	rest := frame[len(frame)-d.Remaining():]

	if hdr.TokenID != 1 {
		t.Fatalf("test setup: frame TokenID = %d, want 1", hdr.TokenID)
	}
	_, got, err := remote.decryptMessage(hdr.TokenID, rest)
	if err != nil {
		t.Fatalf("decryptMessage with previous token: %v", err)
	}
	if string(got) != "pre-renewal request" {
		t.Fatalf("payload mismatch: got %q", got)
	}
}

// TestDecryptMessageRejectsUnknownToken checks that a token id that is
// neither active nor the immediately-prior one is rejected rather than
// silently accepted.
func TestDecryptMessageRejectsUnknownToken(t *testing.T) {
	_, remote := pairedConversations(t, uapolicy.None, ua.MessageSecurityModeNone)

	if _, _, err := remote.decryptMessage(999, []byte{0, 0, 0, 0, 0, 0, 0, 0}); err != ua.StatusBadSecureChannelTokenUnknown {
		t.Fatalf("err = %v, want BadSecureChannelTokenUnknown", err)
	}
}

// TestDecryptMessageRejectsNonIncreasingSequence checks the per-token
// monotonic sequence enforcement §3 requires: replaying an already-seen
// sequence number under the same token must be rejected.
func TestDecryptMessageRejectsNonIncreasingSequence(t *testing.T) {
	local, remote := pairedConversations(t, uapolicy.None, ua.MessageSecurityModeNone)
	ctx := ua.DefaultContext()

	encode := func(reqID uint32) (uint32, []byte) {
		frame, err := local.encryptMessage(ctx, reqID, []byte("x"))
		if err != nil {
			t.Fatal(err)
		}
		d := ua.NewDecoder(frame, ctx)
		d.ReadUint32()
		hdr := decodeSymmetricSecurityHeader(d)
		return hdr.TokenID, frame[len(frame)-d.Remaining():]
	}

	tok, rest := encode(1)
	if _, _, err := remote.decryptMessage(tok, rest); err != nil {
		t.Fatalf("first decrypt: %v", err)
	}

	// Reset local's sequence counter to replay the same sequence number
	// under the same token; remote must reject it as non-increasing.
	local.sendSequenceNumber--
	tok, rest = encode(2)
	if _, _, err := remote.decryptMessage(tok, rest); err == nil {
		t.Fatal("decryptMessage accepted a replayed sequence number")
	}
}

func TestSequenceNumbersIncreaseMonotonically(t *testing.T) {
	local, _ := pairedConversations(t, uapolicy.None, ua.MessageSecurityModeNone)
	ctx := ua.DefaultContext()

	var last uint32
	for i := 0; i < 5; i++ {
		frame, err := local.encryptMessage(ctx, uint32(i+1), []byte("x"))
		if err != nil {
			t.Fatal(err)
		}
		d := ua.NewDecoder(frame, ctx)
		d.ReadUint32()
		decodeSymmetricSecurityHeader(d)
		seq := decodeSequenceHeader(d)
		if i > 0 && seq.SequenceNumber <= last {
			t.Fatalf("sequence number did not increase: %d after %d", seq.SequenceNumber, last)
		}
		last = seq.SequenceNumber
	}
}
