// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"

	"github.com/opcgo/opcua/errors"
	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uacp"
	"github.com/opcgo/opcua/uapolicy"
)

// conversation is the Conversation of §2: the secure channel's
// cryptographic state. It owns the channel id, the active and previous
// SecurityTokens, the nonces they were derived from, the derived key
// material for each direction, and the chunk sequence counters. A
// conversation is rebuilt on every OpenSecureChannel, Issue or Renew; a
// Renew carries the channel id and server key over from the old one and
// keeps its token and receive keys as the previous token.
type conversation struct {
	policy *uapolicy.Policy
	mode   ua.MessageSecurityMode

	channelID uint32

	token     *ua.ChannelSecurityToken
	prevToken *ua.ChannelSecurityToken

	localNonce, remoteNonce []byte
	localKeys, remoteKeys   uapolicy.DerivedKeys

	// prevRemoteKeys are the receive-direction keys of prevToken, kept so
	// inbound frames the server signed before it saw our renewal land are
	// still verifiable during the overlap window (§3 "at most two
	// tokens... the immediately prior one accepted on inbound frames").
	prevRemoteKeys uapolicy.DerivedKeys

	localCert, remoteCert []byte
	localKey              *rsa.PrivateKey
	remoteKey              *rsa.PublicKey

	sendSequenceNumber uint32
	sendRequestID      uint32

	// recvSeqActive/recvSeqPrev are the highest SequenceNumber accepted so
	// far under the active/previous token, enforcing §3's "sequence
	// numbers are strictly increasing within a token" per token bucket.
	recvSeqActive uint32
	recvSeqPrev   uint32
}

func newConversation(cfg *Config) (*conversation, error) {
	policy, err := uapolicy.ByURI(cfg.SecurityPolicyURI)
	if err != nil {
		return nil, err
	}
	c := &conversation{
		policy:     policy,
		mode:       cfg.SecurityMode,
		localCert:  cfg.Certificate,
		localKey:   cfg.LocalKey,
		remoteCert: cfg.ServerCertificate,
	}
	if len(cfg.ServerCertificate) > 0 {
		crt, err := x509.ParseCertificate(cfg.ServerCertificate)
		if err != nil {
			return nil, errors.Wrap(err, "uasc: parse server certificate")
		}
		pub, ok := crt.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("uasc: server certificate does not carry an RSA key")
		}
		c.remoteKey = pub
	}
	return c, nil
}

// deriveKeys computes the symmetric key material for both directions from
// the current local/remote nonce pair (§4.2, Part 6 §6.7.5): the keys we
// use to protect what we send are derived with our peer's nonce as the
// secret and our own nonce as the seed; the keys we use to validate what we
// receive use the opposite assignment.
func (c *conversation) deriveKeys() {
	if c.policy.SymKeyLength == 0 {
		return
	}
	c.localKeys = c.policy.DeriveKeys(c.remoteNonce, c.localNonce)
	c.remoteKeys = c.policy.DeriveKeys(c.localNonce, c.remoteNonce)
}

func (c *conversation) nextSequenceHeader(requestID uint32) sequenceHeader {
	c.sendSequenceNumber++
	return sequenceHeader{SequenceNumber: c.sendSequenceNumber, RequestID: requestID}
}

// encryptOpen builds the body of one OPN chunk: SecureChannelId,
// AsymmetricAlgorithmSecurityHeader, SequenceHeader, the request/response
// bytes, padded with pkcs7Pad to the RSA plaintext block size and signed,
// then RSA-encrypted block by block when the mode calls for it (§4.2
// "asymmetric open").
func (c *conversation) encryptOpen(ctx *ua.Context, channelID, requestID uint32, message []byte) ([]byte, error) {
	e := ua.NewEncoder(ctx)
	e.WriteUint32(channelID)

	thumbprint := []byte(nil)
	if len(c.remoteCert) > 0 {
		sum := sha1.Sum(c.remoteCert)
		thumbprint = sum[:]
	}
	hdr := asymmetricSecurityHeader{
		SecurityPolicyURI:             c.policy.URI,
		SenderCertificate:             c.localCert,
		ReceiverCertificateThumbprint: thumbprint,
	}
	hdr.encode(e)

	seq := c.nextSequenceHeader(requestID)
	seq.encode(e)
	e.WriteBytes(message)

	body := e.Bytes()
	// split header-prefix (SecureChannelId+security header+sequence
	// header) from the part that gets signed/encrypted: everything from
	// the sequence header onward.
	signedFrom := len(body) - len(message) - 8 // 8 = sequenceHeader width

	plain := body[signedFrom:]
	secured, err := c.secureAsymmetric(plain)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, body[:signedFrom]...), secured...), nil
}

func (c *conversation) secureAsymmetric(plain []byte) ([]byte, error) {
	if c.mode == ua.MessageSecurityModeNone {
		return plain, nil
	}
	blockSize := c.policy.PlaintextBlockSize(&c.localKey.PublicKey)
	padded := pkcs7Pad(plain, blockSize)

	sig, err := c.policy.AsymmetricSign(c.localKey, padded)
	if err != nil {
		return nil, errors.Wrap(err, "uasc: sign OPN chunk")
	}
	signed := append(padded, sig...)

	if c.mode != ua.MessageSecurityModeSignAndEncrypt {
		return signed, nil
	}
	if c.remoteKey == nil {
		return nil, errors.New("uasc: no server certificate to encrypt OPN chunk against")
	}
	encBlockSize := c.policy.PlaintextBlockSize(c.remoteKey)
	return uapolicy.EncryptBlocks(c.remoteKey, signed, encBlockSize, c.policy.AsymmetricEncrypt)
}

// decryptOpen reverses encryptOpen on an inbound OPN chunk whose
// SecureChannelId and security header have already been stripped by the
// caller; sequenceBody is the sequence header plus the (possibly signed,
// possibly encrypted) message.
func (c *conversation) decryptOpen(sequenceBody []byte) (sequenceHeader, []byte, error) {
	plain := sequenceBody
	if c.mode == ua.MessageSecurityModeSignAndEncrypt {
		blockSize := c.policy.CipherTextBlockSize(&c.localKey.PublicKey)
		if len(plain)%blockSize != 0 {
			return sequenceHeader{}, nil, errors.New("uasc: OPN ciphertext is not block aligned")
		}
		var out []byte
		for len(plain) > 0 {
			block := plain[:blockSize]
			db, err := c.policy.AsymmetricDecrypt(c.localKey, block)
			if err != nil {
				return sequenceHeader{}, nil, errors.Wrap(err, "uasc: decrypt OPN chunk")
			}
			out = append(out, db...)
			plain = plain[blockSize:]
		}
		plain = out
	}
	if c.mode != ua.MessageSecurityModeNone && c.remoteKey != nil {
		sigLen := c.remoteKey.Size()
		if len(plain) < sigLen {
			return sequenceHeader{}, nil, errors.New("uasc: OPN chunk shorter than its signature")
		}
		data, sig := plain[:len(plain)-sigLen], plain[len(plain)-sigLen:]
		if err := c.policy.AsymmetricVerify(c.remoteKey, data, sig); err != nil {
			return sequenceHeader{}, nil, err
		}
		plain = data
		unpadded, err := pkcs7Unpad(plain, c.policy.CipherTextBlockSize(&c.localKey.PublicKey))
		if err == nil {
			plain = unpadded
		}
	}

	d := ua.NewDecoder(plain, ua.DefaultContext())
	seq := decodeSequenceHeader(d)
	return seq, plain[8:], nil
}

// encryptMessage builds the body of one symmetric MSG/CLO chunk: the
// SecureChannelId, SymmetricAlgorithmSecurityHeader, SequenceHeader and the
// message bytes, padded, signed with HMAC and AES-CBC encrypted as the
// security mode requires (§4.2 "symmetric encrypt/sign").
func (c *conversation) encryptMessage(ctx *ua.Context, requestID uint32, message []byte) ([]byte, error) {
	e := ua.NewEncoder(ctx)
	e.WriteUint32(c.channelID)
	(&symmetricSecurityHeader{TokenID: c.token.TokenID}).encode(e)

	seq := c.nextSequenceHeader(requestID)
	seq.encode(e)
	e.WriteBytes(message)

	prefixLen := e.Len() - 8 - len(message)
	body := e.Bytes()
	plain := body[prefixLen:]

	secured, err := c.secureSymmetric(plain)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, body[:prefixLen]...), secured...), nil
}

// messageChunk is one wire-ready MSG/CLO chunk and the marker it must be
// sent with.
type messageChunk struct {
	chunkType uacp.ChunkType
	body      []byte
}

// maxPlainPerChunk returns the largest slice of an encoded message that
// safely fits in one wire chunk no larger than maxChunkSize, after
// reserving room for the uacp transport header, the SC/security/sequence
// headers and, worst case, a full block of PKCS#7 padding plus the
// signature (§4.2 "chunk the body according to the negotiated
// max_chunk_size").
func (c *conversation) maxPlainPerChunk(maxChunkSize uint32) int {
	const tcpHeader = 8 // 4-byte type + 4-byte length
	const scHeader = 4  // SecureChannelId
	const symHeader = 4 // TokenID
	const seqHeader = 8 // SequenceNumber + RequestID
	overhead := tcpHeader + scHeader + symHeader + seqHeader
	if c.mode != ua.MessageSecurityModeNone {
		overhead += c.policy.SymBlockSize + c.policy.SymSigLength
	}
	n := int(maxChunkSize) - overhead
	if n < 1 {
		n = 1
	}
	return n
}

// encryptMessageChunks splits message across as many symmetric MSG/CLO
// chunks as needed to keep every chunk at or under maxChunkSize bytes on
// the wire, failing if that would take more than maxChunkCount chunks
// (§4.2, §9 "chunk the body... max_chunk_size and max_chunk_count"). Every
// chunk but the last is marked Intermediate; the last is Final. Each chunk
// gets its own sequence number (via encryptMessage) but shares requestID,
// which the receiver uses to confirm the chunks belong to the same
// logical message.
func (c *conversation) encryptMessageChunks(ctx *ua.Context, requestID uint32, message []byte, maxChunkSize, maxChunkCount uint32) ([]messageChunk, error) {
	plainPerChunk := c.maxPlainPerChunk(maxChunkSize)
	n := (len(message) + plainPerChunk - 1) / plainPerChunk
	if n == 0 {
		n = 1
	}
	if maxChunkCount > 0 && uint32(n) > maxChunkCount {
		return nil, ua.StatusBadResponseTooLarge
	}
	chunks := make([]messageChunk, 0, n)
	for i := 0; i < n; i++ {
		start := i * plainPerChunk
		end := start + plainPerChunk
		if end > len(message) {
			end = len(message)
		}
		body, err := c.encryptMessage(ctx, requestID, message[start:end])
		if err != nil {
			return nil, err
		}
		ct := uacp.ChunkTypeIntermediate
		if i == n-1 {
			ct = uacp.ChunkTypeFinal
		}
		chunks = append(chunks, messageChunk{chunkType: ct, body: body})
	}
	return chunks, nil
}

func (c *conversation) secureSymmetric(plain []byte) ([]byte, error) {
	if c.mode == ua.MessageSecurityModeNone {
		return plain, nil
	}
	padded := pkcs7Pad(plain, c.policy.SymBlockSize)
	if c.mode == ua.MessageSecurityModeSignAndEncrypt {
		// the signature is encrypted along with the padded body, so the
		// padding brings body+padding+signature to a block multiple.
		bs := c.policy.SymBlockSize
		padSize := bs - (len(plain)+c.policy.SymSigLength)%bs
		padded = append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(padSize)}, padSize)...)
	}
	sig := c.policy.SymmetricSign(c.localKeys.SigningKey, padded)
	signed := append(padded, sig...)
	if c.mode != ua.MessageSecurityModeSignAndEncrypt {
		return signed, nil
	}
	return c.policy.SymmetricEncrypt(c.localKeys.EncryptionKey, c.localKeys.IV, signed)
}

// keysForToken resolves the receive-direction keys and last-seen sequence
// number for tokenID, which must be either the active token or the one
// immediately prior to it (§3 invariant, §9 Open Question 1): the
// conversation accepts inbound frames signed with either during a renewal
// overlap.
func (c *conversation) keysForToken(tokenID uint32) (uapolicy.DerivedKeys, uint32, error) {
	if c.token != nil && tokenID == c.token.TokenID {
		return c.remoteKeys, c.recvSeqActive, nil
	}
	if c.prevToken != nil && tokenID == c.prevToken.TokenID {
		return c.prevRemoteKeys, c.recvSeqPrev, nil
	}
	return uapolicy.DerivedKeys{}, 0, ua.StatusBadSecureChannelTokenUnknown
}

func (c *conversation) recordRecvSeq(tokenID, seq uint32) {
	if c.token != nil && tokenID == c.token.TokenID {
		c.recvSeqActive = seq
		return
	}
	if c.prevToken != nil && tokenID == c.prevToken.TokenID {
		c.recvSeqPrev = seq
	}
}

// decryptMessage reverses encryptMessage on an inbound MSG/CLO chunk whose
// SecureChannelId and security header have already been parsed by the
// caller; tokenID is the TokenID carried by that security header, used to
// pick between the active and previous token's keys and to track that
// token's sequence numbers (§3 "sequence numbers are strictly increasing
// within a token").
func (c *conversation) decryptMessage(tokenID uint32, sequenceBody []byte) (sequenceHeader, []byte, error) {
	keys, lastSeq, err := c.keysForToken(tokenID)
	if err != nil {
		return sequenceHeader{}, nil, err
	}

	plain := sequenceBody
	if c.mode == ua.MessageSecurityModeSignAndEncrypt {
		plain, err = c.policy.SymmetricDecrypt(keys.EncryptionKey, keys.IV, plain)
		if err != nil {
			return sequenceHeader{}, nil, err
		}
	}
	if c.mode != ua.MessageSecurityModeNone {
		sigLen := c.policy.SymSigLength
		if len(plain) < sigLen {
			return sequenceHeader{}, nil, errors.New("uasc: MSG chunk shorter than its signature")
		}
		data, sig := plain[:len(plain)-sigLen], plain[len(plain)-sigLen:]
		if err := c.policy.SymmetricVerify(keys.SigningKey, data, sig); err != nil {
			return sequenceHeader{}, nil, err
		}
		unpadded, uerr := pkcs7Unpad(data, c.policy.SymBlockSize)
		if uerr == nil {
			plain = unpadded
		} else {
			plain = data
		}
	}
	d := ua.NewDecoder(plain, ua.DefaultContext())
	seq := decodeSequenceHeader(d)
	if lastSeq != 0 && seq.SequenceNumber <= lastSeq {
		return sequenceHeader{}, nil, errors.New("uasc: sequence number did not increase")
	}
	c.recordRecvSeq(tokenID, seq.SequenceNumber)
	return seq, plain[8:], nil
}

// pkcs7Pad appends standard PKCS#7 padding so len(result) is a multiple of
// blockSize; the padding bytes all equal the number of bytes added,
// including the case where a full extra block of padding is needed.
func pkcs7Pad(data []byte, blockSize int) []byte {
	if blockSize <= 1 {
		return data
	}
	padSize := blockSize - (len(data) % blockSize)
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padSize)}, padSize)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || blockSize <= 1 {
		return data, nil
	}
	padSize := int(data[len(data)-1])
	if padSize <= 0 || padSize > len(data) {
		return nil, errors.New("uasc: invalid padding")
	}
	return data[:len(data)-padSize], nil
}
