// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uapolicy"
)

// newTestChannel returns a SecureChannel whose conversation and cfg are
// wired up enough to exercise the session-layer signature/encryption
// helpers without a real transport connection, mirroring newBareChannel in
// secure_channel_test.go.
func newTestChannel(t *testing.T, policyURI string, mode ua.MessageSecurityMode) (*SecureChannel, *rsa.PrivateKey, []byte) {
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
	conv := &conversation{policy: policy, mode: mode, localCert: cert, localKey: priv, remoteCert: cert, remoteKey: &priv.PublicKey}

	s := &SecureChannel{
		ctx: ua.DefaultContext(),
		cfg: &Config{Certificate: cert, LocalKey: priv, SecurityPolicyURI: policyURI, SecurityMode: mode},
	}
	s.conv = conv
	return s, priv, cert
}

// TestSessionSignatureRoundTrip is §8 scenario d: a ClientSignature built
// by NewSessionSignature must verify against the data it was built over,
// using the same policy's AsymmetricVerify.
func TestSessionSignatureRoundTrip(t *testing.T) {
	s, priv, cert := newTestChannel(t, uapolicy.Basic256Sha256, ua.MessageSecurityModeSignAndEncrypt)

	serverNonce := []byte("server-nonce-0123456789abcdef01")
	sig, alg, err := s.NewSessionSignature(cert, serverNonce)
	if err != nil {
		t.Fatalf("NewSessionSignature: %v", err)
	}
	if alg == "" {
		t.Fatal("NewSessionSignature returned an empty algorithm URI")
	}

	data := append(append([]byte{}, cert...), serverNonce...)
	if err := s.conv.policy.AsymmetricVerify(&priv.PublicKey, data, sig); err != nil {
		t.Fatalf("signature did not verify: %v", err)
	}
}

func TestSessionSignatureNoneModeIsEmpty(t *testing.T) {
	s, _, cert := newTestChannel(t, uapolicy.None, ua.MessageSecurityModeNone)
	sig, alg, err := s.NewSessionSignature(cert, []byte("nonce"))
	if err != nil {
		t.Fatalf("NewSessionSignature: %v", err)
	}
	if sig != nil || alg != "" {
		t.Fatalf("got sig=%v alg=%q, want empty for MessageSecurityModeNone", sig, alg)
	}
}

// TestVerifySessionSignatureAcceptsGenuineSignature checks the server-side
// of the same exchange: a signature the "server" (here just a second key
// pair signing with the same policy) produced over the client's own
// certificate and nonce must verify via VerifySessionSignature.
func TestVerifySessionSignatureAcceptsGenuineSignature(t *testing.T) {
	s, _, clientCert := newTestChannel(t, uapolicy.Basic256, ua.MessageSecurityModeSign)

	serverPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	serverCert := selfSignedCert(t, serverPriv)
	clientNonce := []byte("client-nonce")

	data := append(append([]byte{}, clientCert...), clientNonce...)
	sig, err := s.conv.policy.AsymmetricSign(serverPriv, data)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.VerifySessionSignature(serverCert, clientNonce, sig); err != nil {
		t.Fatalf("VerifySessionSignature rejected a genuine signature: %v", err)
	}
}

func TestVerifySessionSignatureRejectsTampered(t *testing.T) {
	s, _, clientCert := newTestChannel(t, uapolicy.Basic256, ua.MessageSecurityModeSign)

	serverPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	serverCert := selfSignedCert(t, serverPriv)
	clientNonce := []byte("client-nonce")

	data := append(append([]byte{}, clientCert...), clientNonce...)
	sig, err := s.conv.policy.AsymmetricSign(serverPriv, data)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.VerifySessionSignature(serverCert, []byte("different-nonce"), sig); err == nil {
		t.Fatal("VerifySessionSignature accepted a signature over the wrong nonce")
	}
}

// TestEncryptUserPasswordRoundTrip is §8 scenario d's password path: a
// UserName token's password, RSA-encrypted against the server's public
// key, decrypts back to password||serverNonce.
func TestEncryptUserPasswordRoundTrip(t *testing.T) {
	s, priv, cert := newTestChannel(t, uapolicy.Basic256Sha256, ua.MessageSecurityModeSignAndEncrypt)

	serverNonce := []byte("0123456789abcdef0123456789abcdef")
	enc, alg, err := s.EncryptUserPassword("", "hunter2", cert, serverNonce)
	if err != nil {
		t.Fatalf("EncryptUserPassword: %v", err)
	}
	if alg == "" {
		t.Fatal("EncryptUserPassword returned an empty algorithm URI")
	}

	policy := s.conv.policy
	blockSize := policy.CipherTextBlockSize(&priv.PublicKey)
	if len(enc)%blockSize != 0 {
		t.Fatalf("ciphertext length %d is not a multiple of the RSA block size %d", len(enc), blockSize)
	}
	var plain []byte
	for len(enc) > 0 {
		block := enc[:blockSize]
		dec, err := policy.AsymmetricDecrypt(priv, block)
		if err != nil {
			t.Fatal(err)
		}
		plain = append(plain, dec...)
		enc = enc[blockSize:]
	}

	d := ua.NewDecoder(plain, ua.DefaultContext())
	got := d.ReadByteString()
	if d.Err() != nil {
		t.Fatal(d.Err())
	}
	want := append([]byte("hunter2"), serverNonce...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEncryptUserPasswordNonePolicyIsPlaintext(t *testing.T) {
	s, _, cert := newTestChannel(t, uapolicy.None, ua.MessageSecurityModeNone)
	enc, alg, err := s.EncryptUserPassword(uapolicy.None, "hunter2", cert, nil)
	if err != nil {
		t.Fatal(err)
	}
	if alg != "" {
		t.Fatalf("alg = %q, want empty for the None policy", alg)
	}
	if string(enc) != "hunter2" {
		t.Fatalf("got %q, want the plaintext password unchanged", enc)
	}
}
