// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uasc

import (
	"crypto/rsa"
	"crypto/x509"

	"github.com/opcgo/opcua/errors"
	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uapolicy"
)

// VerifySessionSignature checks the ServerSignature a CreateSessionResponse
// carries: the server must have signed localCertificate||clientNonce with
// the private key matching serverCert (§4.5 "server-signature
// verification").
func (s *SecureChannel) VerifySessionSignature(serverCert, clientNonce, signature []byte) error {
	s.convMu.RLock()
	conv := s.conv
	s.convMu.RUnlock()
	if conv == nil {
		return ua.StatusBadServerNotConnected
	}
	if conv.mode == ua.MessageSecurityModeNone {
		return nil
	}
	pub, err := rsaPublicKey(serverCert)
	if err != nil {
		return err
	}
	data := append(append([]byte{}, s.cfg.Certificate...), clientNonce...)
	return conv.policy.AsymmetricVerify(pub, data, signature)
}

// NewSessionSignature builds the ClientSignature sent with
// ActivateSessionRequest: a signature over serverCertificate||serverNonce
// using the client's own private key (§4.5 "construction of a
// ClientSignature").
func (s *SecureChannel) NewSessionSignature(serverCert, serverNonce []byte) ([]byte, string, error) {
	s.convMu.RLock()
	conv := s.conv
	s.convMu.RUnlock()
	if conv == nil {
		return nil, "", ua.StatusBadServerNotConnected
	}
	if conv.mode == ua.MessageSecurityModeNone || s.cfg.LocalKey == nil {
		return nil, "", nil
	}
	data := append(append([]byte{}, serverCert...), serverNonce...)
	sig, err := conv.policy.AsymmetricSign(s.cfg.LocalKey, data)
	if err != nil {
		return nil, "", errors.Wrap(err, "uasc: sign ClientSignature")
	}
	return sig, conv.policy.AsymmetricSignatureURI, nil
}

// NewUserTokenSignature signs serverCertificate||serverNonce for an X509
// identity token, under the security policy the endpoint's
// UserTokenPolicy names (which may differ from the channel's policy).
// policyURI may be empty, in which case the channel's own policy is used.
func (s *SecureChannel) NewUserTokenSignature(policyURI string, serverCert, serverNonce []byte) ([]byte, string, error) {
	policy, err := s.tokenPolicy(policyURI)
	if err != nil {
		return nil, "", err
	}
	if s.cfg.LocalKey == nil {
		return nil, "", errors.New("uasc: no local private key to sign the user token with")
	}
	data := append(append([]byte{}, serverCert...), serverNonce...)
	sig, err := policy.AsymmetricSign(s.cfg.LocalKey, data)
	if err != nil {
		return nil, "", errors.Wrap(err, "uasc: sign user token signature")
	}
	return sig, policy.AsymmetricSignatureURI, nil
}

// EncryptUserPassword RSA-encrypts password||serverNonce (length-prefixed
// as one byte string, Part 4 §5.6.3.2) against the server's public key, for
// a UserNameIdentityToken (§4.5 "UserIdentityToken shaping").
func (s *SecureChannel) EncryptUserPassword(policyURI, password string, serverCert, serverNonce []byte) ([]byte, string, error) {
	policy, err := s.tokenPolicy(policyURI)
	if err != nil {
		return nil, "", err
	}
	if policy.URI == uapolicy.None {
		return []byte(password), "", nil
	}
	pub, err := rsaPublicKey(serverCert)
	if err != nil {
		return nil, "", err
	}
	e := ua.NewEncoder(s.ctx)
	e.WriteByteString(append(append([]byte{}, password...), serverNonce...))
	blockSize := policy.PlaintextBlockSize(pub)
	enc, err := uapolicy.EncryptBlocks(pub, e.Bytes(), blockSize, policy.AsymmetricEncrypt)
	if err != nil {
		return nil, "", errors.Wrap(err, "uasc: encrypt user password")
	}
	return enc, policy.AsymmetricEncryptionURI, nil
}

// tokenPolicy resolves the security policy an identity token should be
// protected with: the endpoint-advertised UserTokenPolicy URI if given,
// otherwise the channel's own policy.
func (s *SecureChannel) tokenPolicy(policyURI string) (*uapolicy.Policy, error) {
	if policyURI == "" {
		s.convMu.RLock()
		conv := s.conv
		s.convMu.RUnlock()
		if conv == nil {
			return nil, ua.StatusBadServerNotConnected
		}
		return conv.policy, nil
	}
	return uapolicy.ByURI(policyURI)
}

func rsaPublicKey(cert []byte) (*rsa.PublicKey, error) {
	crt, err := x509.ParseCertificate(cert)
	if err != nil {
		return nil, errors.Wrap(err, "uasc: parse certificate")
	}
	pub, ok := crt.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("uasc: certificate does not carry an RSA key")
	}
	return pub, nil
}
