// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package certstore implements the default CertificateStore collaborator
// named in §6: loading the local application instance certificate/private
// key pair, and validating a server certificate presented in an endpoint
// description. The store's contract is intentionally small — the
// specification treats it as an external collaborator.
package certstore

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"

	"golang.org/x/crypto/pkcs12"

	"github.com/opcgo/opcua/errors"
	"github.com/opcgo/opcua/ua"
)

// Store loads and validates X.509 certificates for the secure channel.
type Store interface {
	// LocalPair returns the client's own certificate (DER) and private
	// key, or a zero-value pair for the None policy which needs neither.
	LocalPair() (cert []byte, key *rsa.PrivateKey, err error)

	// Validate checks a server certificate received in an
	// EndpointDescription or CreateSessionResponse against the endpoint
	// the client dialed.
	Validate(serverCert []byte, endpoint *ua.EndpointDescription) error
}

// memStore is the default Store: a certificate/key pair held in memory,
// loaded once at construction time.
type memStore struct {
	cert []byte
	key  *rsa.PrivateKey
}

// FromPEM loads a client certificate and private key from PEM-encoded
// bytes, the common case for a certificate generated by a local CA or a
// tool like openssl.
func FromPEM(certPEM, keyPEM []byte) (Store, error) {
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "certstore: parse PEM key pair")
	}
	key, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("certstore: only RSA private keys are supported, got %T", tlsCert.PrivateKey)
	}
	if len(tlsCert.Certificate) == 0 {
		return nil, errors.New("certstore: no certificate found in PEM bundle")
	}
	return &memStore{cert: tlsCert.Certificate[0], key: key}, nil
}

// FromPKCS12 loads a client certificate and private key from a PFX/PKCS#12
// bundle, the form many OPC UA server vendors and configuration tools ship
// application instance certificates in.
func FromPKCS12(data []byte, password string) (Store, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, errors.Wrap(err, "certstore: decode pkcs#12 bundle")
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.Errorf("certstore: only RSA private keys are supported, got %T", key)
	}
	return &memStore{cert: cert.Raw, key: rsaKey}, nil
}

// None returns a Store with no local identity, valid for the None security
// policy which never presents a client certificate.
func None() Store { return &memStore{} }

func (s *memStore) LocalPair() ([]byte, *rsa.PrivateKey, error) {
	return s.cert, s.key, nil
}

func (s *memStore) Validate(serverCert []byte, endpoint *ua.EndpointDescription) error {
	if len(serverCert) == 0 {
		if endpoint.SecurityMode == ua.MessageSecurityModeNone {
			return nil
		}
		return errors.New("certstore: endpoint requires a server certificate but none was presented")
	}
	if endpoint != nil && len(endpoint.ServerCertificate) > 0 {
		if string(serverCert) != string(endpoint.ServerCertificate) {
			return ua.StatusBadCertificateInvalid
		}
	}
	if _, err := x509.ParseCertificate(serverCert); err != nil {
		return errors.Wrap(err, "certstore: parse server certificate")
	}
	return nil
}
