// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package certstore

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/opcgo/opcua/ua"
)

func genPEMPair(t *testing.T) (certPEM, keyPEM []byte, der []byte, priv *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatal(err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	return certPEM, keyPEM, der, priv
}

func TestFromPEMLocalPair(t *testing.T) {
	certPEM, keyPEM, der, priv := genPEMPair(t)

	store, err := FromPEM(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("FromPEM: %v", err)
	}
	cert, key, err := store.LocalPair()
	if err != nil {
		t.Fatalf("LocalPair: %v", err)
	}
	if !bytes.Equal(cert, der) {
		t.Fatal("LocalPair certificate does not match the one loaded")
	}
	if key.D.Cmp(priv.D) != 0 {
		t.Fatal("LocalPair key does not match the one loaded")
	}
}

func TestFromPEMRejectsMismatchedPair(t *testing.T) {
	certPEM, _, _, _ := genPEMPair(t)
	_, otherKeyPEM, _, _ := genPEMPair(t)
	if _, err := FromPEM(certPEM, otherKeyPEM); err == nil {
		t.Fatal("FromPEM accepted a certificate/key pair that don't match")
	}
}

func TestNoneStoreHasNoIdentity(t *testing.T) {
	store := None()
	cert, key, err := store.LocalPair()
	if err != nil {
		t.Fatal(err)
	}
	if cert != nil || key != nil {
		t.Fatal("None() store returned a non-empty identity")
	}
}

func TestValidateAcceptsMatchingCertificate(t *testing.T) {
	_, _, der, _ := genPEMPair(t)
	store := None()
	ep := &ua.EndpointDescription{SecurityMode: ua.MessageSecurityModeSign, ServerCertificate: der}
	if err := store.Validate(der, ep); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsMismatchedCertificate(t *testing.T) {
	_, _, der, _ := genPEMPair(t)
	_, _, otherDER, _ := genPEMPair(t)
	store := None()
	ep := &ua.EndpointDescription{SecurityMode: ua.MessageSecurityModeSign, ServerCertificate: der}
	if err := store.Validate(otherDER, ep); err != ua.StatusBadCertificateInvalid {
		t.Fatalf("Validate = %v, want BadCertificateInvalid", err)
	}
}

func TestValidateRequiresCertificateUnlessModeNone(t *testing.T) {
	store := None()
	ep := &ua.EndpointDescription{SecurityMode: ua.MessageSecurityModeSign}
	if err := store.Validate(nil, ep); err == nil {
		t.Fatal("Validate accepted a missing server certificate for a secured endpoint")
	}

	epNone := &ua.EndpointDescription{SecurityMode: ua.MessageSecurityModeNone}
	if err := store.Validate(nil, epNone); err != nil {
		t.Fatalf("Validate rejected a missing certificate under MessageSecurityModeNone: %v", err)
	}
}
