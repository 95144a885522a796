// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uapolicy implements the cryptographic algorithm sets the
// specification names in §4.2: None, Basic128Rsa15, Basic256 and
// Basic256Sha256. A Policy bundles the hash, symmetric cipher, asymmetric
// padding and key-derivation function a SecurityPolicy URI selects, so the
// Conversation (uasc package) never branches on the URI itself.
package uapolicy

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"hash"

	"github.com/opcgo/opcua/errors"
)

// URIs for the four policies this package implements.
const (
	None           = "http://opcfoundation.org/UA/SecurityPolicy#None"
	Basic128Rsa15  = "http://opcfoundation.org/UA/SecurityPolicy#Basic128Rsa15"
	Basic256       = "http://opcfoundation.org/UA/SecurityPolicy#Basic256"
	Basic256Sha256 = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
)

// Asymmetric encryption/signature algorithm URIs embedded in the OPN
// security header (§6).
const (
	RSA15Algorithm    = "http://www.w3.org/2001/04/xmlenc#rsa-1_5"
	RSAOAEPAlgorithm  = "http://www.w3.org/2001/04/xmlenc#rsa-oaep"
	RSASHA1Algorithm  = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	RSASHA256Algorithm = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
)

// Policy bundles every algorithm choice a SecurityPolicy URI implies.
type Policy struct {
	URI string

	// NonceLength is the length in bytes of the local/remote nonces
	// exchanged for key derivation (16 or 32, §4.2).
	NonceLength int

	// Symmetric key material sizes.
	SymKeyLength  int // AES key length
	SymBlockSize  int // AES block/IV length, always 16
	SymSigKeyLength int // HMAC key length
	SymSigLength    int // HMAC output length (20 SHA-1, 32 SHA-256)

	NewHash func() hash.Hash

	AsymmetricEncryptionURI string
	AsymmetricSignatureURI  string

	// Asymmetric encrypts/decrypts the password/issued-token plaintext
	// using the remote/local RSA key (§4.5).
	AsymmetricEncrypt func(pub *rsa.PublicKey, plaintext []byte) ([]byte, error)
	AsymmetricDecrypt func(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error)

	// AsymmetricSign/Verify implement the client/server/user-token
	// signatures of §4.5.
	AsymmetricSign   func(priv *rsa.PrivateKey, data []byte) ([]byte, error)
	AsymmetricVerify func(pub *rsa.PublicKey, data, sig []byte) error

	// PlaintextBlockSize is the padded size of one asymmetric encryption
	// block; RSA encryption of a payload larger than this is chunked.
	PlaintextBlockSize func(pub *rsa.PublicKey) int
	CipherTextBlockSize func(pub *rsa.PublicKey) int
}

// ByURI returns the Policy for uri. An empty URI is treated as None.
func ByURI(uri string) (*Policy, error) {
	if uri == "" {
		uri = None
	}
	switch uri {
	case None:
		return nonePolicy(), nil
	case Basic128Rsa15:
		return basic128Rsa15Policy(), nil
	case Basic256:
		return basic256Policy(), nil
	case Basic256Sha256:
		return basic256Sha256Policy(), nil
	default:
		return nil, errors.Errorf("uapolicy: unsupported security policy %q", uri)
	}
}

func nonePolicy() *Policy {
	return &Policy{
		URI:         None,
		NonceLength: 0,
		NewHash:     sha1.New,
	}
}

func basic128Rsa15Policy() *Policy {
	p := rsaPolicy(sha1.New, 16, 20)
	p.NonceLength = 16
	p.URI = Basic128Rsa15
	p.AsymmetricEncryptionURI = RSA15Algorithm
	p.AsymmetricSignatureURI = RSASHA1Algorithm
	p.AsymmetricEncrypt = encryptPKCS1v15
	p.AsymmetricDecrypt = decryptPKCS1v15
	p.AsymmetricSign = signPKCS1v15SHA1
	p.AsymmetricVerify = verifyPKCS1v15SHA1
	p.PlaintextBlockSize = plaintextBlockSizePKCS1v15
	p.CipherTextBlockSize = cipherTextBlockSize
	return p
}

func basic256Policy() *Policy {
	p := rsaPolicy(sha1.New, 32, 20)
	p.URI = Basic256
	p.AsymmetricEncryptionURI = RSAOAEPAlgorithm
	p.AsymmetricSignatureURI = RSASHA1Algorithm
	p.AsymmetricEncrypt = encryptOAEPSHA1
	p.AsymmetricDecrypt = decryptOAEPSHA1
	p.AsymmetricSign = signPKCS1v15SHA1
	p.AsymmetricVerify = verifyPKCS1v15SHA1
	p.PlaintextBlockSize = plaintextBlockSizeOAEPSHA1
	p.CipherTextBlockSize = cipherTextBlockSize
	return p
}

func basic256Sha256Policy() *Policy {
	p := rsaPolicy(sha256.New, 32, 32)
	p.URI = Basic256Sha256
	p.AsymmetricEncryptionURI = RSAOAEPAlgorithm
	p.AsymmetricSignatureURI = RSASHA256Algorithm
	p.AsymmetricEncrypt = encryptOAEPSHA1 // OAEP default hash is SHA-1 per Part 6 Table 27
	p.AsymmetricDecrypt = decryptOAEPSHA1
	p.AsymmetricSign = signPKCS1v15SHA256
	p.AsymmetricVerify = verifyPKCS1v15SHA256
	p.PlaintextBlockSize = plaintextBlockSizeOAEPSHA1
	p.CipherTextBlockSize = cipherTextBlockSize
	return p
}

func rsaPolicy(h func() hash.Hash, symKeyLen, sigKeyLen int) *Policy {
	return &Policy{
		NonceLength:     32,
		SymKeyLength:    symKeyLen,
		SymBlockSize:    16,
		SymSigKeyLength: sigKeyLen,
		SymSigLength:    sigKeyLen,
		NewHash:         h,
	}
}
