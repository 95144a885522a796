// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uapolicy

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"

	"github.com/opcgo/opcua/errors"
)

func encryptPKCS1v15(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
}

func decryptPKCS1v15(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, priv, ciphertext)
}

func encryptOAEPSHA1(pub *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, plaintext, nil)
}

func decryptOAEPSHA1(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha1.New(), rand.Reader, priv, ciphertext, nil)
}

func signPKCS1v15SHA1(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	h := sha1.Sum(data)
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA1, h[:])
}

func verifyPKCS1v15SHA1(pub *rsa.PublicKey, data, sig []byte) error {
	h := sha1.Sum(data)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, h[:], sig); err != nil {
		return errors.Wrap(err, "uapolicy: signature verification failed")
	}
	return nil
}

func signPKCS1v15SHA256(priv *rsa.PrivateKey, data []byte) ([]byte, error) {
	h := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, h[:])
}

func verifyPKCS1v15SHA256(pub *rsa.PublicKey, data, sig []byte) error {
	h := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
		return errors.Wrap(err, "uapolicy: signature verification failed")
	}
	return nil
}

// plaintextBlockSizePKCS1v15 returns the maximum plaintext size per RSA
// block under PKCS#1 v1.5 padding: key size minus 11 bytes of padding
// overhead (Part 6 §6.1).
func plaintextBlockSizePKCS1v15(pub *rsa.PublicKey) int {
	return pub.Size() - 11
}

// plaintextBlockSizeOAEPSHA1 returns the maximum plaintext size per RSA
// block under OAEP padding with a SHA-1 hash: key size minus 2*hashLen - 2.
func plaintextBlockSizeOAEPSHA1(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha1.Size - 2
}

// cipherTextBlockSize is always the RSA key size in bytes, regardless of
// padding scheme.
func cipherTextBlockSize(pub *rsa.PublicKey) int {
	return pub.Size()
}

// EncryptBlocks splits plaintext into blocks sized by blockSize and
// encrypts each with encrypt, concatenating the ciphertext blocks. This is
// how §4.5 encrypts a password that may be longer than one RSA block once
// the nonce is appended.
func EncryptBlocks(pub *rsa.PublicKey, plaintext []byte, blockSize int, encrypt func(*rsa.PublicKey, []byte) ([]byte, error)) ([]byte, error) {
	var out []byte
	for len(plaintext) > 0 {
		n := blockSize
		if n > len(plaintext) {
			n = len(plaintext)
		}
		block, err := encrypt(pub, plaintext[:n])
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
		plaintext = plaintext[n:]
	}
	return out, nil
}
