// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uapolicy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"

	"github.com/opcgo/opcua/errors"
)

// SymmetricSign returns an HMAC over data using the policy's hash and the
// given signing key (§4.2 symmetric signing of MSG/CLO chunks).
func (p *Policy) SymmetricSign(key, data []byte) []byte {
	m := hmac.New(p.NewHash, key)
	m.Write(data)
	return m.Sum(nil)
}

// SymmetricVerify recomputes the HMAC over data and compares it to sig in
// constant time.
func (p *Policy) SymmetricVerify(key, data, sig []byte) error {
	want := p.SymmetricSign(key, data)
	if !hmac.Equal(want, sig) {
		return errors.New("uapolicy: symmetric signature verification failed")
	}
	return nil
}

// SymmetricEncrypt AES-CBC encrypts plaintext, which must already be
// padded to a multiple of the block size (§4.2: SignAndEncrypt mode).
func (p *Policy) SymmetricEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	if p.SymKeyLength == 0 {
		return plaintext, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "uapolicy: aes.NewCipher")
	}
	if len(plaintext)%block.BlockSize() != 0 {
		return nil, errors.Errorf("uapolicy: plaintext length %d is not a multiple of the block size", len(plaintext))
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out, nil
}

// SymmetricDecrypt is the inverse of SymmetricEncrypt.
func (p *Policy) SymmetricDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if p.SymKeyLength == 0 {
		return ciphertext, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "uapolicy: aes.NewCipher")
	}
	if len(ciphertext)%block.BlockSize() != 0 {
		return nil, errors.Errorf("uapolicy: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}
