// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uapolicy

import (
	"crypto/hmac"
	"hash"
)

// PRF implements the P_SHA-1 / P_SHA-256 pseudo-random function of RFC
// 2246 §5 / RFC 4346, which §4.2 calls out as the key derivation function:
// an HMAC-based expansion of a secret over a seed to the requested output
// length.
func PRF(newHash func() hash.Hash, secret, seed []byte, length int) []byte {
	out := make([]byte, 0, length)
	a := hmacSum(newHash, secret, seed)
	for len(out) < length {
		out = append(out, hmacSum(newHash, secret, append(append([]byte{}, a...), seed...))...)
		a = hmacSum(newHash, secret, a)
	}
	return out[:length]
}

func hmacSum(newHash func() hash.Hash, key, data []byte) []byte {
	m := hmac.New(newHash, key)
	m.Write(data)
	return m.Sum(nil)
}

// DerivedKeys are the symmetric key material §3 attributes to a
// Conversation for one direction (local-to-remote or remote-to-local).
type DerivedKeys struct {
	SigningKey    []byte
	EncryptionKey []byte
	IV            []byte
}

// DeriveKeys runs the policy's PRF over secret||seed to produce a signing
// key, an encryption key and an IV, in that order, matching Part 6 §6.2.4's
// key derivation pseudocode. secret is the nonce generated by the peer
// that receives under these keys, not the one that sends under them (i.e.
// to derive the keys the server uses to protect messages sent to us,
// secret is our own nonce it was given); seed is the sending party's
// nonce.
func (p *Policy) DeriveKeys(secret, seed []byte) DerivedKeys {
	total := p.SymSigKeyLength + p.SymKeyLength + p.SymBlockSize
	material := PRF(p.NewHash, secret, seed, total)
	return DerivedKeys{
		SigningKey:    material[:p.SymSigKeyLength],
		EncryptionKey: material[p.SymSigKeyLength : p.SymSigKeyLength+p.SymKeyLength],
		IV:            material[p.SymSigKeyLength+p.SymKeyLength:],
	}
}
