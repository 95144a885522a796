// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package uapolicy

import "crypto/rand"

// Nonce returns length cryptographically random bytes, or nil if length is
// 0 (the None policy exchanges empty nonces, §4.2 "get_next_nonce").
func Nonce(length int) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
