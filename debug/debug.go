// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package debug implements a minimal, gated logger for the client. It is
// intentionally not a structured logging library: the teacher codebase this
// repo is built from never reaches for one at this layer either.
package debug

import "log"

// Enable turns on debug logging. It defaults to false and is normally wired
// to a -debug flag by the caller.
var Enable bool

// Printf writes a debug log line if Enable is true.
func Printf(format string, args ...interface{}) {
	if !Enable {
		return
	}
	log.Printf(format, args...)
}
