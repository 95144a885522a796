// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package errors provides the error helpers used throughout the client for
// anything that is not an OPC UA status code. Protocol-level failures are
// represented by ua.StatusCode, which implements error on its own; this
// package is for configuration mistakes, invariant violations and other
// internal errors that never reach the wire.
package errors

import "github.com/pkg/errors"

// Errorf formats according to a format specifier and returns the string as
// an error, with a stack trace attached.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Wrap annotates err with a message. If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with the format specifier. If err is nil, Wrapf
// returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New returns an error with the supplied message and a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Cause returns the underlying cause of err, if possible.
func Cause(err error) error {
	return errors.Cause(err)
}
