// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package uasc implements the Conversation and the Client Secure Channel +
// Session components of §2: the secure-channel cryptographic engine (OPN/MSG/CLO
// framing, sequence numbers, token rotation, symmetric and asymmetric crypto)
// layered on top of uacp, plus the request dispatcher that turns it into a
// request/response API.
package uasc

import (
	"crypto/rsa"
	"time"

	"github.com/opcgo/opcua/certstore"
	"github.com/opcgo/opcua/ua"
)

// Default values for Config/SessionConfig, mirrored from the teacher's
// client-side defaults.
const (
	DefaultLifetime       = 60 * time.Minute
	DefaultRequestTimeout = 5 * time.Second
	DefaultSessionTimeout = 20 * time.Minute
)

// Config is the secure channel's static configuration (§4.2): which
// security policy/mode to run, the local application identity, and the
// certificate collaborator (§6 "CertificateStore").
type Config struct {
	SecurityPolicyURI string
	SecurityMode      ua.MessageSecurityMode

	// Certificate and LocalKey are the client's own application instance
	// certificate (DER) and private key. Both are empty for SecurityMode
	// None.
	Certificate []byte
	LocalKey    *rsa.PrivateKey
	Store       certstore.Store

	// ServerCertificate is the certificate of the endpoint being dialed,
	// as selected from an EndpointDescription. Required for every policy
	// other than None.
	ServerCertificate []byte

	ApplicationURI string

	Lifetime       time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns a Config for the None security policy, suitable
// until an Option overrides it.
func DefaultConfig() *Config {
	return &Config{
		SecurityMode:   ua.MessageSecurityModeNone,
		Store:          certstore.None(),
		Lifetime:       DefaultLifetime,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// SessionConfig is the per-session configuration: the client's self
// description, locale preference and chosen user identity (§4.5).
type SessionConfig struct {
	SessionName       string
	ClientDescription *ua.ApplicationDescription
	LocaleIDs         []string
	SessionTimeout    time.Duration

	UserIdentityToken  ua.UserIdentityToken
	UserTokenSignature *ua.SignatureData

	// AuthPolicyURI/AuthPassword carry the UserName identity's security
	// policy and cleartext password until ActivateSession encrypts it.
	AuthPolicyURI string
	AuthPassword  string
}

// DefaultSessionConfig returns a SessionConfig with no identity token set;
// the caller (or Client.CreateSession, per the teacher's convention) fills
// in Anonymous if nothing else was configured.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ClientDescription: &ua.ApplicationDescription{
			ApplicationName: &ua.LocalizedText{Text: "opcgo"},
			ApplicationType: 1, // Client
		},
		SessionTimeout: DefaultSessionTimeout,
	}
}
