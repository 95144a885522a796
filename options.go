// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"crypto/rsa"
	"time"

	"github.com/opcgo/opcua/certstore"
	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uasc"
)

// clientSettings holds the options that configure the Client itself rather
// than the channel or the session.
type clientSettings struct {
	autoReconnect     bool
	reconnectInterval time.Duration
}

func defaultClientSettings() *clientSettings {
	return &clientSettings{autoReconnect: true, reconnectInterval: 5 * time.Second}
}

// Option configures the secure channel, the session, and/or the Client
// itself when building a Client, following the teacher's functional-options
// convention.
type Option func(*uasc.Config, *uasc.SessionConfig, *clientSettings)

// ApplyConfig builds a default Config/SessionConfig/clientSettings triple
// and applies opts in order, so later options override earlier ones.
func ApplyConfig(opts ...Option) (*uasc.Config, *uasc.SessionConfig, *clientSettings) {
	cfg := uasc.DefaultConfig()
	sessionCfg := uasc.DefaultSessionConfig()
	settings := defaultClientSettings()
	for _, opt := range opts {
		opt(cfg, sessionCfg, settings)
	}
	if sessionCfg.UserIdentityToken == nil {
		AuthAnonymous()(cfg, sessionCfg, settings)
	}
	return cfg, sessionCfg, settings
}

// SecurityPolicy selects the SecurityPolicy URI the channel runs, accepting
// either a bare name ("Basic256Sha256") or a full URI.
func SecurityPolicy(policy string) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) {
		cfg.SecurityPolicyURI = ua.FormatSecurityPolicyURI(policy)
	}
}

// SecurityModeOption selects the channel's MessageSecurityMode.
func SecurityModeOption(mode ua.MessageSecurityMode) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.SecurityMode = mode }
}

// PrivateKey sets the client's application instance private key.
func PrivateKey(key *rsa.PrivateKey) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.LocalKey = key }
}

// Certificate sets the client's application instance certificate (DER).
func Certificate(cert []byte) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.Certificate = cert }
}

// CertificateStore overrides the default in-memory certstore.Store.
func CertificateStore(store certstore.Store) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.Store = store }
}

// ServerCertificate sets the certificate of the endpoint being dialed, as
// taken from the EndpointDescription SelectEndpoint returned.
func ServerCertificate(cert []byte) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.ServerCertificate = cert }
}

// ApplicationURI sets the client's ApplicationDescription URI, which must
// match the Subject Alternative Name of Certificate.
func ApplicationURI(uri string) Option {
	return func(cfg *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		cfg.ApplicationURI = uri
		sessionCfg.ClientDescription.ApplicationURI = uri
	}
}

// Lifetime overrides the requested SecureChannel lifetime.
func Lifetime(d time.Duration) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.Lifetime = d }
}

// RequestTimeout overrides the default per-request timeout.
func RequestTimeout(d time.Duration) Option {
	return func(cfg *uasc.Config, _ *uasc.SessionConfig, _ *clientSettings) { cfg.RequestTimeout = d }
}

// AutoReconnect enables or disables the client's reconnection monitor.
func AutoReconnect(b bool) Option {
	return func(_ *uasc.Config, _ *uasc.SessionConfig, settings *clientSettings) {
		settings.autoReconnect = b
	}
}

// ReconnectInterval sets the delay between reconnection attempts while the
// monitor is retrying a lost channel.
func ReconnectInterval(d time.Duration) Option {
	return func(_ *uasc.Config, _ *uasc.SessionConfig, settings *clientSettings) {
		settings.reconnectInterval = d
	}
}

// SessionName overrides the generated session name.
func SessionName(name string) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) { sessionCfg.SessionName = name }
}

// SessionTimeout overrides the requested session timeout.
func SessionTimeout(d time.Duration) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) { sessionCfg.SessionTimeout = d }
}

// LocaleIDs sets the session's preferred locales.
func LocaleIDs(ids []string) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) { sessionCfg.LocaleIDs = ids }
}

// AuthAnonymous configures the Anonymous identity (§4.5), the default when
// no other Auth* option is given.
func AuthAnonymous() Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		sessionCfg.UserIdentityToken = &ua.AnonymousIdentityToken{}
	}
}

// AuthUsername configures the UserName identity. password is encrypted
// in-place by ActivateSession once the server nonce is known.
func AuthUsername(username, password string) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		sessionCfg.UserIdentityToken = &ua.UserNameIdentityToken{UserName: username}
		sessionCfg.AuthPassword = password
	}
}

// AuthCertificate configures the X509 identity using certificate (DER),
// signed with the channel's own private key.
func AuthCertificate(certificate []byte) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		sessionCfg.UserIdentityToken = &ua.X509IdentityToken{CertificateData: certificate}
	}
}

// AuthIssuedToken configures the Issued identity with an opaque token
// obtained out of band (e.g. from a SAML or JWT issuer).
func AuthIssuedToken(tokenData []byte) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		sessionCfg.UserIdentityToken = &ua.IssuedIdentityToken{TokenData: tokenData}
	}
}

// AuthPolicyURI sets the security policy the server's UserTokenPolicy
// names for the current identity, overriding the channel's own policy
// when the two differ.
func AuthPolicyURI(policyURI string) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		sessionCfg.AuthPolicyURI = ua.FormatSecurityPolicyURI(policyURI)
	}
}

// AuthPolicyID sets the PolicyID field of whichever identity token is
// already configured, matching the PolicyID the server's endpoint
// advertised for that identity shape.
func AuthPolicyID(id string) Option {
	return func(_ *uasc.Config, sessionCfg *uasc.SessionConfig, _ *clientSettings) {
		switch tok := sessionCfg.UserIdentityToken.(type) {
		case *ua.AnonymousIdentityToken:
			tok.PolicyID = id
		case *ua.UserNameIdentityToken:
			tok.PolicyID = id
		case *ua.X509IdentityToken:
			tok.PolicyID = id
		case *ua.IssuedIdentityToken:
			tok.PolicyID = id
		}
	}
}

