// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"reflect"
	"sort"
	"sync/atomic"
	"time"

	"github.com/opcgo/opcua/debug"
	"github.com/opcgo/opcua/errors"
	"github.com/opcgo/opcua/ua"
	"github.com/opcgo/opcua/uacp"
	"github.com/opcgo/opcua/uasc"
)

// GetEndpoints returns the available endpoint descriptions for the server.
func GetEndpoints(endpoint string) ([]*ua.EndpointDescription, error) {
	c := NewClient(endpoint, AutoReconnect(false))
	if err := c.Dial(context.Background()); err != nil {
		return nil, err
	}
	defer c.Close()
	res, err := c.GetEndpoints()
	if err != nil {
		return nil, err
	}
	return res.Endpoints, nil
}

// SelectEndpoint returns the endpoint with the highest security level which
// matches security policy and security mode. policy and mode can be omitted
// so that only one of them has to match.
func SelectEndpoint(endpoints []*ua.EndpointDescription, policy string, mode ua.MessageSecurityMode) *ua.EndpointDescription {
	if len(endpoints) == 0 {
		return nil
	}

	sort.Sort(sort.Reverse(bySecurityLevel(endpoints)))
	policy = ua.FormatSecurityPolicyURI(policy)

	// don't care -> return highest security level
	if policy == "" && mode == ua.MessageSecurityModeInvalid {
		return endpoints[0]
	}

	for _, p := range endpoints {
		// match only security mode
		if policy == "" && p.SecurityMode == mode {
			return p
		}

		// match only security policy
		if p.SecurityPolicyURI == policy && mode == ua.MessageSecurityModeInvalid {
			return p
		}

		// match both
		if p.SecurityPolicyURI == policy && p.SecurityMode == mode {
			return p
		}
	}
	return nil
}

type bySecurityLevel []*ua.EndpointDescription

func (a bySecurityLevel) Len() int           { return len(a) }
func (a bySecurityLevel) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a bySecurityLevel) Less(i, j int) bool { return a[i].SecurityLevel < a[j].SecurityLevel }

// ConnState is the client's connection state.
type ConnState uint8

const (
	// Closed, the connection is currently closed.
	Closed ConnState = iota
	// Connected, the connection is currently connected.
	Connected
	// Connecting, the connection is connecting to a server for the first time.
	Connecting
	// Disconnected, the connection is currently disconnected.
	Disconnected
	// Reconnecting, the client is attempting to restore a lost channel.
	Reconnecting
)

// Client is a client for the secure-channel and session layer of an
// OPC UA server (Part 4 §5, Part 6 §4-§7). It owns exactly one transport
// connection, one secure channel and at most one active session; it does
// not implement application services (browse, subscribe, and similar)
// beyond the Read service needed to bring up namespaces.
type Client struct {
	// endpointURL is the endpoint URL the client connects to.
	endpointURL string

	// cfg is the configuration for the secure channel.
	cfg *uasc.Config

	// sessionCfg is the configuration for the session.
	sessionCfg *uasc.SessionConfig

	// settings holds the client-level options (reconnect policy).
	settings *clientSettings

	// conn is the open transport connection.
	conn *uacp.Conn

	// sechan is the open secure channel.
	sechan    *uasc.SecureChannel
	sechanErr chan error

	// session is the active session, or nil.
	session atomic.Value // *Session

	// state of the client.
	state atomic.Value // ConnState

	// monitorDone signals the reconnection monitor to stop.
	monitorDone chan struct{}
}

// NewClient creates a new Client.
//
// When no options are provided the new client is created from
// uasc.DefaultConfig() and uasc.DefaultSessionConfig(). If no
// authentication method is configured, a UserIdentityToken for anonymous
// authentication is set. See Client.CreateSession for details.
//
// To modify configuration provide any number of Options as opts.
func NewClient(endpoint string, opts ...Option) *Client {
	cfg, sessionCfg, settings := ApplyConfig(opts...)
	c := Client{
		endpointURL: endpoint,
		cfg:         cfg,
		sessionCfg:  sessionCfg,
		settings:    settings,
		sechanErr:   make(chan error, 1),
	}
	c.state.Store(Disconnected)
	c.session.Store((*Session)(nil))
	return &c
}

// Connect establishes a secure channel and creates and activates a new
// session. When AutoReconnect is enabled (the default) it also starts the
// background monitor that rebuilds the channel and session after the
// secure channel reports a fault (§5, "fault propagation").
func (c *Client) Connect(ctx context.Context) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.sechan != nil {
		return errors.Errorf("already connected")
	}

	c.state.Store(Connecting)
	if err := c.Dial(ctx); err != nil {
		c.state.Store(Disconnected)
		return err
	}
	s, err := c.CreateSession(c.sessionCfg)
	if err != nil {
		_ = c.Close()
		return err
	}
	if err := c.ActivateSession(s); err != nil {
		_ = c.Close()
		return err
	}
	c.state.Store(Connected)

	if c.settings.autoReconnect {
		c.monitorDone = make(chan struct{})
		go c.monitor(ctx)
	}

	return nil
}

// monitor watches the secure channel's fault channel and, while
// AutoReconnect is enabled, rebuilds the transport connection, channel and
// session after a fault (§5). It makes no attempt to restore
// application-level state beyond the session itself — there is none to
// restore at this layer.
func (c *Client) monitor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.monitorDone:
			return
		case err, ok := <-c.sechanErr:
			if !ok {
				return
			}
			if err == nil {
				continue
			}
			debug.Printf("opcua: secure channel fault: %v", err)
			c.state.Store(Reconnecting)
			if rerr := c.reconnect(ctx); rerr != nil {
				debug.Printf("opcua: reconnect failed: %v", rerr)
				c.state.Store(Disconnected)
				return
			}
			c.state.Store(Connected)
		}
	}
}

// reconnect tears down the failed connection/channel and dials, creates
// and activates a fresh session from scratch.
func (c *Client) reconnect(ctx context.Context) error {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.sechan = nil
	c.conn = nil
	c.session.Store((*Session)(nil))

	backoff := c.settings.reconnectInterval
	for {
		if err := c.Dial(ctx); err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		break
	}
	s, err := c.CreateSession(c.sessionCfg)
	if err != nil {
		return err
	}
	return c.ActivateSession(s)
}

// Dial opens the transport connection and the secure channel, but does not
// create a session.
func (c *Client) Dial(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.sechan != nil {
		return errors.Errorf("secure channel already connected")
	}

	var err error
	c.conn, err = uacp.Dial(ctx, c.endpointURL)
	if err != nil {
		return err
	}

	c.sechan, err = uasc.NewSecureChannel(c.endpointURL, c.conn, c.cfg, c.sechanErr)
	if err != nil {
		_ = c.conn.Close()
		return err
	}

	return c.sechan.Open(ctx)
}

// Close closes the session, the secure channel and the transport
// connection, best-effort: failures closing the session do not prevent the
// channel and connection from being torn down.
func (c *Client) Close() error {
	if c.monitorDone != nil {
		close(c.monitorDone)
	}

	_ = c.CloseSession()
	c.state.Store(Closed)

	var err error
	if c.sechan != nil {
		err = c.sechan.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return err
}

// State returns the client's current connection state.
func (c *Client) State() ConnState {
	return c.state.Load().(ConnState)
}

// Session returns the active session, or nil.
func (c *Client) Session() *Session {
	return c.session.Load().(*Session)
}

func (c *Client) sessionClosed() bool {
	return c.Session() == nil
}

// Session is an OPC UA session as described in Part 4 §5.6.
type Session struct {
	cfg *uasc.SessionConfig

	// resp is the response to the CreateSessionRequest which carries the
	// parameters needed to activate the session.
	resp *ua.CreateSessionResponse

	// serverCertificate is the certificate used to verify and construct
	// the signatures exchanged during session activation.
	serverCertificate []byte

	// serverNonce is the secret nonce the server returns in the Create and
	// Activate Session responses; it feeds the next ActivateSession's
	// signatures and the UserIdentityToken encryption.
	serverNonce []byte
}

// CreateSession creates a new session which is not yet activated and not
// associated with the client. Call ActivateSession to both activate and
// associate the session with the client.
//
// If no UserIdentityToken is configured before calling CreateSession, or
// only an anonymous token without a PolicyID (the default ApplyConfig
// sets), an anonymous identity token is set automatically with the PolicyID the
// server's CreateSessionResponse advertises for anonymous access
// ("Anonymous" if the server does not advertise one).
//
// See Part 4 §5.6.2.
func (c *Client) CreateSession(cfg *uasc.SessionConfig) (*Session, error) {
	if c.sechan == nil {
		return nil, ua.StatusBadServerNotConnected
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	name := cfg.SessionName
	if name == "" {
		name = fmt.Sprintf("opcgo-%d", time.Now().UnixNano())
	}

	req := &ua.CreateSessionRequest{
		ClientDescription:       cfg.ClientDescription,
		EndpointURL:             c.endpointURL,
		SessionName:             name,
		ClientNonce:             nonce,
		ClientCertificate:       c.cfg.Certificate,
		RequestedSessionTimeout: float64(cfg.SessionTimeout / time.Millisecond),
	}

	var s *Session
	// for CreateSessionRequest the authToken is always nil; SendRequest
	// enforces that by taking it explicitly rather than reading it off a
	// stored session.
	err := c.sechan.SendRequest(req, nil, func(v interface{}) error {
		var res *ua.CreateSessionResponse
		if err := safeAssign(v, &res); err != nil {
			return err
		}

		if err := c.sechan.VerifySessionSignature(res.ServerCertificate, nonce, res.ServerSignature.Signature); err != nil {
			log.Printf("opcua: error verifying session signature: %s", err)
			return nil
		}

		if tok, ok := c.sessionCfg.UserIdentityToken.(*ua.AnonymousIdentityToken); c.sessionCfg.UserIdentityToken == nil || (ok && tok.PolicyID == "") {
			opt := AuthAnonymous()
			opt(c.cfg, c.sessionCfg, c.settings)

			p := anonymousPolicyID(res.ServerEndpoints)
			opt = AuthPolicyID(p)
			opt(c.cfg, c.sessionCfg, c.settings)
		}

		s = &Session{
			cfg:               cfg,
			resp:              res,
			serverNonce:       res.ServerNonce,
			serverCertificate: res.ServerCertificate,
		}
		return nil
	})
	return s, err
}

const defaultAnonymousPolicyID = "Anonymous"

func anonymousPolicyID(endpoints []*ua.EndpointDescription) string {
	for _, e := range endpoints {
		if e.SecurityMode != ua.MessageSecurityModeNone || e.SecurityPolicyURI != ua.SecurityPolicyURINone {
			continue
		}
		for _, t := range e.UserIdentityTokens {
			if t.TokenType == ua.UserTokenTypeAnonymous {
				return t.PolicyID
			}
		}
	}
	return defaultAnonymousPolicyID
}

// ActivateSession activates the session and associates it with the client.
// If the client already has an active session it is closed once the new
// session has been activated. To retain the current session instead, call
// DetachSession beforehand.
//
// See Part 4 §5.6.3.
func (c *Client) ActivateSession(s *Session) error {
	if c.sechan == nil {
		return ua.StatusBadServerNotConnected
	}
	sig, sigAlg, err := c.sechan.NewSessionSignature(s.serverCertificate, s.serverNonce)
	if err != nil {
		log.Printf("opcua: error creating session signature: %s", err)
		return nil
	}

	switch tok := s.cfg.UserIdentityToken.(type) {
	case *ua.AnonymousIdentityToken:
		// nothing to do

	case *ua.UserNameIdentityToken:
		pass, passAlg, err := c.sechan.EncryptUserPassword(s.cfg.AuthPolicyURI, s.cfg.AuthPassword, s.serverCertificate, s.serverNonce)
		if err != nil {
			log.Printf("opcua: error encrypting user password: %s", err)
			return err
		}
		tok.Password = pass
		tok.EncryptionAlgorithm = passAlg

	case *ua.X509IdentityToken:
		tokSig, tokSigAlg, err := c.sechan.NewUserTokenSignature(s.cfg.AuthPolicyURI, s.serverCertificate, s.serverNonce)
		if err != nil {
			log.Printf("opcua: error creating user token signature: %s", err)
			return err
		}
		s.cfg.UserTokenSignature = &ua.SignatureData{
			Algorithm: tokSigAlg,
			Signature: tokSig,
		}

	case *ua.IssuedIdentityToken:
		tok.EncryptionAlgorithm = ""
	}

	req := &ua.ActivateSessionRequest{
		ClientSignature: &ua.SignatureData{
			Algorithm: sigAlg,
			Signature: sig,
		},
		LocaleIDs:          s.cfg.LocaleIDs,
		UserIdentityToken:  ua.NewExtensionObject(s.cfg.UserIdentityToken),
		UserTokenSignature: s.cfg.UserTokenSignature,
	}
	err = c.sechan.SendRequest(req, s.resp.AuthenticationToken, func(v interface{}) error {
		var res *ua.ActivateSessionResponse
		if err := safeAssign(v, &res); err != nil {
			return err
		}

		// save the nonce for the next request
		s.serverNonce = res.ServerNonce
		return nil
	})
	if err != nil {
		return err
	}

	// the old session is closed here, not in the handler above: the handler
	// runs on the channel's receiver goroutine and cannot wait for the
	// CloseSession response.
	if err := c.CloseSession(); err != nil {
		// try to close the newly created session but report only the
		// initial error.
		_ = c.closeSession(s)
		return err
	}
	c.session.Store(s)
	return nil
}

// CloseSession closes the current session.
//
// See Part 4 §5.6.4.
func (c *Client) CloseSession() error {
	if err := c.closeSession(c.Session()); err != nil {
		return err
	}
	c.session.Store((*Session)(nil))
	return nil
}

// closeSession closes the given session.
func (c *Client) closeSession(s *Session) error {
	if s == nil {
		return nil
	}
	if c.sechan == nil {
		return ua.StatusBadServerNotConnected
	}
	req := &ua.CloseSessionRequest{DeleteSubscriptions: true}
	var res *ua.CloseSessionResponse
	return c.sechan.SendRequest(req, s.resp.AuthenticationToken, func(v interface{}) error {
		return safeAssign(v, &res)
	})
}

// DetachSession removes the session from the client without closing it.
// The caller is responsible for closing or re-activating it. If the client
// has no active session the function returns no error.
func (c *Client) DetachSession() (*Session, error) {
	s := c.Session()
	c.session.Store((*Session)(nil))
	return s, nil
}

// Send sends the request via the secure channel and registers a handler
// for the response. If the client has an active session it injects the
// session's authentication token.
func (c *Client) Send(req ua.Request, h func(interface{}) error) error {
	return c.sendWithTimeout(req, c.cfg.RequestTimeout, h)
}

// sendWithTimeout sends the request via the secure channel with a custom
// timeout and registers a handler for the response. If the client has an
// active session it injects the session's authentication token.
func (c *Client) sendWithTimeout(req ua.Request, timeout time.Duration, h func(interface{}) error) error {
	if c.sechan == nil {
		return ua.StatusBadServerNotConnected
	}
	var authToken *ua.NodeID
	if s := c.Session(); s != nil {
		authToken = s.resp.AuthenticationToken
	}
	return c.sechan.SendRequestWithTimeout(req, authToken, timeout, h)
}

// GetEndpoints returns the endpoints the connected server advertises.
func (c *Client) GetEndpoints() (*ua.GetEndpointsResponse, error) {
	req := &ua.GetEndpointsRequest{
		EndpointURL: c.endpointURL,
	}
	var res *ua.GetEndpointsResponse
	err := c.Send(req, func(v interface{}) error {
		return safeAssign(v, &res)
	})
	return res, err
}

// Read executes a synchronous read request (Part 4 §5.10.2), for example
// to resolve the server's NamespaceArray and ServerArray; Connect does not
// issue such a read itself.
//
// By default the function requests the Value attribute of the nodes in the
// server's default encoding.
func (c *Client) Read(req *ua.ReadRequest) (*ua.ReadResponse, error) {
	// clone the request and the ReadValueIDs to set defaults without
	// mutating the caller's values in place.
	rvs := make([]*ua.ReadValueID, len(req.NodesToRead))
	for i, rv := range req.NodesToRead {
		rc := &ua.ReadValueID{}
		*rc = *rv
		if rc.AttributeID == 0 {
			rc.AttributeID = ua.AttributeIDValue
		}
		if rc.DataEncoding == nil {
			rc.DataEncoding = &ua.QualifiedName{}
		}
		rvs[i] = rc
	}
	req = &ua.ReadRequest{
		MaxAge:             req.MaxAge,
		TimestampsToReturn: req.TimestampsToReturn,
		NodesToRead:        rvs,
	}

	var res *ua.ReadResponse
	err := c.Send(req, func(v interface{}) error {
		return safeAssign(v, &res)
	})
	return res, err
}

// safeAssign implements a type-safe assign from T to *T.
func safeAssign(t, ptrT interface{}) error {
	if reflect.TypeOf(t) != reflect.TypeOf(ptrT).Elem() {
		return InvalidResponseTypeError{t, ptrT}
	}
	// this is *ptrT = t
	reflect.ValueOf(ptrT).Elem().Set(reflect.ValueOf(t))
	return nil
}

// InvalidResponseTypeError is returned by safeAssign when a response
// handler receives a value of an unexpected type.
type InvalidResponseTypeError struct {
	got, want interface{}
}

func (e InvalidResponseTypeError) Error() string {
	return fmt.Sprintf("invalid response: got %T want %T", e.got, e.want)
}
