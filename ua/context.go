// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package ua

import "sync"

// Context is the Encoding Provider's shared state (§4.3): the
// namespace/server URI tables exchanged during session bring-up, and the
// size limits that bound what a Decoder will allocate for an inbound
// message. It is safe for concurrent use. The namespace/server tables hold
// the defaults until UpdateNamespaceURIs/UpdateServerURIs replace them;
// the client does not call either during session bring-up.
type Context struct {
	mu sync.RWMutex

	namespaceURIs []string
	serverURIs    []string

	MaxStringLength     int
	MaxByteStringLength int
	MaxArrayLength      int
}

// DefaultContext returns a Context with the standard namespace table
// (index 0 is always the OPC Foundation namespace per §3) and generous but
// bounded size limits.
func DefaultContext() *Context {
	return &Context{
		namespaceURIs:       []string{"http://opcfoundation.org/UA/"},
		serverURIs:          []string{""},
		MaxStringLength:     1 << 20,
		MaxByteStringLength: 1 << 24,
		MaxArrayLength:      1 << 16,
	}
}

// UpdateNamespaceURIs replaces the namespace table. Index 0 is forced to
// the OPC Foundation namespace regardless of what the server returned,
// since that invariant (§3) never varies on the wire.
func (c *Context) UpdateNamespaceURIs(uris []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(uris)+1)
	out = append(out, "http://opcfoundation.org/UA/")
	for _, u := range uris {
		if u == "http://opcfoundation.org/UA/" {
			continue
		}
		out = append(out, u)
	}
	c.namespaceURIs = out
}

// NamespaceURIs returns a copy of the current namespace table.
func (c *Context) NamespaceURIs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.namespaceURIs))
	copy(out, c.namespaceURIs)
	return out
}

// UpdateServerURIs replaces the server URI table.
func (c *Context) UpdateServerURIs(uris []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.serverURIs = append([]string(nil), uris...)
}

// ServerURIs returns a copy of the current server URI table.
func (c *Context) ServerURIs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.serverURIs))
	copy(out, c.serverURIs)
	return out
}
