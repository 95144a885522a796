// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"testing"

	"github.com/opcgo/opcua/ua"
)

func endpoints() []*ua.EndpointDescription {
	return []*ua.EndpointDescription{
		{EndpointURL: "opc.tcp://h:4840", SecurityMode: ua.MessageSecurityModeNone, SecurityPolicyURI: ua.SecurityPolicyURINone, SecurityLevel: 0},
		{EndpointURL: "opc.tcp://h:4840", SecurityMode: ua.MessageSecurityModeSign, SecurityPolicyURI: ua.SecurityPolicyURIBasic256, SecurityLevel: 1},
		{EndpointURL: "opc.tcp://h:4840", SecurityMode: ua.MessageSecurityModeSignAndEncrypt, SecurityPolicyURI: ua.SecurityPolicyURIBasic256Sha256, SecurityLevel: 3},
	}
}

func TestSelectEndpointNoPreferencePicksHighestSecurity(t *testing.T) {
	ep := SelectEndpoint(endpoints(), "", ua.MessageSecurityModeInvalid)
	if ep == nil || ep.SecurityLevel != 3 {
		t.Fatalf("got %+v, want the SecurityLevel=3 endpoint", ep)
	}
}

func TestSelectEndpointByPolicyAndMode(t *testing.T) {
	ep := SelectEndpoint(endpoints(), "Basic256", ua.MessageSecurityModeSign)
	if ep == nil || ep.SecurityPolicyURI != ua.SecurityPolicyURIBasic256 {
		t.Fatalf("got %+v, want Basic256/Sign", ep)
	}
}

func TestSelectEndpointByModeOnly(t *testing.T) {
	ep := SelectEndpoint(endpoints(), "", ua.MessageSecurityModeNone)
	if ep == nil || ep.SecurityMode != ua.MessageSecurityModeNone {
		t.Fatalf("got %+v, want SecurityMode None", ep)
	}
}

func TestSelectEndpointNoMatchReturnsNil(t *testing.T) {
	ep := SelectEndpoint(endpoints(), "Basic128Rsa15", ua.MessageSecurityModeSignAndEncrypt)
	if ep != nil {
		t.Fatalf("got %+v, want nil", ep)
	}
}

func TestSelectEndpointEmptyListReturnsNil(t *testing.T) {
	if ep := SelectEndpoint(nil, "", ua.MessageSecurityModeInvalid); ep != nil {
		t.Fatalf("got %+v, want nil", ep)
	}
}

func TestSafeAssignTypeMismatch(t *testing.T) {
	var res *ua.ReadResponse
	err := safeAssign(&ua.GetEndpointsResponse{}, &res)
	if err == nil {
		t.Fatal("safeAssign accepted a mismatched type")
	}
}

func TestSafeAssignMatchingType(t *testing.T) {
	var res *ua.ReadResponse
	want := &ua.ReadResponse{ResponseHeader: &ua.ResponseHeader{RequestHandle: 5}}
	if err := safeAssign(want, &res); err != nil {
		t.Fatalf("safeAssign: %v", err)
	}
	if res != want {
		t.Fatalf("res = %v, want %v", res, want)
	}
}

func TestAnonymousPolicyIDFallsBackWhenNotAdvertised(t *testing.T) {
	got := anonymousPolicyID(nil)
	if got != defaultAnonymousPolicyID {
		t.Fatalf("got %q, want %q", got, defaultAnonymousPolicyID)
	}
}

func TestAnonymousPolicyIDFromEndpoint(t *testing.T) {
	eps := []*ua.EndpointDescription{
		{
			SecurityMode:      ua.MessageSecurityModeNone,
			SecurityPolicyURI: ua.SecurityPolicyURINone,
			UserIdentityTokens: []*ua.UserTokenPolicy{
				{PolicyID: "anon1", TokenType: ua.UserTokenTypeAnonymous},
			},
		},
	}
	got := anonymousPolicyID(eps)
	if got != "anon1" {
		t.Fatalf("got %q, want %q", got, "anon1")
	}
}
