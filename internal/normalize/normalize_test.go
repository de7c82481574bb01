// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package normalize

import (
	"net/http"
	"strings"
	"testing"
)

func TestNormalizePath_CollapsesAndResolves(t *testing.T) {
	cases := map[string]string{
		"/a/b/c":        "/a/b/c",
		"/a//b///c":     "/a/b/c",
		"/a/./b":        "/a/b",
		"/a/b/../c":     "/a/c",
		"/a/%2e%2e/b":   "/b",
		"":              "",
	}
	for in, want := range cases {
		got := NormalizePath(in)
		if got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizePath_TraversalAboveRootNotRewritten(t *testing.T) {
	got := NormalizePath("/../etc/passwd")
	if !strings.Contains(got, "..") {
		t.Fatalf("expected the traversal attempt to remain visible, got %q", got)
	}
}

func TestNormalizePath_Idempotent(t *testing.T) {
	inputs := []string{"/a/b/c", "/a//b/../c", "/../etc/passwd", "/", ""}
	for _, in := range inputs {
		once := NormalizePath(in)
		twice := NormalizePath(once)
		if once != twice {
			t.Errorf("NormalizePath not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalizeQuery_PreservesOrderAndRepetition(t *testing.T) {
	got := NormalizeQuery("q=1%20UNION&q=2&a=b")
	want := "q=1 UNION&q=2&a=b"
	if got != want {
		t.Fatalf("NormalizeQuery = %q, want %q", got, want)
	}
}

func TestExtractClientIP_UntrustedPeerIgnoresXFF(t *testing.T) {
	n := New(TrustedPeers{}, 0)
	r := &http.Request{
		RemoteAddr: "8.8.8.8:1234",
		Header:     http.Header{"X-Forwarded-For": []string{"1.2.3.4"}},
	}
	got, trusted := n.extractClientIP(r)
	if got != "8.8.8.8" {
		t.Fatalf("expected untrusted peer's XFF to be ignored, got %q", got)
	}
	if trusted {
		t.Fatal("expected untrusted peer to report PeerTrusted=false")
	}
}

func TestExtractClientIP_TrustedPeerUsesLeftmostXFF(t *testing.T) {
	trusted, err := NewTrustedPeers([]string{"127.0.0.1/32"})
	if err != nil {
		t.Fatal(err)
	}
	n := New(trusted, 0)
	r := &http.Request{
		RemoteAddr: "127.0.0.1:1234",
		Header:     http.Header{"X-Forwarded-For": []string{"a.b.c.d, e.f.g.h"}},
	}
	got, peerTrusted := n.extractClientIP(r)
	// a.b.c.d isn't a valid IP, so the first valid entry wins: none here are
	// valid, so fall back to peer.
	if got != "127.0.0.1" {
		t.Fatalf("expected fallback to peer for malformed XFF entries, got %q", got)
	}
	if !peerTrusted {
		t.Fatal("expected trusted peer to report PeerTrusted=true even on fallback")
	}

	r2 := &http.Request{
		RemoteAddr: "127.0.0.1:1234",
		Header:     http.Header{"X-Forwarded-For": []string{"203.0.113.9, 198.51.100.2"}},
	}
	got2, trusted2 := n.extractClientIP(r2)
	if got2 != "203.0.113.9" {
		t.Fatalf("expected left-most valid IP, got %q", got2)
	}
	if !trusted2 {
		t.Fatal("expected trusted peer to report PeerTrusted=true")
	}
}

func TestTruncate_BoundsInspectionButNotForwarding(t *testing.T) {
	n := New(TrustedPeers{}, 4)
	if got := n.Truncate("abcdef"); got != "abcd" {
		t.Fatalf("Truncate = %q, want %q", got, "abcd")
	}
}
