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

package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"wafproxy/internal/router"
	"wafproxy/internal/werr"
)

func TestForward_StripsHopByHopAndSetsForwardedHeadersUntrustedPeer(t *testing.T) {
	var gotHeader http.Header
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotPath = r.URL.Path
		w.Header().Set("Connection", "close") // must not leak back to the client
		w.Header().Set("X-Upstream", "ok")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hi"))
	}))
	defer upstream.Close()

	up := &router.Upstream{Name: "u", BaseURL: upstream.URL, Weight: 1}

	f := New(NewTransport(DefaultTransportSettings()), DefaultRequestTimeout)

	req := httptest.NewRequest(http.MethodGet, "http://waf.example/widgets/../secret", nil)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Forwarded-For", "203.0.113.9") // forged by an untrusted peer
	rec := httptest.NewRecorder()

	result := f.Forward(rec, req, up, "198.51.100.1", false, "/widgets/../secret")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if rec.Header().Get("Connection") != "" {
		t.Fatal("hop-by-hop Connection header leaked to the client response")
	}
	if rec.Header().Get("X-Upstream") != "ok" {
		t.Fatal("end-to-end response header was dropped")
	}
	if gotHeader.Get("Connection") != "" {
		t.Fatal("inbound hop-by-hop Connection header was forwarded upstream")
	}
	if got := gotHeader.Get("X-Forwarded-For"); got != "198.51.100.1" {
		t.Fatalf("expected untrusted peer's forged X-Forwarded-For to be replaced, got %q", got)
	}
	if gotHeader.Get("X-Forwarded-Proto") != "http" {
		t.Fatalf("expected X-Forwarded-Proto=http, got %q", gotHeader.Get("X-Forwarded-Proto"))
	}
	if gotPath != "/widgets/../secret" {
		t.Fatalf("expected the upstream to see the raw, unnormalized path, got %q", gotPath)
	}
}

func TestForward_TrustedPeerChainIsPreservedAndAppended(t *testing.T) {
	var gotXFF string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotXFF = r.Header.Get("X-Forwarded-For")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	up := &router.Upstream{Name: "u", BaseURL: upstream.URL, Weight: 1}
	f := New(NewTransport(DefaultTransportSettings()), DefaultRequestTimeout)

	req := httptest.NewRequest(http.MethodGet, "http://waf.example/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()

	result := f.Forward(rec, req, up, "198.51.100.1", true, "/")
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if gotXFF != "203.0.113.9, 198.51.100.1" {
		t.Fatalf("expected the trusted peer's chain to be preserved and appended, got %q", gotXFF)
	}
}

func TestForward_ConnectFailureClassifiedAsUpstreamConnect(t *testing.T) {
	up := &router.Upstream{Name: "dead", BaseURL: "http://127.0.0.1:1", Weight: 1}
	f := New(NewTransport(DefaultTransportSettings()), DefaultRequestTimeout)

	req := httptest.NewRequest(http.MethodGet, "http://waf.example/", nil)
	rec := httptest.NewRecorder()

	result := f.Forward(rec, req, up, "10.0.0.1", false, "/")
	if result.Err == nil {
		t.Fatal("expected an error forwarding to an unreachable upstream")
	}
	if result.Err.Kind != werr.UpstreamConnect {
		t.Fatalf("expected UpstreamConnect, got %s", result.Err.Kind)
	}
}
