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
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultMaxInspectBytes is spec.md §4.1's default inspection budget.
const DefaultMaxInspectBytes = 10000

// Normalizer turns an inbound *http.Request into a normalize.Context under
// a configured trust policy for forwarded-IP headers (spec.md §4.1).
type Normalizer struct {
	Trusted        TrustedPeers
	MaxInspectBytes int
}

// New returns a Normalizer with the given trust policy and inspection
// budget. A maxInspectBytes <= 0 falls back to DefaultMaxInspectBytes.
func New(trusted TrustedPeers, maxInspectBytes int) *Normalizer {
	if maxInspectBytes <= 0 {
		maxInspectBytes = DefaultMaxInspectBytes
	}
	return &Normalizer{Trusted: trusted, MaxInspectBytes: maxInspectBytes}
}

// Normalize populates a fresh Context from r. requestID is generated by the
// caller (internal/requestid) so this package stays free of ID-generation
// concerns.
func (n *Normalizer) Normalize(r *http.Request, requestID string) *Context {
	ctx := &Context{
		RequestID:     requestID,
		Method:        r.Method,
		PathRaw:       r.URL.EscapedPath(),
		PathNorm:      NormalizePath(r.URL.EscapedPath()),
		QueryRaw:      r.URL.RawQuery,
		QueryNorm:     NormalizeQuery(r.URL.RawQuery),
		HeadersSubset: n.headerSubset(r),
		AllHeaders:    map[string][]string(r.Header),
		Host:          r.Host,
		Scheme:        schemeOf(r),
	}
	ctx.ClientIP, ctx.PeerTrusted = n.extractClientIP(r)
	return ctx
}

// extractClientIP implements spec.md §4.1: if the transport peer is
// trusted, take the left-most valid IP from X-Forwarded-For; otherwise (or
// on a missing/malformed header) fall back to the peer. X-Real-IP is never
// consulted for authoritative identity. The second return reports whether
// the immediate peer is a configured trusted proxy, independent of whether
// X-Forwarded-For was present or parsed — the forward proxy needs this to
// decide whether an existing X-Forwarded-For chain may be trusted forward.
func (n *Normalizer) extractClientIP(r *http.Request) (string, bool) {
	peer := peerIP(r.RemoteAddr)
	if peer == "" {
		return r.RemoteAddr, false
	}

	addr, err := netip.ParseAddr(peer)
	if err != nil || !n.Trusted.Contains(addr) {
		return peer, false
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer, true
	}
	for _, candidate := range strings.Split(xff, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, err := netip.ParseAddr(candidate); err == nil {
			return candidate, true
		}
	}
	// Header present but nothing parsed as a valid IP: fall back to peer.
	return peer, true
}

func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr without a port (e.g. in unit tests).
		if _, err2 := netip.ParseAddr(remoteAddr); err2 == nil {
			return remoteAddr
		}
		return ""
	}
	return host
}

// headerSubset lower-cases and extracts the canonical header names the rule
// engine may reference, truncated to the inspection budget.
func (n *Normalizer) headerSubset(r *http.Request) map[string]string {
	out := make(map[string]string, len(CanonicalHeaderNames))
	for _, name := range CanonicalHeaderNames {
		v := r.Header.Get(name)
		if name == "host" && v == "" {
			v = r.Host
		}
		out[name] = n.Truncate(v)
	}
	return out
}

// Truncate bounds a string to the configured inspection budget (spec.md
// §4.1). Truncation only applies to what the rule engine inspects; it never
// affects what's forwarded upstream.
func (n *Normalizer) Truncate(s string) string {
	if len(s) <= n.MaxInspectBytes {
		return s
	}
	return s[:n.MaxInspectBytes]
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	return "http"
}
