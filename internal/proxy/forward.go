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
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wafproxy/internal/router"
	"wafproxy/internal/werr"
)

// hopByHopHeaders are stripped in both directions per RFC 7230 §6.1; they
// describe a single hop's connection, not the end-to-end request.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Transfer-Encoding",
	"TE",
	"Trailer",
	"Upgrade",
	"Proxy-Authenticate",
	"Proxy-Authorization",
}

// Forwarder round-trips inbound requests to a selected upstream,
// streaming the body in both directions without full buffering.
type Forwarder struct {
	transport      *http.Transport
	requestTimeout time.Duration
}

// New builds a Forwarder around the given transport (see NewTransport).
// requestTimeout <= 0 falls back to DefaultRequestTimeout.
func New(transport *http.Transport, requestTimeout time.Duration) *Forwarder {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Forwarder{transport: transport, requestTimeout: requestTimeout}
}

// Result carries the observable outcome of one forwarded request, for
// telemetry and logging.
type Result struct {
	StatusCode int
	BytesOut   int64
	Duration   time.Duration
	State      State
	Err        *werr.Error
}

// Forward builds the outbound request against upstream, round-trips it, and
// streams the upstream response directly to w. rawPath is the request path
// exactly as the client sent it (spec.md §4.5: "upstream must see what the
// client sent"), never the router's normalized form. clientIP is the
// resolved client address established by normalize.Normalizer; peerTrusted
// reports whether the immediate connecting peer is a configured trusted
// proxy, which decides whether an inbound X-Forwarded-For chain is
// preserved and appended to, or discarded outright. The whole round trip is
// bounded by f.requestTimeout (spec.md §4.5 T_req).
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, upstream *router.Upstream, clientIP string, peerTrusted bool, rawPath string) Result {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(r.Context(), f.requestTimeout)
	defer cancel()

	outReq, err := f.buildOutboundRequest(reqCtx, r, upstream, clientIP, peerTrusted, rawPath)
	if err != nil {
		return Result{State: StateFailed, Err: werr.Wrap(werr.RequestMalformed, "building outbound request", err), Duration: time.Since(start)}
	}

	resp, err := f.transport.RoundTrip(outReq)
	if err != nil {
		kind := classify(reqCtx, err, true)
		return Result{State: StateFailed, Err: werr.Wrap(kind, "upstream round trip", err), Duration: time.Since(start)}
	}
	defer resp.Body.Close()

	stripHopByHop(resp.Header)
	dst := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	n, copyErr := io.Copy(w, resp.Body)
	if copyErr != nil {
		kind := classify(reqCtx, copyErr, false)
		return Result{
			StatusCode: resp.StatusCode,
			BytesOut:   n,
			State:      StateFailed,
			Err:        werr.Wrap(kind, "streaming upstream response", copyErr),
			Duration:   time.Since(start),
		}
	}

	return Result{StatusCode: resp.StatusCode, BytesOut: n, State: StateDone, Duration: time.Since(start)}
}

func (f *Forwarder) buildOutboundRequest(ctx context.Context, r *http.Request, upstream *router.Upstream, clientIP string, peerTrusted bool, rawPath string) (*http.Request, error) {
	base, err := url.Parse(upstream.BaseURL)
	if err != nil {
		return nil, err
	}
	target := *base
	// rawPath is already escaped: keep it as RawPath so it is sent verbatim
	// instead of being percent-encoded a second time.
	target.RawPath = singleJoiningSlash(base.EscapedPath(), rawPath)
	target.Path, err = url.PathUnescape(target.RawPath)
	if err != nil {
		return nil, err
	}
	target.RawQuery = r.URL.RawQuery

	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), r.Body)
	if err != nil {
		return nil, err
	}
	outReq.ContentLength = r.ContentLength

	outReq.Header = r.Header.Clone()
	stripHopByHop(outReq.Header)

	outReq.Host = target.Host
	outReq.Header.Set("X-Forwarded-Host", r.Host)
	outReq.Header.Set("X-Forwarded-Proto", schemeOf(r))
	appendForwardedFor(outReq.Header, clientIP, peerTrusted)

	return outReq, nil
}

// stripHopByHop removes the standard hop-by-hop set plus any header named
// in an inbound Connection header, per RFC 7230 §6.1.
func stripHopByHop(h http.Header) {
	if c := h.Get("Connection"); c != "" {
		for _, name := range strings.Split(c, ",") {
			h.Del(strings.TrimSpace(name))
		}
	}
	for _, name := range hopByHopHeaders {
		h.Del(name)
	}
}

// appendForwardedFor extends X-Forwarded-For with the resolved client IP.
// When the immediate peer is trusted, any existing chain it sent is
// legitimate and is preserved, with clientIP appended as the newest hop.
// When the peer is untrusted, the inbound header may be forged, so it is
// discarded and replaced with clientIP alone (spec.md §4.5).
func appendForwardedFor(h http.Header, clientIP string, peerTrusted bool) {
	if peerTrusted {
		if prior := h.Get("X-Forwarded-For"); prior != "" {
			h.Set("X-Forwarded-For", prior+", "+clientIP)
			return
		}
	}
	h.Set("X-Forwarded-For", clientIP)
}

func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
