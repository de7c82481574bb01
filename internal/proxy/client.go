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

// Package proxy implements the forward-proxy leg of the pipeline (spec.md
// §4.5): building the outbound request, round-tripping it against the
// selected upstream, and streaming the response back without buffering.
package proxy

import (
	"net"
	"net/http"
	"time"
)

// TransportSettings bounds the shared transport's connection pool and timeouts, loaded
// from the proxy_settings block of a configuration snapshot.
type TransportSettings struct {
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	IdleConnTimeout       time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int

	// RequestTimeout bounds the whole forwarded request end to end (connect
	// + request headers/body + response headers/body), spec.md §4.5's
	// T_req. It is enforced by Forward via context.WithTimeout, not by the
	// transport itself.
	RequestTimeout time.Duration
}

// DefaultRequestTimeout is spec.md §4.5's default T_req.
const DefaultRequestTimeout = 30 * time.Second

// DefaultTransportSettings mirrors the conservative defaults of the
// teacher's outbound HTTP clients.
func DefaultTransportSettings() TransportSettings {
	return TransportSettings{
		DialTimeout:           5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		RequestTimeout:        DefaultRequestTimeout,
	}
}

// NewTransport builds the shared *http.Transport used for every upstream
// dial. It is intentionally not wrapped in an *http.Client: Forward needs
// direct access to RoundTrip so it can classify dial-phase vs read-phase
// failures (spec.md §4.5), which http.Client's redirect handling obscures.
func NewTransport(s TransportSettings) *http.Transport {
	dialer := &net.Dialer{Timeout: s.DialTimeout}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: s.ResponseHeaderTimeout,
		IdleConnTimeout:       s.IdleConnTimeout,
		MaxIdleConns:          s.MaxIdleConns,
		MaxIdleConnsPerHost:   s.MaxIdleConnsPerHost,
		// Compression negotiation is left at the transport's default.
		DisableCompression: false,
	}
}
