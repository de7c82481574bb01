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

// Package werr implements the error taxonomy of spec.md §7: a small set of
// kinds, each carrying the HTTP status and metric label the orchestrator
// needs without string-matching error text.
package werr

import "fmt"

// Kind is one of the taxonomy entries in spec.md §7.
type Kind string

const (
	ConfigFatal         Kind = "config_fatal"
	RequestMalformed    Kind = "request_malformed"
	VerdictBlock        Kind = "verdict_block"
	RateLimited         Kind = "rate_limited"
	UpstreamUnavailable Kind = "upstream_unavailable"
	UpstreamTimeout     Kind = "upstream_timeout"
	UpstreamConnect     Kind = "upstream_connect"
	UpstreamRead        Kind = "upstream_read"
	ClientAbort         Kind = "client_abort"
)

// Status returns the HTTP status code this kind maps to, or 0 for kinds
// that never produce a response on their own (ClientAbort, ConfigFatal).
func (k Kind) Status() int {
	switch k {
	case RequestMalformed:
		return 400
	case VerdictBlock:
		return 403
	case RateLimited:
		return 429
	case UpstreamUnavailable:
		return 502
	case UpstreamConnect:
		return 502
	case UpstreamRead:
		return 502
	case UpstreamTimeout:
		return 504
	default:
		return 0
	}
}

// MetricLabel returns the error_type label value for upstream_errors_total
// (spec.md §6), or "" for kinds that aren't upstream errors.
func (k Kind) MetricLabel() string {
	switch k {
	case UpstreamTimeout:
		return "timeout"
	case UpstreamConnect:
		return "connect"
	case UpstreamRead:
		return "read"
	default:
		return ""
	}
}

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }
