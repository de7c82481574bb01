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

// Package normalize resolves client identity under a trust model for
// forwarded-IP headers and canonicalizes the request surface the rule
// engine and router operate on.
package normalize

import "time"

// Verdict is the three-valued outcome of the rule engine.
type Verdict int

const (
	Allow Verdict = iota
	Suspicious
	Block
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "ALLOW"
	case Suspicious:
		return "SUSPICIOUS"
	case Block:
		return "BLOCK"
	default:
		return "UNKNOWN"
	}
}

// Context is the per-request mutable RequestContext of spec.md §3. It is
// exclusively owned by the handling goroutine and never shared.
type Context struct {
	RequestID string

	ClientIP    string
	PeerTrusted bool // true when the immediate transport peer is a configured trusted proxy
	Method      string

	PathRaw  string // exactly as the client sent it, used for forwarding and rule inspection
	PathNorm string // normalized, used for routing and logging

	QueryRaw  string
	QueryNorm string

	// HeadersSubset holds the canonical, lower-cased header names the rule
	// engine may reference: host, user-agent, referer, cookie, content-type.
	HeadersSubset map[string]string

	// AllHeaders is the full inbound header set, needed for arbitrary
	// header:<NAME> rule targets beyond the canonical subset.
	AllHeaders map[string][]string

	Host   string
	Scheme string

	StartTime time.Time

	Verdict        Verdict
	Score          int
	RuleHits       []string
	IPPolicyHit    bool // true when allow/block-list short-circuited the engine
	ChosenUpstream string

	Status    int
	LatencyMS float64
}

// CanonicalHeaderNames is the fixed set of headers the rule engine may
// reference by the bare target "header:<name>" without an explicit
// per-request lookup into AllHeaders; these are pre-extracted into
// HeadersSubset during normalization (spec.md §4.1).
var CanonicalHeaderNames = []string{"host", "user-agent", "referer", "cookie", "content-type"}
