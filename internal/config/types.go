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

// Package config loads and validates the immutable configuration snapshot
// the orchestrator runs against, and publishes it behind a lock-free
// Store so a reload never blocks an in-flight request.
package config

import (
	"wafproxy/internal/router"
	"wafproxy/internal/rules"
)

// Mode selects WAF enforcement behavior (spec.md §4.2).
type Mode string

const (
	ModeBlock   Mode = "block"
	ModeMonitor Mode = "monitor"
)

// WAFSettings holds the rule-engine-wide knobs of spec.md §6's
// waf_settings block.
type WAFSettings struct {
	Mode            Mode `yaml:"mode"`
	MaxInspectBytes int  `yaml:"max_inspect_bytes"`
}

// RateLimitSettings holds the rate_limits block of spec.md §6.
type RateLimitSettings struct {
	RequestsPerMinute int64 `yaml:"requests_per_minute"`
	Shards            int   `yaml:"shards"`
	IdleEvictAfterSec int   `yaml:"idle_evict_after_seconds"`
}

// ProxySettings holds the proxy_settings block of spec.md §6.
type ProxySettings struct {
	DialTimeoutMS           int `yaml:"dial_timeout_ms"`
	ResponseHeaderTimeoutMS int `yaml:"response_header_timeout_ms"`
	IdleConnTimeoutMS       int `yaml:"idle_conn_timeout_ms"`
	MaxIdleConns            int `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost     int `yaml:"max_idle_conns_per_host"`

	// RequestTimeoutMS bounds the whole forwarded request, spec.md §4.5's
	// T_req (default 30000ms).
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
}

// File is the raw, on-disk shape of a configuration snapshot, as loaded by
// yaml.v3. It is deliberately distinct from Config: Config is the compiled,
// validated, ready-to-run form the orchestrator actually consumes.
type File struct {
	Upstreams      []router.UpstreamSpec `yaml:"upstreams"`
	Rules          []rules.RuleSpec      `yaml:"rules"`
	Thresholds     rules.Thresholds      `yaml:"thresholds"`
	RateLimits     RateLimitSettings     `yaml:"rate_limits"`
	TrustedProxies []string              `yaml:"trusted_proxies"`
	IPAllowlist    []string              `yaml:"ip_allowlist"`
	IPBlocklist    []string              `yaml:"ip_blocklist"`
	ProxySettings  ProxySettings         `yaml:"proxy_settings"`
	WAFSettings    WAFSettings           `yaml:"waf_settings"`
}

// Config is the compiled configuration snapshot the orchestrator runs
// against (spec.md §6's "configuration collaborator").
type Config struct {
	Router         *router.Router
	Rules          *rules.Engine
	Thresholds     rules.Thresholds
	RateLimits     RateLimitSettings
	TrustedProxies []string
	IPAllowlist    []string
	IPBlocklist    []string
	ProxySettings  ProxySettings
	WAFSettings    WAFSettings
}
