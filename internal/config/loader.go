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

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wafproxy/internal/ipset"
	"wafproxy/internal/normalize"
	"wafproxy/internal/router"
	"wafproxy/internal/rules"
	"wafproxy/internal/werr"
)

const defaultMaxInspectBytes = 10000

// Load reads and validates a configuration file, returning a compiled
// Config or a *werr.Error of kind ConfigFatal describing the first
// validation failure encountered.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "reading config file", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "parsing config yaml", err)
	}

	return compile(&f)
}

func compile(f *File) (*Config, error) {
	if f.WAFSettings.MaxInspectBytes <= 0 {
		f.WAFSettings.MaxInspectBytes = defaultMaxInspectBytes
	}
	if f.WAFSettings.Mode == "" {
		f.WAFSettings.Mode = ModeBlock
	}
	if f.WAFSettings.Mode != ModeBlock && f.WAFSettings.Mode != ModeMonitor {
		return nil, werr.New(werr.ConfigFatal, fmt.Sprintf("waf_settings.mode must be %q or %q, got %q", ModeBlock, ModeMonitor, f.WAFSettings.Mode))
	}

	if f.Thresholds.Allow < 0 || f.Thresholds.Challenge <= f.Thresholds.Allow || f.Thresholds.Block < f.Thresholds.Challenge {
		return nil, werr.New(werr.ConfigFatal, fmt.Sprintf("thresholds must satisfy 0 <= allow < challenge <= block, got %+v", f.Thresholds))
	}

	if f.RateLimits.RequestsPerMinute <= 0 {
		return nil, werr.New(werr.ConfigFatal, "rate_limits.requests_per_minute must be positive")
	}

	if _, err := normalize.NewTrustedPeers(f.TrustedProxies); err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "trusted_proxies", err)
	}
	if _, err := ipset.New(f.IPAllowlist); err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "ip_allowlist", err)
	}
	if _, err := ipset.New(f.IPBlocklist); err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "ip_blocklist", err)
	}

	rtr, err := router.Compile(f.Upstreams)
	if err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "compiling upstreams", err)
	}

	engine, err := rules.Compile(f.Rules, f.WAFSettings.MaxInspectBytes)
	if err != nil {
		return nil, werr.Wrap(werr.ConfigFatal, "compiling rules", err)
	}

	return &Config{
		Router:         rtr,
		Rules:          engine,
		Thresholds:     f.Thresholds,
		RateLimits:     f.RateLimits,
		TrustedProxies: f.TrustedProxies,
		IPAllowlist:    f.IPAllowlist,
		IPBlocklist:    f.IPBlocklist,
		ProxySettings:  f.ProxySettings,
		WAFSettings:    f.WAFSettings,
	}, nil
}
