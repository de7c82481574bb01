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

// Package router maps an inbound host/path to a candidate upstream pool and
// picks one via weighted round robin (spec.md §4.4).
package router

import "sync/atomic"

// UpstreamSpec is the configuration-facing shape of an upstream.
type UpstreamSpec struct {
	Name         string   `yaml:"name"`
	BaseURL      string   `yaml:"base_url"`
	Weight       int      `yaml:"weight"`
	Hosts        []string `yaml:"hosts"`
	PathPrefixes []string `yaml:"path_prefixes"`
}

// Upstream is a compiled UpstreamSpec: hosts are lower-cased for
// case-insensitive matching, weight defaults to 1, and counter is the
// per-upstream atomic pick counter spec.md §5 calls for ("one atomic
// counter per upstream is sufficient").
type Upstream struct {
	Name         string
	BaseURL      string
	Weight       int
	Hosts        map[string]struct{} // nil/empty means "no host constraint"
	PathPrefixes []string            // ordered; longest-prefix wins on ties

	counter atomic.Int64
}

// longestPrefixMatch returns the length of the longest configured prefix
// that matches p, or -1 if the upstream has prefixes configured but none
// match. An upstream with no prefixes configured always matches with
// length 0 (spec.md §4.4: "upstreams with no prefix match path-wise, but
// lose to any prefix-specific match").
func (u *Upstream) longestPrefixMatch(p string) int {
	if len(u.PathPrefixes) == 0 {
		return 0
	}
	best := -1
	for _, prefix := range u.PathPrefixes {
		if len(prefix) > 0 && hasPrefix(p, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	return best
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (u *Upstream) matchesHost(host string) bool {
	if len(u.Hosts) == 0 {
		return true
	}
	_, ok := u.Hosts[host]
	return ok
}
