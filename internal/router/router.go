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

package router

import (
	"fmt"
	"strings"

	"wafproxy/internal/werr"
)

// Router holds an immutable set of compiled upstreams, treated as a
// snapshot per spec.md §5 and hot-swapped by internal/config.
type Router struct {
	upstreams []*Upstream
}

// Compile validates and compiles UpstreamSpecs into a Router. Duplicate
// upstream names are a ConfigFatal-shaped error.
func Compile(specs []UpstreamSpec) (*Router, error) {
	seen := make(map[string]struct{}, len(specs))
	ups := make([]*Upstream, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("upstream with empty name")
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("duplicate upstream name %q", s.Name)
		}
		seen[s.Name] = struct{}{}

		weight := s.Weight
		if weight <= 0 {
			weight = 1
		}
		var hosts map[string]struct{}
		if len(s.Hosts) > 0 {
			hosts = make(map[string]struct{}, len(s.Hosts))
			for _, h := range s.Hosts {
				hosts[strings.ToLower(h)] = struct{}{}
			}
		}
		ups = append(ups, &Upstream{
			Name:         s.Name,
			BaseURL:      s.BaseURL,
			Weight:       weight,
			Hosts:        hosts,
			PathPrefixes: s.PathPrefixes,
		})
	}
	return &Router{upstreams: ups}, nil
}

// Select implements spec.md §4.4: restrict by host, then by longest
// matching path prefix, then pick by weighted round robin among the
// winners. Returns werr.UpstreamUnavailable when no upstream matches.
func (r *Router) Select(host, normalizedPath string) (*Upstream, error) {
	host = strings.ToLower(host)

	var byHost []*Upstream
	for _, u := range r.upstreams {
		if u.matchesHost(host) {
			byHost = append(byHost, u)
		}
	}
	if len(byHost) == 0 {
		return nil, werr.New(werr.UpstreamUnavailable, "no upstream matches host "+host)
	}

	bestPrefixLen := -1
	var candidates []*Upstream
	for _, u := range byHost {
		m := u.longestPrefixMatch(normalizedPath)
		if m < 0 {
			continue // this upstream requires a prefix match it didn't get
		}
		switch {
		case m > bestPrefixLen:
			bestPrefixLen = m
			candidates = []*Upstream{u}
		case m == bestPrefixLen:
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return nil, werr.New(werr.UpstreamUnavailable, "no upstream matches path "+normalizedPath)
	}

	return pickWeightedRoundRobin(candidates), nil
}

// pickWeightedRoundRobin implements spec.md §4.4 step 3: each upstream
// holds a monotonically incremented counter; the next pick is the one with
// the largest weight/(counter+1) ratio, counter incremented after
// selection, ties broken by configuration order.
func pickWeightedRoundRobin(candidates []*Upstream) *Upstream {
	if len(candidates) == 1 {
		candidates[0].counter.Add(1)
		return candidates[0]
	}

	var best *Upstream
	var bestRatio float64
	for _, u := range candidates {
		counter := u.counter.Load()
		ratio := float64(u.Weight) / float64(counter+1)
		if best == nil || ratio > bestRatio {
			best = u
			bestRatio = ratio
		}
	}
	best.counter.Add(1)
	return best
}

// Upstreams exposes the compiled pool for introspection and tests.
func (r *Router) Upstreams() []*Upstream { return r.upstreams }
