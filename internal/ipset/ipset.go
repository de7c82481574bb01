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

// Package ipset implements the IP allow-/block-list fast path of spec.md
// §4.2: a small set of CIDR ranges or bare addresses checked before rule
// evaluation.
package ipset

import "net/netip"

// Set is an immutable collection of CIDR prefixes and bare addresses.
type Set struct {
	prefixes []netip.Prefix
}

// New parses a mix of bare IPs and CIDR ranges into a Set.
func New(entries []string) (*Set, error) {
	s := &Set{prefixes: make([]netip.Prefix, 0, len(entries))}
	for _, e := range entries {
		p, err := parseCIDROrIP(e)
		if err != nil {
			return nil, err
		}
		s.prefixes = append(s.prefixes, p)
	}
	return s, nil
}

// Contains reports whether addr falls within any entry of the set.
func (s *Set) Contains(addr netip.Addr) bool {
	if s == nil {
		return false
	}
	for _, p := range s.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parseCIDROrIP(s string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(s); err == nil {
		return p, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
