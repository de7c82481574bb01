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
	"fmt"
	"net/netip"
)

// TrustedPeers is an immutable set of CIDR ranges (v4 or v6) whose
// X-Forwarded-For header we are willing to honor (spec.md GLOSSARY).
type TrustedPeers struct {
	prefixes []netip.Prefix
}

// NewTrustedPeers parses a list of CIDR strings into a TrustedPeers set.
// A malformed CIDR is a ConfigFatal condition for the caller to surface.
func NewTrustedPeers(cidrs []string) (TrustedPeers, error) {
	tp := TrustedPeers{prefixes: make([]netip.Prefix, 0, len(cidrs))}
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return TrustedPeers{}, fmt.Errorf("invalid trusted CIDR %q: %w", c, err)
		}
		tp.prefixes = append(tp.prefixes, p)
	}
	return tp, nil
}

// Contains reports whether addr falls within any configured CIDR.
func (t TrustedPeers) Contains(addr netip.Addr) bool {
	for _, p := range t.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
