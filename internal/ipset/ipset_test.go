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

package ipset

import (
	"net/netip"
	"testing"
)

func TestSet_MatchesBareIPAndCIDR(t *testing.T) {
	s, err := New([]string{"6.6.6.6", "10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		"6.6.6.6":  true,
		"6.6.6.7":  false,
		"10.1.2.3": true,
		"11.0.0.1": false,
	}
	for addr, want := range cases {
		got := s.Contains(netip.MustParseAddr(addr))
		if got != want {
			t.Errorf("Contains(%s) = %v, want %v", addr, got, want)
		}
	}
}

func TestSet_RejectsInvalidEntry(t *testing.T) {
	if _, err := New([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected an error for a malformed entry")
	}
}

func TestSet_EmptyAndNilReceiverNeverMatch(t *testing.T) {
	var nilSet *Set
	if nilSet.Contains(netip.MustParseAddr("1.2.3.4")) {
		t.Fatal("nil Set must never match")
	}
	empty, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Contains(netip.MustParseAddr("1.2.3.4")) {
		t.Fatal("empty Set must never match")
	}
}
