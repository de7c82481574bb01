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

package limiter

import (
	"hash/fnv"
	"strconv"

	rendezvous "github.com/dgryski/go-rendezvous"
)

// shardPicker assigns a client IP to one of a fixed number of shards using
// rendezvous (highest random weight) hashing, so a given IP's shard
// assignment is stable even if the shard count is reconfigured, and
// sequential IPv4 pools don't cluster the way a plain hash%N can.
type shardPicker struct {
	rv     *rendezvous.Rendezvous
	lookup map[string]int
}

func newShardPicker(n int) *shardPicker {
	nodes := make([]string, n)
	lookup := make(map[string]int, n)
	for i := 0; i < n; i++ {
		name := strconv.Itoa(i)
		nodes[i] = name
		lookup[name] = i
	}
	rv := rendezvous.New(nodes, hashString)
	return &shardPicker{rv: rv, lookup: lookup}
}

func (s *shardPicker) shardFor(key string) int {
	return s.lookup[s.rv.Lookup(key)]
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
