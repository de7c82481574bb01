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

import "sync/atomic"

// Store publishes Config snapshots behind an atomic pointer so a reload
// never blocks, and races with, an in-flight request reading the current
// snapshot (spec.md §9 "Config hot-swap").
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore wraps an initial Config for publication.
func NewStore(initial *Config) *Store {
	s := &Store{}
	s.current.Store(initial)
	return s
}

// Current returns the most recently published Config. Callers must not
// mutate it; a new snapshot is always a fresh value, never patched in
// place.
func (s *Store) Current() *Config {
	return s.current.Load()
}

// Replace atomically swaps in a newly loaded Config, for hot reload.
func (s *Store) Replace(next *Config) {
	s.current.Store(next)
}
