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

package rules

import (
	"fmt"
	"regexp"

	"wafproxy/internal/normalize"
)

// Engine holds a compiled, immutable rule set. Engines are treated as
// immutable snapshots (spec.md §5): build a new one and swap it in via
// internal/config's atomic publish rather than mutating one in place.
type Engine struct {
	rules           []Rule
	maxInspectBytes int
}

// Compile builds an Engine from RuleSpecs, pre-compiling every pattern and
// target projector. Returns a ConfigFatal-shaped error (via werr, wrapped
// by the caller) on any compile failure or duplicate ID — the engine never
// starts with a partially-usable rule set (spec.md §4.2 "Failure model").
func Compile(specs []RuleSpec, maxInspectBytes int) (*Engine, error) {
	if maxInspectBytes <= 0 {
		maxInspectBytes = normalize.DefaultMaxInspectBytes
	}

	seen := make(map[string]struct{}, len(specs))
	compiled := make([]Rule, 0, len(specs))

	for _, spec := range specs {
		if spec.ID == "" {
			return nil, fmt.Errorf("rule with empty id")
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", spec.ID)
		}
		seen[spec.ID] = struct{}{}

		pattern, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid pattern %q: %w", spec.ID, spec.Pattern, err)
		}
		projector, err := compileTarget(spec.Target)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", spec.ID, err)
		}
		if spec.Score < 0 {
			return nil, fmt.Errorf("rule %q: score must be non-negative, got %d", spec.ID, spec.Score)
		}

		compiled = append(compiled, Rule{
			ID:          spec.ID,
			Target:      spec.Target,
			Score:       spec.Score,
			Description: spec.Description,
			pattern:     pattern,
			projector:   projector,
		})
	}

	return &Engine{rules: compiled, maxInspectBytes: maxInspectBytes}, nil
}

// Evaluate implements spec.md §4.2's algorithm: project each rule's target
// out of ctx (truncated to the inspection budget), test the compiled
// pattern, and sum scores in load order. A rule contributes at most once.
func (e *Engine) Evaluate(ctx *normalize.Context) (score int, hits []string) {
	for _, r := range e.rules {
		subject := r.projector(ctx)
		if len(subject) > e.maxInspectBytes {
			subject = subject[:e.maxInspectBytes]
		}
		if r.pattern.MatchString(subject) {
			score += r.Score
			hits = append(hits, r.ID)
		}
	}
	return score, hits
}

// Rules exposes the compiled rule set for introspection (admin endpoints,
// tests). The returned slice must not be mutated.
func (e *Engine) Rules() []Rule { return e.rules }
