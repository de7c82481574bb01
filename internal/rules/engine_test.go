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
	"testing"

	"wafproxy/internal/normalize"
)

func TestCompile_RejectsDuplicateIDs(t *testing.T) {
	specs := []RuleSpec{
		{ID: "PT001", Target: "path", Pattern: `\.\./`, Score: 10},
		{ID: "PT001", Target: "query", Pattern: `foo`, Score: 5},
	}
	if _, err := Compile(specs, 0); err == nil {
		t.Fatal("expected ConfigFatal-shaped error for duplicate rule ids")
	}
}

func TestCompile_RejectsBadPattern(t *testing.T) {
	specs := []RuleSpec{{ID: "X", Target: "path", Pattern: `(unclosed`, Score: 1}}
	if _, err := Compile(specs, 0); err == nil {
		t.Fatal("expected compile error for invalid regex")
	}
}

func TestEvaluate_PathTraversalScenario(t *testing.T) {
	// Scenario 1 of spec.md §8.
	specs := []RuleSpec{{ID: "PT001", Target: "path", Pattern: `\.\./`, Score: 10}}
	eng, err := Compile(specs, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := &normalize.Context{PathRaw: "/../etc/passwd"}
	score, hits := eng.Evaluate(ctx)
	if score != 10 || len(hits) != 1 || hits[0] != "PT001" {
		t.Fatalf("got score=%d hits=%v, want score=10 hits=[PT001]", score, hits)
	}
}

func TestEvaluate_UserAgentScenario(t *testing.T) {
	// Scenario 2 of spec.md §8.
	specs := []RuleSpec{{ID: "UA001", Target: "header:user-agent", Pattern: "sqlmap", Score: 6}}
	eng, err := Compile(specs, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := &normalize.Context{HeadersSubset: map[string]string{"user-agent": "sqlmap"}}
	score, hits := eng.Evaluate(ctx)
	if score != 6 || len(hits) != 1 || hits[0] != "UA001" {
		t.Fatalf("got score=%d hits=%v, want score=6 hits=[UA001]", score, hits)
	}
}

func TestEvaluate_LoadOrderTieBreak(t *testing.T) {
	specs := []RuleSpec{
		{ID: "second", Target: "path", Pattern: "x", Score: 5},
		{ID: "first", Target: "query", Pattern: "x", Score: 5},
	}
	eng, err := Compile(specs, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := &normalize.Context{PathRaw: "x", QueryRaw: "x"}
	_, hits := eng.Evaluate(ctx)
	if len(hits) != 2 || hits[0] != "second" || hits[1] != "first" {
		t.Fatalf("expected load order preserved, got %v", hits)
	}
}

func TestEvaluate_DeterministicAcrossRuns(t *testing.T) {
	specs := []RuleSpec{{ID: "A", Target: "path", Pattern: "a", Score: 1}}
	eng, err := Compile(specs, 0)
	if err != nil {
		t.Fatal(err)
	}
	ctx := &normalize.Context{PathRaw: "abc"}
	s1, h1 := eng.Evaluate(ctx)
	s2, h2 := eng.Evaluate(ctx)
	if s1 != s2 || len(h1) != len(h2) || h1[0] != h2[0] {
		t.Fatalf("two evaluations diverged: (%d,%v) vs (%d,%v)", s1, h1, s2, h2)
	}
}

func TestThresholds_VerdictMapping(t *testing.T) {
	th := Thresholds{Allow: 5, Challenge: 6, Block: 10}
	cases := map[int]VerdictKind{
		0:  KindAllow,
		5:  KindAllow,
		6:  KindSuspicious,
		9:  KindSuspicious,
		10: KindBlock,
		99: KindBlock,
	}
	for score, want := range cases {
		if got := th.Verdict(score); got != want {
			t.Errorf("Verdict(%d) = %v, want %v", score, got, want)
		}
	}
}

func TestEvaluate_TruncatesBeforeMatching(t *testing.T) {
	specs := []RuleSpec{{ID: "LATE", Target: "path", Pattern: "zzz$", Score: 1}}
	eng, err := Compile(specs, 3) // tiny inspection budget
	if err != nil {
		t.Fatal(err)
	}
	ctx := &normalize.Context{PathRaw: "aaazzz"}
	score, hits := eng.Evaluate(ctx)
	if score != 0 || len(hits) != 0 {
		t.Fatalf("expected truncation to hide the match, got score=%d hits=%v", score, hits)
	}
}
