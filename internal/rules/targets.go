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
	"net/textproto"
	"strings"

	"wafproxy/internal/normalize"
)

// targetProjector pulls the string a rule's pattern is matched against out
// of a normalized request. Compiled once per rule at load time so
// evaluation never does string matching on the target kind itself
// (spec.md §9).
type targetProjector func(ctx *normalize.Context) string

// compileTarget turns a configured target string into a projector, or
// returns an error for an unrecognized target kind (ConfigFatal material).
func compileTarget(target string) (targetProjector, error) {
	switch {
	case target == "path":
		return func(ctx *normalize.Context) string { return ctx.PathRaw }, nil
	case target == "query":
		return func(ctx *normalize.Context) string { return ctx.QueryRaw }, nil
	case target == "method":
		return func(ctx *normalize.Context) string { return ctx.Method }, nil
	case target == "user_agent":
		return func(ctx *normalize.Context) string { return headerValue(ctx, "user-agent") }, nil
	case strings.HasPrefix(target, "header:"):
		name := strings.ToLower(strings.TrimPrefix(target, "header:"))
		if name == "" {
			return nil, fmt.Errorf("header target missing a name: %q", target)
		}
		return func(ctx *normalize.Context) string { return headerValue(ctx, name) }, nil
	default:
		return nil, fmt.Errorf("unknown rule target: %q", target)
	}
}

// headerValue resolves a lower-cased header name against the canonical
// subset first (already extracted and truncated by the normalizer) and
// falls back to the full header map for arbitrary header:<NAME> targets.
func headerValue(ctx *normalize.Context, lowerName string) string {
	if v, ok := ctx.HeadersSubset[lowerName]; ok {
		return v
	}
	canonical := textproto.CanonicalMIMEHeaderKey(lowerName)
	if vs, ok := ctx.AllHeaders[canonical]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
