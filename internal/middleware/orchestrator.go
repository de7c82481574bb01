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

// Package middleware sequences the normalizer, IP fast paths, rate
// limiter, rule engine, router, and forward proxy into the single
// canonical request pipeline of spec.md §4.6.
package middleware

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"wafproxy/internal/config"
	"wafproxy/internal/ipset"
	"wafproxy/internal/limiter"
	"wafproxy/internal/logging"
	"wafproxy/internal/normalize"
	"wafproxy/internal/proxy"
	"wafproxy/internal/requestid"
	"wafproxy/internal/rules"
	"wafproxy/internal/telemetry"
	"wafproxy/internal/werr"
)

// Orchestrator owns the pipeline's runtime collaborators. Rules, router,
// and thresholds are read fresh from the config.Store on every request
// (spec.md §5 "readers acquire the current reference at request start").
type Orchestrator struct {
	Configs   *config.Store
	Limiter   *limiter.Store
	Forwarder *proxy.Forwarder
	Log       *logrus.Logger

	allowlist *ipset.Set
	blocklist *ipset.Set
}

// New builds an Orchestrator. allowlist/blocklist are derived once from the
// initial snapshot's CIDR entries; they are re-derived by the caller on
// every config reload via RefreshIPSets.
func New(configs *config.Store, lim *limiter.Store, fwd *proxy.Forwarder, log *logrus.Logger) (*Orchestrator, error) {
	o := &Orchestrator{Configs: configs, Limiter: lim, Forwarder: fwd, Log: log}
	if err := o.RefreshIPSets(); err != nil {
		return nil, err
	}
	return o, nil
}

// RefreshIPSets rebuilds the allow-/block-list matchers from the current
// config snapshot. Call after every config.Store.Replace.
func (o *Orchestrator) RefreshIPSets() error {
	cfg := o.Configs.Current()
	allow, err := ipset.New(cfg.IPAllowlist)
	if err != nil {
		return werr.Wrap(werr.ConfigFatal, "ip_allowlist", err)
	}
	block, err := ipset.New(cfg.IPBlocklist)
	if err != nil {
		return werr.Wrap(werr.ConfigFatal, "ip_blocklist", err)
	}
	o.allowlist = allow
	o.blocklist = block
	return nil
}

// ServeHTTP runs the full pipeline for one request (spec.md §4.6, steps
// 2-9; admin-endpoint short-circuiting is handled by the outer gorilla/mux
// router registered in admin.go, not here).
func (o *Orchestrator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := o.Configs.Current()

	trusted, err := normalize.NewTrustedPeers(cfg.TrustedProxies)
	if err != nil {
		// Already validated at load time; defensive only.
		trusted = normalize.TrustedPeers{}
	}
	normalizer := normalize.New(trusted, cfg.WAFSettings.MaxInspectBytes)
	ctx := normalizer.Normalize(r, requestid.New())

	addr, addrErr := netip.ParseAddr(ctx.ClientIP)

	switch {
	case addrErr == nil && o.allowlist.Contains(addr):
		ctx.Verdict = normalize.Allow
		ctx.IPPolicyHit = true
	case addrErr == nil && o.blocklist.Contains(addr):
		ctx.Verdict = normalize.Block
		ctx.Score = blockScoreFloor(cfg.Thresholds)
		ctx.RuleHits = []string{rules.IPBlockRuleID}
		ctx.IPPolicyHit = true
	default:
		if !o.Limiter.Allow(ctx.ClientIP) {
			o.denyRateLimited(w, ctx, start)
			return
		}
		score, hits := cfg.Rules.Evaluate(ctx)
		ctx.Score = score
		ctx.RuleHits = hits
		ctx.Verdict = toNormalizeVerdict(cfg.Thresholds.Verdict(score))
	}

	effectiveVerdict := ctx.Verdict
	if ctx.Verdict == normalize.Block && cfg.WAFSettings.Mode == config.ModeMonitor {
		effectiveVerdict = normalize.Suspicious
	}

	if effectiveVerdict == normalize.Block {
		o.writeBlocked(w, ctx, start)
		return
	}

	o.forward(w, r, ctx, cfg, effectiveVerdict, start)
}

// forward routes and proxies the request. effectiveVerdict is what goes on
// the downstream X-WAF-Decision header (already downgraded for monitor
// mode if applicable); ctx.Verdict keeps the original verdict, which is
// what logs and metrics record (spec.md §4.2 monitor-mode note).
func (o *Orchestrator) forward(w http.ResponseWriter, r *http.Request, ctx *normalize.Context, cfg *config.Config, effectiveVerdict normalize.Verdict, start time.Time) {
	upstream, err := cfg.Router.Select(ctx.Host, ctx.PathNorm)
	if err != nil {
		o.writeUpstreamError(w, ctx, werr.Wrap(werr.UpstreamUnavailable, "selecting upstream", err), start)
		return
	}
	ctx.ChosenUpstream = upstream.Name

	stampDecisionHeaders(w, effectiveVerdict, ctx.Score, ctx.RequestID)

	result := o.Forwarder.Forward(w, r, upstream, ctx.ClientIP, ctx.PeerTrusted, ctx.PathRaw)
	telemetry.ObserveUpstreamLatency(result.Duration.Seconds())

	if result.Err != nil {
		if result.Err.Kind == werr.ClientAbort {
			telemetry.RecordClientAbort()
			o.logCompletion(ctx, upstream.Name, 0, time.Since(start))
			return
		}
		telemetry.RecordUpstreamError(result.Err.Kind.MetricLabel())
		status := result.Err.Kind.Status()
		if status == 0 {
			status = http.StatusBadGateway
		}
		if result.StatusCode == 0 {
			// No upstream headers were relayed yet, so the error status can
			// still be sent to the client.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": string(result.Err.Kind)})
		}
		ctx.Status = status
		telemetry.RecordRequest(ctx.Verdict.String(), status)
		o.logCompletion(ctx, upstream.Name, status, time.Since(start))
		return
	}

	ctx.Status = result.StatusCode
	telemetry.RecordRequest(ctx.Verdict.String(), result.StatusCode)
	telemetry.RecordRuleHits(ctx.RuleHits)
	o.logCompletion(ctx, upstream.Name, result.StatusCode, time.Since(start))
}

func (o *Orchestrator) writeUpstreamError(w http.ResponseWriter, ctx *normalize.Context, e *werr.Error, start time.Time) {
	stampDecisionHeaders(w, ctx.Verdict, ctx.Score, ctx.RequestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Kind.Status())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(e.Kind)})
	telemetry.RecordUpstreamError(e.Kind.MetricLabel())
	ctx.Status = e.Kind.Status()
	telemetry.RecordRequest(ctx.Verdict.String(), ctx.Status)
	o.logCompletion(ctx, "", ctx.Status, time.Since(start))
}

func (o *Orchestrator) denyRateLimited(w http.ResponseWriter, ctx *normalize.Context, start time.Time) {
	// ctx.Verdict is still its zero value (Allow): the limiter denies
	// admission before the rule engine ever assigns a WAF verdict.
	stampDecisionHeaders(w, ctx.Verdict, 0, ctx.RequestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limited"})

	telemetry.RecordRateLimited(ctx.ClientIP)
	ctx.Status = http.StatusTooManyRequests
	telemetry.RecordRequest(ctx.Verdict.String(), ctx.Status)
	o.logCompletion(ctx, "", ctx.Status, time.Since(start))
}

func (o *Orchestrator) writeBlocked(w http.ResponseWriter, ctx *normalize.Context, start time.Time) {
	stampDecisionHeaders(w, normalize.Block, ctx.Score, ctx.RequestID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(struct {
		Blocked bool     `json:"blocked"`
		Reason  string   `json:"reason"`
		Score   int      `json:"score"`
		RuleIDs []string `json:"rule_ids"`
	}{true, "waf", ctx.Score, ctx.RuleHits})

	ctx.Status = http.StatusForbidden
	telemetry.RecordRequest(normalize.Block.String(), ctx.Status)
	telemetry.RecordRuleHits(ctx.RuleHits)
	o.logCompletion(ctx, "", ctx.Status, time.Since(start))
}

func (o *Orchestrator) logCompletion(ctx *normalize.Context, upstream string, status int, latency time.Duration) {
	fields := logging.RequestFields(ctx.RequestID, ctx.ClientIP, ctx.Method, ctx.PathNorm, ctx.Verdict.String(), ctx.Score, ctx.RuleHits, upstream, status, float64(latency.Microseconds())/1000.0, ctx.IPPolicyHit)
	o.Log.WithFields(fields).Info("request completed")
}

func stampDecisionHeaders(w http.ResponseWriter, verdict normalize.Verdict, score int, requestID string) {
	h := w.Header()
	h.Set("X-WAF-Decision", verdict.String())
	h.Set("X-WAF-Score", strconv.Itoa(score))
	h.Set("X-Request-ID", requestID)
}

func toNormalizeVerdict(k rules.VerdictKind) normalize.Verdict {
	switch k {
	case rules.KindBlock:
		return normalize.Block
	case rules.KindSuspicious:
		return normalize.Suspicious
	default:
		return normalize.Allow
	}
}

// blockScoreFloor reports a score that always maps to BLOCK under the
// current thresholds, for the IP block-list's synthetic (∞, BLOCK) result
// (spec.md §4.2 "Fast paths").
func blockScoreFloor(t rules.Thresholds) int {
	if t.Block > 0 {
		return t.Block
	}
	return 1
}
