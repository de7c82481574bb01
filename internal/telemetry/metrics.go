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

// Package telemetry registers the five contractual Prometheus series
// (spec.md §6) and exposes small recording helpers so the orchestrator
// never touches the prometheus API directly.
package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "requests_total",
		Help: "Total requests handled by the proxy, by verdict and response status.",
	}, []string{"verdict", "status"})

	ruleHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waf_rule_hits_total",
		Help: "Total rule matches, by rule ID.",
	}, []string{"rule_id"})

	rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Total requests denied by the rate limiter, by client IP.",
	}, []string{"client_ip"})

	upstreamLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "upstream_latency_seconds",
		Help:    "Latency of upstream round trips.",
		Buckets: prometheus.DefBuckets,
	})

	upstreamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_errors_total",
		Help: "Total upstream forwarding failures, by error type.",
	}, []string{"error_type"})

	clientAbortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "client_aborts_total",
		Help: "Total requests where the client disconnected before a response was produced.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, ruleHitsTotal, rateLimitedTotal, upstreamLatency, upstreamErrorsTotal, clientAbortsTotal)
}

// RecordClientAbort increments client_aborts_total. Per spec.md §4.5, an
// aborted request records no status-labeled requests_total entry.
func RecordClientAbort() {
	clientAbortsTotal.Inc()
}

// RecordRequest increments requests_total for the final verdict/status pair.
func RecordRequest(verdict string, status int) {
	requestsTotal.WithLabelValues(verdict, statusLabel(status)).Inc()
}

// RecordRuleHits increments waf_rule_hits_total once per matched rule ID.
func RecordRuleHits(ruleIDs []string) {
	for _, id := range ruleIDs {
		ruleHitsTotal.WithLabelValues(id).Inc()
	}
}

// RecordRateLimited increments rate_limited_requests_total for clientIP.
func RecordRateLimited(clientIP string) {
	rateLimitedTotal.WithLabelValues(clientIP).Inc()
}

// ObserveUpstreamLatency records one upstream round-trip duration in seconds.
func ObserveUpstreamLatency(seconds float64) {
	upstreamLatency.Observe(seconds)
}

// RecordUpstreamError increments upstream_errors_total for a non-empty
// werr.Kind.MetricLabel() value.
func RecordUpstreamError(label string) {
	if label == "" {
		return
	}
	upstreamErrorsTotal.WithLabelValues(label).Inc()
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
