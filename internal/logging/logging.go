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

// Package logging provides the structured per-request and operational
// loggers, built on logrus the way persistorai-persistor wires its
// handlers: a shared *logrus.Logger passed in, fields attached with
// WithFields rather than formatted into the message string.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

const maxLoggedRuleIDs = 16

// New builds the process-wide structured logger. level accepts any value
// logrus.ParseLevel understands ("debug", "info", "warn", "error"); an
// unrecognized value falls back to info.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap:        logrus.FieldMap{logrus.FieldKeyTime: "timestamp"},
	})
	log.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// RequestFields builds the canonical field set for one completed request's
// log line (spec.md §6: request_id, client_ip, method, path, verdict,
// score, rule_ids, upstream, status, latency_ms). ipPolicyHit adds one
// supplemental field reporting whether an IP allow-/block-list fast path
// decided the request instead of the rule engine.
func RequestFields(requestID, clientIP, method, path, verdict string, score int, ruleIDs []string, upstream string, status int, latencyMS float64, ipPolicyHit bool) logrus.Fields {
	if len(ruleIDs) > maxLoggedRuleIDs {
		ruleIDs = ruleIDs[:maxLoggedRuleIDs]
	}
	return logrus.Fields{
		"request_id":    requestID,
		"client_ip":     clientIP,
		"method":        method,
		"path":          path,
		"verdict":       verdict,
		"score":         score,
		"rule_ids":      ruleIDs,
		"upstream":      upstream,
		"status":        status,
		"latency_ms":    latencyMS,
		"ip_policy_hit": ipPolicyHit,
	}
}
