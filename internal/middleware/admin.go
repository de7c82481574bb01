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

package middleware

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ready gates /readyz independently of process liveness, so a load
// balancer can stop sending traffic during the brief startup window before
// the first config snapshot is published (spec.md §9).
type Ready struct {
	ready atomic.Bool
}

func (r *Ready) Set(v bool) { r.ready.Store(v) }

// AdminRouter builds the gorilla/mux router serving the administrative
// surface, meant to be bound on a separate address from public traffic
// (spec.md §9 "Admin bind separation").
func AdminRouter(ready *Ready) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !ready.ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// PublicRouter wires the admin endpoints ahead of the WAF pipeline on the
// same listener (spec.md §4.6 step 1), for deployments that don't split
// traffic onto a separate admin address.
func PublicRouter(ready *Ready, orchestrator http.Handler) *mux.Router {
	r := mux.NewRouter()
	admin := AdminRouter(ready)
	r.Path("/healthz").Handler(admin)
	r.Path("/readyz").Handler(admin)
	r.Path("/metrics").Handler(admin)
	r.PathPrefix("/").Handler(orchestrator)
	return r
}
