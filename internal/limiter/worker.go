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
	"sync"
	"sync/atomic"
	"time"
)

const defaultIdleAfter = 5 * time.Minute

// Reaper periodically evicts idle, full buckets from a Store to keep
// memory bounded (spec.md §4.3). It is a thin background loop in the
// manner of the teacher's Worker.evictionLoop.
type Reaper struct {
	store     *Store
	interval  time.Duration
	idleAfter time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
	stopped   uint32
}

// NewReaper configures a Reaper that scans every interval and evicts
// buckets idle for at least idleAfter. idleAfter <= 0 uses the spec.md
// default of 5 minutes.
func NewReaper(store *Store, interval, idleAfter time.Duration) *Reaper {
	if idleAfter <= 0 {
		idleAfter = defaultIdleAfter
	}
	return &Reaper{
		store:     store,
		interval:  interval,
		idleAfter: idleAfter,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background eviction loop.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.store.reapIdle(r.idleAfter)
			case <-r.stopCh:
				return
			}
		}
	}()
}

// Stop halts the eviction loop and waits for it to exit. Safe to call
// multiple times.
func (r *Reaper) Stop() {
	if !atomic.CompareAndSwapUint32(&r.stopped, 0, 1) {
		return
	}
	close(r.stopCh)
	r.wg.Wait()
}
