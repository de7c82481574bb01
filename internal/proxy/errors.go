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

package proxy

import (
	"context"
	"errors"
	"net"
	"net/url"

	"wafproxy/internal/werr"
)

// classify maps a RoundTrip error into one of the four upstream error kinds
// spec.md §4.5 requires the state machine to distinguish: the caller
// cancelling, a connect-phase failure, a read/write-phase failure, or a
// deadline being exceeded at either phase.
func classify(ctx context.Context, err error, dialPhase bool) werr.Kind {
	if ctx.Err() == context.Canceled {
		return werr.ClientAbort
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return werr.UpstreamTimeout
	}
	if ctx.Err() == context.DeadlineExceeded {
		return werr.UpstreamTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return werr.UpstreamTimeout
		}
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" {
			return werr.UpstreamConnect
		}
		return werr.UpstreamRead
	}

	if dialPhase {
		return werr.UpstreamConnect
	}
	return werr.UpstreamRead
}
