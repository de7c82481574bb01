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

// State names one point in the lifecycle of a forwarded request, per
// spec.md §4.5's explicit state machine.
type State string

const (
	StateIdle          State = "IDLE"
	StateDialing       State = "DIALING"
	StateHeadersSent   State = "HEADERS_SENT"
	StateStreamingReq  State = "STREAMING_REQ"
	StateAwaitHeaders  State = "AWAITING_HEADERS"
	StateStreamingResp State = "STREAMING_RESP"
	StateDone          State = "DONE"
	StateFailed        State = "FAILED"
)
