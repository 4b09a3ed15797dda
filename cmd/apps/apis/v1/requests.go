/*
 Copyright 2023 NanaFS Authors.

 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package v1

import "github.com/basenana/egress/pkg/types"

// JobEventRequest is posted by the job subsystem on every lifecycle change.
type JobEventRequest struct {
	Event               types.WebhookEvent   `json:"event" binding:"required"`
	TeamID              string               `json:"team_id"`
	V0                  bool                 `json:"v0,omitempty"`
	Success             bool                 `json:"success"`
	Data                interface{}          `json:"data,omitempty"`
	Error               string               `json:"error,omitempty"`
	Webhook             *types.WebhookConfig `json:"webhook,omitempty"`
	SkipTLSVerification bool                 `json:"skip_tls_verification,omitempty"`

	// Sync waits for the delivery result instead of queueing it on the bus.
	Sync bool `json:"sync,omitempty"`
}

type JobEventResponse struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
}

type ProbeRequest struct {
	URL                 string `json:"url" binding:"required"`
	SkipTLSVerification bool   `json:"skip_tls_verification,omitempty"`
}
