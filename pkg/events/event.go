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

package events

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyponet/eventbus"

	"github.com/basenana/egress/pkg/types"
)

// Validate accepts <job type>.<kind> with a known kind.
func Validate(event types.WebhookEvent) error {
	jobType, _, found := strings.Cut(string(event), ".")
	if !found || jobType == "" || strings.ContainsAny(jobType, "*") || !event.Kind().Valid() {
		return fmt.Errorf("%w: %s", types.ErrUnsupportedEvent, event)
	}
	return nil
}

func BuildJobEvent(event types.WebhookEvent, wctx types.WebhookContext, payload types.WebhookPayload, hook *types.WebhookConfig) *types.JobEvent {
	return &types.JobEvent{
		ID:      uuid.New().String(),
		Event:   event,
		Context: wctx,
		Payload: payload,
		Webhook: hook,
	}
}

// Publish hands evt to the webhook subscribers, it never blocks on delivery.
func Publish(evt *types.JobEvent) error {
	if err := Validate(evt.Event); err != nil {
		return err
	}
	eventbus.Publish(WebhookTopic(evt.Event), evt)
	return nil
}
