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

package webhook

import (
	"context"
	"errors"
	"strings"

	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/types"
)

// Resolver picks the webhook for a job: explicit config first, then the
// self-hosted destination, else none.
type Resolver struct {
	selfHosted config.SelfHosted
	secrets    SecretSource
}

func NewResolver(selfHosted config.SelfHosted, secrets SecretSource) *Resolver {
	if secrets == nil {
		secrets = StaticSecret(selfHosted.WebhookHMACSecret)
	}
	return &Resolver{selfHosted: selfHosted, secrets: secrets}
}

// Resolve returns nil, nil when no webhook applies; callers skip delivery.
func (r *Resolver) Resolve(ctx context.Context, teamID, jobID string, explicit *types.WebhookConfig) (*types.ResolvedWebhook, error) {
	if explicit != nil {
		secret, err := r.secrets.TeamSecret(ctx, teamID)
		if err != nil && !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		return &types.ResolvedWebhook{Config: *explicit, Secret: optional(secret)}, nil
	}

	if !r.selfHosted.Enabled() {
		return nil, nil
	}

	selfHosted := true
	return &types.ResolvedWebhook{
		Config: types.WebhookConfig{
			URL:      strings.ReplaceAll(r.selfHosted.WebhookURL, config.JobIDPlaceholder, jobID),
			Headers:  map[string]string{},
			Metadata: map[string]string{},
			Events:   append([]types.EventKind(nil), types.AllEventKinds...),
		},
		Secret:       optional(r.selfHosted.WebhookHMACSecret),
		IsSelfHosted: &selfHosted,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
