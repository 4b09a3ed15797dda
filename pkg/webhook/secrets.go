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
	"time"

	"github.com/bluele/gcache"

	"github.com/basenana/egress/pkg/types"
)

// SecretSource supplies the HMAC secret used to sign explicit webhooks.
// An empty secret means unsigned delivery.
type SecretSource interface {
	TeamSecret(ctx context.Context, teamID string) (string, error)
}

type StaticSecret string

func (s StaticSecret) TeamSecret(ctx context.Context, teamID string) (string, error) {
	return string(s), nil
}

type cachedSecrets struct {
	source SecretSource
	cache  gcache.Cache
}

// NewCachedSecretSource memoizes lookups per team, teams without a secret
// are cached as empty too.
func NewCachedSecretSource(source SecretSource, size int, expire time.Duration) SecretSource {
	c := &cachedSecrets{source: source}
	c.cache = gcache.New(size).LRU().Expiration(expire).
		LoaderFunc(func(key interface{}) (interface{}, error) {
			secret, err := source.TeamSecret(context.Background(), key.(string))
			if errors.Is(err, types.ErrNotFound) {
				return "", nil
			}
			return secret, err
		}).Build()
	return c
}

func (c *cachedSecrets) TeamSecret(ctx context.Context, teamID string) (string, error) {
	val, err := c.cache.Get(teamID)
	if err != nil {
		return "", err
	}
	return val.(string), nil
}
