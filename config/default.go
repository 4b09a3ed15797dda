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

package config

const (
	DefaultWebhookTimeout       = 10
	DefaultLegacyWebhookTimeout = 30
	defaultSecretCacheSize      = 1024
	defaultSecretCacheExpire    = 60
)

func DefaultConfig() Config {
	return Config{
		Api: Api{
			Enable:  false,
			Host:    "127.0.0.1",
			Port:    3012,
			Metrics: true,
		},
		Webhook: Webhook{
			Timeout:       DefaultWebhookTimeout,
			LegacyTimeout: DefaultLegacyWebhookTimeout,
			MaxAttempts:   1,
			Parallel:      16,
		},
		Team: Team{
			SecretCacheSize:   defaultSecretCacheSize,
			SecretCacheExpire: defaultSecretCacheExpire,
		},
	}
}
