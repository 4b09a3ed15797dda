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

import (
	"fmt"
	"net/url"
	"strings"
)

type verifier func(config *Config) error

var verifiers = []verifier{
	setDefaultValue,
	checkApiConfig,
	checkProxyConfig,
	checkSelfHostedConfig,
	checkTeamConfig,
}

func setDefaultValue(config *Config) error {
	if config.Webhook.Timeout <= 0 {
		config.Webhook.Timeout = DefaultWebhookTimeout
	}
	if config.Webhook.LegacyTimeout <= 0 {
		config.Webhook.LegacyTimeout = DefaultLegacyWebhookTimeout
	}
	if config.Webhook.MaxAttempts <= 0 {
		config.Webhook.MaxAttempts = 1
	}
	if config.Webhook.Parallel <= 0 {
		config.Webhook.Parallel = 1
	}
	if config.Team.SecretCacheSize <= 0 {
		config.Team.SecretCacheSize = defaultSecretCacheSize
	}
	if config.Team.SecretCacheExpire <= 0 {
		config.Team.SecretCacheExpire = defaultSecretCacheExpire
	}
	return nil
}

func checkApiConfig(config *Config) error {
	aCfg := config.Api
	if !aCfg.Enable {
		return nil
	}
	if aCfg.Host == "" || aCfg.Port == 0 {
		return fmt.Errorf("api.host or api.port not config")
	}
	return nil
}

func checkProxyConfig(config *Config) error {
	pCfg := config.Proxy
	if pCfg == nil {
		return nil
	}
	if pCfg.Server == "" {
		return fmt.Errorf("proxy.server is empty")
	}
	u, err := pCfg.URL()
	if err != nil {
		return fmt.Errorf("parse proxy.server error: %s", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported proxy scheme %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy.server has no host")
	}
	return nil
}

func checkSelfHostedConfig(config *Config) error {
	sCfg := config.SelfHosted
	if !sCfg.Enabled() {
		return nil
	}
	u, err := url.Parse(strings.ReplaceAll(sCfg.WebhookURL, JobIDPlaceholder, "job"))
	if err != nil {
		return fmt.Errorf("parse self_hosted.webhook_url error: %s", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("self_hosted.webhook_url must be http or https")
	}
	return nil
}

func checkTeamConfig(config *Config) error {
	t := config.Team
	if !t.UseDBAuthentication {
		return nil
	}
	switch t.Type {
	case SqliteTeamStore:
		if t.Path == "" {
			return fmt.Errorf("path for sqlite db file is empty")
		}
		return nil
	case PostgresTeamStore:
		if t.DSN == "" {
			return fmt.Errorf("db dsn is empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown team store type %s", t.Type)
	}
}

func Verify(cfg *Config) error {
	for _, f := range verifiers {
		if err := f(cfg); err != nil {
			return err
		}
	}
	return nil
}
