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
	SqliteTeamStore   = "sqlite"
	PostgresTeamStore = "postgres"
)

// Config is loaded once at startup and must not be modified afterwards.
type Config struct {
	Api        Api        `json:"api"`
	Proxy      *Proxy     `json:"proxy,omitempty"`
	SelfHosted SelfHosted `json:"self_hosted"`
	Webhook    Webhook    `json:"webhook"`
	Team       Team       `json:"team"`

	SentryDSN string `json:"sentry_dsn,omitempty"`
	Debug     bool   `json:"debug,omitempty"`
}

type Api struct {
	Enable  bool   `json:"enable"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Pprof   bool   `json:"pprof"`
	Metrics bool   `json:"metrics"`
}

// Proxy is the upstream proxy every dispatcher tunnels through when set.
type Proxy struct {
	Server              string `json:"server"`
	Username            string `json:"username,omitempty"`
	Password            string `json:"password,omitempty"`
	SkipTLSVerification bool   `json:"skip_tls_verification,omitempty"`
}

// SelfHosted holds the operator declared webhook destination.
type SelfHosted struct {
	WebhookURL        string `json:"webhook_url,omitempty"`
	WebhookHMACSecret string `json:"webhook_hmac_secret,omitempty"`
}

func (s SelfHosted) Enabled() bool {
	return s.WebhookURL != ""
}

type Webhook struct {
	// seconds
	Timeout       int `json:"timeout,omitempty"`
	LegacyTimeout int `json:"legacy_timeout,omitempty"`
	MaxAttempts   int `json:"max_attempts,omitempty"`
	Parallel      int `json:"parallel,omitempty"`
}

// Team controls where team HMAC secrets come from when db authentication is on.
type Team struct {
	UseDBAuthentication bool   `json:"use_db_authentication"`
	Type                string `json:"type,omitempty"`
	Path                string `json:"path,omitempty"`
	DSN                 string `json:"dsn,omitempty"`
	SecretCacheSize     int    `json:"secret_cache_size,omitempty"`
	SecretCacheExpire   int    `json:"secret_cache_expire,omitempty"`
}
