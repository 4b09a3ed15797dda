package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var FilePath string

type Loader interface {
	GetConfig() (Config, error)
}

type lookupEnvFn func(key string) (string, bool)

type localLoader struct {
	lookupEnv lookupEnvFn
}

func (l localLoader) GetConfig() (Config, error) {
	result := DefaultConfig()

	filePath := FilePath
	if filePath == "" {
		if _, err := os.Stat(DefaultConfigPath()); err == nil {
			filePath = DefaultConfigPath()
		}
	}

	if filePath != "" {
		if err := loadConfigFile(filePath, &result); err != nil {
			return result, err
		}
	}

	if err := overlayEnv(&result, l.lookupEnv); err != nil {
		return result, err
	}

	if err := Verify(&result); err != nil {
		return result, errors.Wrap(err, "verify config failed")
	}
	return result, nil
}

func loadConfigFile(filePath string, result *Config) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open config file failed: %s", err.Error())
	}
	defer f.Close()

	jd := json.NewDecoder(f)
	if err = jd.Decode(result); err != nil {
		return fmt.Errorf("parse config failed: %s", err.Error())
	}
	return nil
}

func overlayEnv(cfg *Config, lookup lookupEnvFn) error {
	if val, ok := lookup(EnvSelfHostedWebhookURL); ok && val != "" {
		cfg.SelfHosted.WebhookURL = val
	}
	if val, ok := lookup(EnvSelfHostedWebhookHMACSecret); ok && val != "" {
		cfg.SelfHosted.WebhookHMACSecret = val
	}
	if val, ok := lookup(EnvUseDBAuthentication); ok {
		cfg.Team.UseDBAuthentication = strings.EqualFold(strings.TrimSpace(val), "true")
	}
	if val, ok := lookup(EnvDatabaseURL); ok && val != "" {
		cfg.Team.DSN = val
		if cfg.Team.Type == "" {
			cfg.Team.Type = PostgresTeamStore
		}
	}

	if val, ok := lookup(EnvSentryDSN); ok && val != "" {
		cfg.SentryDSN = val
	}
	if val, ok := lookup(EnvProxyServer); ok && val != "" {
		if cfg.Proxy == nil {
			cfg.Proxy = &Proxy{}
		}
		cfg.Proxy.Server = val
	}
	if cfg.Proxy == nil {
		return nil
	}
	if val, ok := lookup(EnvProxyUsername); ok && val != "" {
		cfg.Proxy.Username = val
	}
	if val, ok := lookup(EnvProxyPassword); ok {
		cfg.Proxy.Password = val
	}
	if val, ok := lookup(EnvProxySkipTLSVerification); ok && val != "" {
		skip, err := strconv.ParseBool(val)
		if err != nil {
			return errors.Wrapf(err, "parse %s", EnvProxySkipTLSVerification)
		}
		cfg.Proxy.SkipTLSVerification = skip
	}
	return nil
}

func NewConfigLoader() Loader {
	return localLoader{lookupEnv: os.LookupEnv}
}

type mockLoader struct {
	cfg Config
}

func (m mockLoader) GetConfig() (Config, error) {
	return m.cfg, nil
}

func NewMockConfigLoader(cfg Config) Loader {
	return mockLoader{cfg: cfg}
}
