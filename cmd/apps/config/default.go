package config

import (
	"os"
	"path"

	"github.com/basenana/egress/config"
)

const (
	defaultSqliteFile = "teams.db"
	maskedValue       = "******"
)

func localConfigFilePath(local string) string {
	return path.Join(local, config.DefaultConfigBase)
}

func localDbFilePath(local string) string {
	return path.Join(local, defaultSqliteFile)
}

func mkdir(path string) error {
	d, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err == nil {
		if !d.IsDir() {
			return os.ErrExist
		}
		return nil
	}
	return os.MkdirAll(path, 0755)
}

func maskSecrets(cfg config.Config) config.Config {
	if cfg.SelfHosted.WebhookHMACSecret != "" {
		cfg.SelfHosted.WebhookHMACSecret = maskedValue
	}
	if cfg.Proxy != nil {
		proxy := *cfg.Proxy
		if proxy.Password != "" {
			proxy.Password = maskedValue
		}
		cfg.Proxy = &proxy
	}
	if cfg.Team.DSN != "" {
		cfg.Team.DSN = maskedValue
	}
	if cfg.SentryDSN != "" {
		cfg.SentryDSN = maskedValue
	}
	return cfg
}
