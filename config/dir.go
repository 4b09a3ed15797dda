package config

import (
	"os"
	"path"
)

const (
	DefaultConfigBase   = "egress.conf"
	defaultWorkDir      = ".egress"
	defaultSysLocalPath = "/etc/egress"
)

func LocalUserPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return defaultSysLocalPath
	}
	return path.Join(homeDir, defaultWorkDir)
}

// DefaultConfigPath is only used when it exists, env settings alone are a valid setup.
func DefaultConfigPath() string {
	return path.Join(LocalUserPath(), DefaultConfigBase)
}
