package main

import (
	"os"

	"github.com/basenana/egress/cmd/apps"
	"github.com/basenana/egress/utils/logger"
)

func main() {
	defer logger.Sync()
	if err := apps.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
