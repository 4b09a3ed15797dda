package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/basenana/egress/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "generate local configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if err := initDefaultConfig(WorkSpace); err != nil {
			fmt.Printf("init config failed: %s\n", err.Error())
			return
		}
		fmt.Println("Generate local configuration succeed")
	},
}

func initDefaultConfig(workspace string) error {
	fmt.Printf("Workspace: %s\n", workspace)
	if err := mkdir(workspace); err != nil {
		return fmt.Errorf("init workspace failed: %w", err)
	}

	conf := config.DefaultConfig()
	conf.Api.Enable = true
	conf.Team.Type = config.SqliteTeamStore
	conf.Team.Path = localDbFilePath(workspace)

	configPath := localConfigFilePath(workspace)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s already exists", configPath)
	}
	fmt.Printf("Workspace Config: %s\n", configPath)

	raw, _ := json.MarshalIndent(conf, "", "    ")
	if err := os.WriteFile(configPath, raw, 0600); err != nil {
		return fmt.Errorf("wirteback config file failed: %w", err)
	}
	return nil
}
