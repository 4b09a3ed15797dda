package config

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basenana/egress/config"
)

var WorkSpace string

func init() {
	RunCmd.AddCommand(initCmd)
	RunCmd.PersistentFlags().StringVar(&WorkSpace, "workspace", config.LocalUserPath(), "egress workspace")
}

var RunCmd = &cobra.Command{
	Use:   "config",
	Short: "egress config management",
	Run: func(cmd *cobra.Command, args []string) {
		if config.FilePath == "" {
			config.FilePath = localConfigFilePath(WorkSpace)
		}
		fmt.Printf("Workspace Config: %s\n\n", config.FilePath)

		cfg, err := config.NewConfigLoader().GetConfig()
		if err != nil {
			fmt.Printf("load config failed: %s\n", err.Error())
			fmt.Println("Generate local configuration with 'egress config init'")
			return
		}

		raw, err := json.MarshalIndent(maskSecrets(cfg), "", "    ")
		if err != nil {
			fmt.Printf("marshal config failed: %s\n", err.Error())
			return
		}
		fmt.Println(string(raw))
	},
}
