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

package apps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/basenana/egress/cmd/apps/apis"
	v1 "github.com/basenana/egress/cmd/apps/apis/v1"
	configapp "github.com/basenana/egress/cmd/apps/config"
	"github.com/basenana/egress/config"
	"github.com/basenana/egress/pkg/egress"
	"github.com/basenana/egress/pkg/netguard"
	"github.com/basenana/egress/pkg/notify"
	"github.com/basenana/egress/pkg/teamstore"
	"github.com/basenana/egress/pkg/types"
	"github.com/basenana/egress/pkg/webhook"
	"github.com/basenana/egress/utils"
	"github.com/basenana/egress/utils/logger"
	"github.com/basenana/egress/utils/metrics"
)

func init() {
	RootCmd.AddCommand(daemonCmd)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(probeCmd)
	RootCmd.AddCommand(classifyCmd)
	RootCmd.AddCommand(configapp.RunCmd)
}

var RootCmd = &cobra.Command{
	Use:   "egress",
	Short: "Outbound HTTP gate",
	Long:  `SSRF protected outbound dispatcher and webhook delivery service.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitLogger()
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var (
	probeSkipTLS    bool
	probeSelfHosted bool
	probeTimeout    time.Duration
)

func init() {
	RootCmd.PersistentFlags().StringVar(&config.FilePath, "config", "", "egress config file")
	probeCmd.Flags().BoolVar(&probeSkipTLS, "skip-tls-verification", false, "skip certificate verification")
	probeCmd.Flags().BoolVar(&probeSelfHosted, "self-hosted", false, "use the variant that may reach private addresses")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", time.Second*10, "probe timeout")
}

var daemonCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook delivery service",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.NewConfigLoader().GetConfig()
		if err != nil {
			panic(err)
		}

		if cfg.Debug {
			logger.SetDebug(cfg.Debug)
		}
		if err = metrics.InitSentry(cfg.SentryDSN, config.VersionInfo().Version()); err != nil {
			panic(err)
		}

		factory, err := egress.NewFactory(cfg.Proxy)
		if err != nil {
			panic(err)
		}

		secrets, err := buildSecretSource(cfg)
		if err != nil {
			panic(err)
		}

		n := notify.NewNotify(webhook.NewResolver(cfg.SelfHosted, secrets), factory, cfg.Webhook)
		stop := utils.HandleTerminalSignal()
		run(cfg, factory, n, stop)
	},
}

func buildSecretSource(cfg config.Config) (webhook.SecretSource, error) {
	if !cfg.Team.UseDBAuthentication {
		return nil, nil
	}
	store, err := teamstore.New(cfg.Team)
	if err != nil {
		return nil, err
	}
	return webhook.NewCachedSecretSource(store, cfg.Team.SecretCacheSize,
		time.Duration(cfg.Team.SecretCacheExpire)*time.Second), nil
}

func run(cfg config.Config, factory *egress.Factory, n *notify.Notify, stopCh chan struct{}) {
	log := logger.NewLogger("egress")
	log.Infow("starting", "version", config.VersionInfo().Version(),
		"selfHosted", cfg.SelfHosted.Enabled(), "proxy", cfg.Proxy != nil)

	n.Start()
	if cfg.Api.Enable {
		server, err := apis.NewApiServer(cfg, &v1.Depends{Notify: n, Dispatchers: factory})
		if err != nil {
			log.Panicw("setup api server failed", "err", err.Error())
		}
		go server.Run(stopCh)
	}

	log.Info("started")
	<-stopCh
	n.Stop()
	factory.CloseIdleConnections()
	time.Sleep(time.Second)
	log.Info("stopped")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "View version information",
	Run: func(cmd *cobra.Command, args []string) {
		vInfo := config.VersionInfo()
		fmt.Printf("Version: %s\n", vInfo.Version())
		fmt.Printf("GitCommit: %s\n", vInfo.Git)
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Check whether an url may be reached",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.NewConfigLoader().GetConfig()
		if err != nil {
			fmt.Printf("load config failed: %s\n", err)
			os.Exit(1)
		}
		factory, err := egress.NewFactory(cfg.Proxy)
		if err != nil {
			fmt.Printf("init dispatcher failed: %s\n", err)
			os.Exit(1)
		}
		defer factory.CloseIdleConnections()

		ctx, canF := context.WithTimeout(context.Background(), probeTimeout)
		defer canF()
		d := factory.GetDispatcher(types.DispatcherConfig{SkipTLSVerification: probeSkipTLS, AllowPrivateIPs: probeSelfHosted})
		result := egress.Probe(ctx, d, args[0])

		raw, _ := json.MarshalIndent(result, "", "    ")
		fmt.Println(string(raw))
		if !result.Reachable {
			os.Exit(2)
		}
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify <ip>...",
	Short: "Classify ip literals as private or public",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		for _, addr := range args {
			class := "public"
			if _, err := netip.ParseAddr(strings.Trim(addr, "[]")); err != nil {
				class = "invalid"
			} else if netguard.IsPrivate(addr) {
				class = "private"
			}
			fmt.Printf("%s\t%s\n", addr, class)
		}
	},
}
