// Copyright © 2023 Permagate, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/cunode"
	"github.com/permagate-io/aonode/internal/database/difactory"
	"github.com/permagate-io/aonode/internal/gateway"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/restclient"
	"github.com/permagate-io/aonode/internal/sequencer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cfgFile string

var (
	sequencerPrefix = config.NewPluginConfig("sequencer")
	gatewayPrefix   = config.NewPluginConfig("gateway")
	cuPrefix        = config.NewPluginConfig("cu")
	databasePrefix  = config.NewPluginConfig("database")
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "config file")
	rootCmd.AddCommand(cuCmd)
	rootCmd.AddCommand(muCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "aonode",
	Short: "aonode runs the compute and messenger units of an ao fabric node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// setupConfig reads configuration and initializes logging, returning the root
// context for the run
func setupConfig() (context.Context, error) {
	err := config.ReadConfig(cfgFile)

	// Section keys (and their defaults) register after the reset ReadConfig performs
	sequencer.InitPrefix(sequencerPrefix)
	gateway.InitPrefix(gatewayPrefix)
	cunode.InitPrefix(cuPrefix)
	difactory.InitPrefix(databasePrefix)

	// Setup logging after reading config (even if failed), to output header correctly
	ctx := log.WithLogger(context.Background(), logrus.WithField("pid", os.Getpid()))
	log.SetLevel(config.GetString(config.LogLevel))
	log.SetFormatting(log.Formatting{DisableColor: !config.GetBool(config.LogColor)})
	log.L(ctx).Infof("ao node")
	log.L(ctx).Infof("© Copyright 2023 Permagate, Inc.")

	// Deferred error return from reading config
	if err != nil {
		return ctx, i18n.WrapError(ctx, err, i18n.MsgConfigFailed, err)
	}

	debugPort := config.GetInt(config.DebugPort)
	if debugPort > 0 {
		go func() {
			log.L(ctx).Debugf("Debug HTTP endpoint listening on localhost:%d: %s", debugPort, http.ListenAndServe(fmt.Sprintf("localhost:%d", debugPort), nil))
		}()
	}

	return ctx, nil
}

// requireConfig fails fast on an unset required option
func requireConfig(ctx context.Context, keys ...config.RootKey) error {
	return config.Validate(ctx, keys...)
}

func requirePrefix(ctx context.Context, prefix config.Prefix, name string) error {
	if prefix.GetString(restclient.HTTPConfigURL) == "" {
		return i18n.NewError(ctx, i18n.MsgConfigRequired, name+".url")
	}
	return nil
}

// Execute is called by the main method of the package
func Execute() error {
	return rootCmd.Execute()
}
