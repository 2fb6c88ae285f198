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
	"os"
	"os/signal"
	"syscall"

	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/cranker"
	"github.com/permagate-io/aonode/internal/cunode"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/monitor"
	"github.com/permagate-io/aonode/internal/sequencer"
	"github.com/spf13/cobra"
)

var muCmd = &cobra.Command{
	Use:   "mu",
	Short: "Run the messenger unit: crank scheduled messages of monitored processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := setupConfig()
		if err != nil {
			return err
		}
		return runMU(ctx)
	},
}

func runMU(ctx context.Context) error {
	if err := requirePrefix(ctx, sequencerPrefix, "sequencer"); err != nil {
		return err
	}
	if err := requirePrefix(ctx, cuPrefix, "cu"); err != nil {
		return err
	}
	if err := requireConfig(ctx, config.MUWallet); err != nil {
		return err
	}

	di, err := initDatabase(ctx)
	if err != nil {
		return err
	}
	defer di.Close()

	signer, err := loadSigner(ctx)
	if err != nil {
		return err
	}

	su := sequencer.NewClient(ctx, sequencerPrefix)
	cu := cunode.NewClient(ctx, cuPrefix)
	ck := cranker.New(ctx, di, su, cu, signer)

	loop := monitor.NewLoop(ctx, di, cu, ck)
	loop.Start()
	defer loop.Close()

	log.L(ctx).Infof("Messenger unit started (wallet=%s)", signer.Address())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.L(ctx).Infof("Shutting down on %s", sig)
	return nil
}
