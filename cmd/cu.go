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
	"encoding/json"
	"os"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/checkpoint"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/permagate-io/aonode/internal/database/difactory"
	"github.com/permagate-io/aonode/internal/deephash"
	"github.com/permagate-io/aonode/internal/evaluator"
	"github.com/permagate-io/aonode/internal/gateway"
	"github.com/permagate-io/aonode/internal/hydration"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/memcache"
	"github.com/permagate-io/aonode/internal/sequencer"
	"github.com/spf13/cobra"
)

var (
	cuProcessID string
	cuToSortKey string
)

func init() {
	cuCmd.Flags().StringVar(&cuProcessID, "process", "", "process id to evaluate")
	cuCmd.Flags().StringVar(&cuToSortKey, "to", "", "evaluate up to this sort key (default: latest)")
	_ = cuCmd.MarkFlagRequired("process")
}

var cuCmd = &cobra.Command{
	Use:   "cu",
	Short: "Evaluate the state of a process, folding its message stream into memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := setupConfig()
		if err != nil {
			return err
		}
		return runCU(ctx)
	},
}

func initDatabase(ctx context.Context) (database.Plugin, error) {
	if err := requireConfig(ctx, config.DatabaseType); err != nil {
		return nil, err
	}
	plugin, err := difactory.GetPlugin(ctx, config.GetString(config.DatabaseType))
	if err != nil {
		return nil, err
	}
	if err := plugin.Init(ctx, databasePrefix.SubPrefix(config.GetString(config.DatabaseType))); err != nil {
		return nil, err
	}
	return plugin, nil
}

func loadSigner(ctx context.Context) (*deephash.Signer, error) {
	walletFile := config.GetString(config.MUWallet)
	if walletFile == "" {
		return nil, nil
	}
	return deephash.LoadWallet(ctx, walletFile)
}

func runCU(ctx context.Context) error {
	if err := requirePrefix(ctx, sequencerPrefix, "sequencer"); err != nil {
		return err
	}
	if err := requirePrefix(ctx, gatewayPrefix, "gateway"); err != nil {
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
	engine, err := evaluator.GetEngine(ctx)
	if err != nil {
		return err
	}

	gw := gateway.NewClient(ctx, gatewayPrefix)
	su := sequencer.NewClient(ctx, sequencerPrefix)
	cps := checkpoint.NewStore(gw, signer, nil)
	cache := memcache.NewCache(ctx, evaluator.EvictionPublisher(ctx, di, cps))
	defer cache.Stop()

	ev := evaluator.New(ctx, di, cache, cps, su, gw, hydration.NewPipeline(gw, nil), engine)

	result, err := ev.Evaluate(ctx, cuProcessID, aotypes.SortKey(cuToSortKey))
	if err != nil {
		return err
	}
	log.L(ctx).Infof("Evaluation complete: %d outbound messages, %d spawns", len(result.Messages), len(result.Spawns))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"evaluation": result.Evaluation,
		"messages":   result.Messages,
		"spawns":     result.Spawns,
		"output":     result.Output,
		"error":      result.Error,
	})
}
