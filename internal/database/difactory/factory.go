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

package difactory

import (
	"context"

	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/permagate-io/aonode/internal/database/postgres"
	"github.com/permagate-io/aonode/internal/database/sqlitego"
	"github.com/permagate-io/aonode/internal/i18n"
)

var pluginsByName = map[string]database.Plugin{
	"sqlitego": &sqlitego.SQLiteGo{},
	"postgres": &postgres.Postgres{},
}

// InitPrefix registers the per-plugin config sections under database.*
func InitPrefix(prefix config.Prefix) {
	for name, plugin := range pluginsByName {
		plugin.InitPrefix(prefix.SubPrefix(name))
	}
}

// GetPlugin resolves the configured database plugin by name
func GetPlugin(ctx context.Context, pluginName string) (database.Plugin, error) {
	plugin, ok := pluginsByName[pluginName]
	if !ok {
		return nil, i18n.NewError(ctx, i18n.MsgUnknownDatabasePlugin, pluginName)
	}
	return plugin, nil
}
