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

package sqlcommon

import (
	"github.com/permagate-io/aonode/internal/config"
)

const (
	defaultMigrationsDirectory = "./db/migrations"
	defaultMaxConnections      = 1 // conservative default, raised with maxConnections

	// SQLConfDatasourceURL is the datasource connection URL (or filesystem
	// path, for embedded databases)
	SQLConfDatasourceURL = "url"
	// SQLConfMigrationsAuto enables automatic migration application on startup
	SQLConfMigrationsAuto = "migrations.auto"
	// SQLConfMigrationsDirectory is the directory holding the migration files
	SQLConfMigrationsDirectory = "migrations.directory"
	// SQLConfMaxConnections caps the connection pool
	SQLConfMaxConnections = "maxConnections"
)

// InitPrefix registers the config keys of a SQL provider section
func (s *SQLCommon) InitPrefix(prefix config.Prefix) {
	prefix.AddKnownKey(SQLConfDatasourceURL)
	prefix.AddKnownKey(SQLConfMigrationsAuto, true)
	prefix.AddKnownKey(SQLConfMigrationsDirectory, defaultMigrationsDirectory)
	prefix.AddKnownKey(SQLConfMaxConnections, defaultMaxConnections)
}
