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

package sqlitego

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/permagate-io/aonode/internal/database/sqlcommon"

	// Import the pure Go SQLite driver
	_ "modernc.org/sqlite"
)

// SQLiteGo is the embedded, pure Go, result store provider
type SQLiteGo struct {
	sqlcommon.SQLCommon
}

func (sqlite *SQLiteGo) Init(ctx context.Context, prefix config.Prefix) error {
	capabilities := &database.Capabilities{}
	return sqlite.SQLCommon.Init(ctx, sqlite, prefix, capabilities)
}

func (sqlite *SQLiteGo) Name() string {
	return "sqlitego"
}

func (sqlite *SQLiteGo) MigrationsDir() string {
	return "sqlite"
}

func (sqlite *SQLiteGo) PlaceholderFormat() sq.PlaceholderFormat {
	return sq.Dollar
}

func (sqlite *SQLiteGo) UpdateInsertForSequenceReturn(insert sq.InsertBuilder) (sq.InsertBuilder, bool) {
	return insert, false
}

func (sqlite *SQLiteGo) Open(url string) (*sql.DB, error) {
	return sql.Open("sqlite", url)
}

func (sqlite *SQLiteGo) GetMigrationDriver(db *sql.DB) (migratedb.Driver, error) {
	return migratesqlite.WithInstance(db, &migratesqlite.Config{})
}
