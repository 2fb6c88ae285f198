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
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/stretchr/testify/assert"
)

func TestUpsertMonitorInsertThenUpdate(t *testing.T) {
	s, mdb := newMockProvider().init()
	m := &aotypes.Monitor{
		ID:         "proc1",
		Authorized: true,
		Interval:   "1s",
		Block:      aotypes.Block{Height: 42, Timestamp: 1000},
	}

	mdb.ExpectBegin()
	mdb.ExpectQuery("SELECT seq FROM monitors.*").WillReturnRows(sqlmock.NewRows([]string{"seq"}))
	mdb.ExpectExec("INSERT INTO monitors.*").WillReturnResult(sqlmock.NewResult(1, 1))
	mdb.ExpectCommit()
	assert.NoError(t, s.UpsertMonitor(context.Background(), m))

	m.LastFromSortKey = aotypes.SortKey("43,2000,abc").Canonical()
	mdb.ExpectBegin()
	mdb.ExpectQuery("SELECT seq FROM monitors.*").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)))
	mdb.ExpectExec("UPDATE monitors.*").WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.ExpectCommit()
	assert.NoError(t, s.UpsertMonitor(context.Background(), m))

	assert.NoError(t, mdb.ExpectationsWereMet())
}

func TestGetMonitors(t *testing.T) {
	s, mdb := newMockProvider().init()
	mdb.ExpectQuery("SELECT .* FROM monitors.*").
		WillReturnRows(sqlmock.NewRows(monitorColumns).
			AddRow("proc1", true, "000000000042,1000,a", "1s", int64(42), int64(1000), int64(0)))

	monitors, err := s.GetMonitors(context.Background())
	assert.NoError(t, err)
	assert.Len(t, monitors, 1)
	assert.Equal(t, "proc1", monitors[0].ID)
	assert.Equal(t, aotypes.SortKey("000000000042,1000,a"), monitors[0].LastFromSortKey)
}

func TestDeleteMonitor(t *testing.T) {
	s, mdb := newMockProvider().init()
	mdb.ExpectBegin()
	mdb.ExpectExec("DELETE FROM monitors.*").WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.ExpectCommit()

	assert.NoError(t, s.DeleteMonitor(context.Background(), "proc1"))
}

func TestDeleteMonitorNotFound(t *testing.T) {
	s, mdb := newMockProvider().init()
	mdb.ExpectBegin()
	mdb.ExpectExec("DELETE FROM monitors.*").WillReturnResult(sqlmock.NewResult(0, 0))
	mdb.ExpectRollback()

	err := s.DeleteMonitor(context.Background(), "proc1")
	assert.Equal(t, database.DeleteRecordNotFound, err)
}
