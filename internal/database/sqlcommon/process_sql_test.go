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
	"github.com/stretchr/testify/assert"
)

func TestUpsertProcessNewThenImmutable(t *testing.T) {
	s, mdb := newMockProvider().init()
	p := &aotypes.Process{
		ID:    "proc1",
		Owner: "owner1",
		Tags:  aotypes.Tags{{Name: "Module", Value: "mod1"}},
		Block: aotypes.Block{Height: 42, Timestamp: 1000},
	}

	mdb.ExpectBegin()
	mdb.ExpectQuery("SELECT seq FROM processes.*").WillReturnRows(sqlmock.NewRows([]string{"seq"}))
	mdb.ExpectExec("INSERT INTO processes.*").WillReturnResult(sqlmock.NewResult(1, 1))
	mdb.ExpectCommit()
	assert.NoError(t, s.UpsertProcess(context.Background(), p))

	// Second upsert is a no-op: processes are immutable
	mdb.ExpectBegin()
	mdb.ExpectQuery("SELECT seq FROM processes.*").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(1)))
	mdb.ExpectCommit()
	assert.NoError(t, s.UpsertProcess(context.Background(), p))

	assert.NoError(t, mdb.ExpectationsWereMet())
}

func TestGetProcessByID(t *testing.T) {
	s, mdb := newMockProvider().init()
	mdb.ExpectQuery("SELECT .* FROM processes.*").
		WillReturnRows(sqlmock.NewRows(processColumns).
			AddRow("proc-proc1", "owner1", "sig", "", "", []byte(`[{"name":"Module","value":"mod1"}]`), int64(42), int64(1000)))

	p, err := s.GetProcessByID(context.Background(), "proc1")
	assert.NoError(t, err)
	assert.Equal(t, "proc1", p.ID) // the proc- document key prefix is stripped
	assert.Equal(t, "mod1", p.Module())
}

func TestGetProcessByIDNotFound(t *testing.T) {
	s, mdb := newMockProvider().init()
	mdb.ExpectQuery("SELECT .* FROM processes.*").WillReturnRows(sqlmock.NewRows(processColumns))

	p, err := s.GetProcessByID(context.Background(), "proc1")
	assert.NoError(t, err)
	assert.Nil(t, p)
}
