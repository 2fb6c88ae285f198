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
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/i18n"
)

var (
	monitorColumns = []string{
		"mkey",
		"authorized",
		"last_from_sort_key",
		"poll_interval",
		"block_height",
		"block_timestamp",
		"created_at",
	}
)

func (s *SQLCommon) UpsertMonitor(ctx context.Context, m *aotypes.Monitor) (err error) {
	if m.CreatedAt == nil {
		m.CreatedAt = aotypes.Now()
	}
	ctx, tx, autoCommit, err := s.beginOrUseTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollbackTx(ctx, tx, autoCommit)

	rows, err := s.queryTx(ctx, tx,
		sq.Select(sequenceColumn).
			From("monitors").
			Where(sq.Eq{"mkey": m.ID}))
	if err != nil {
		return err
	}
	existing := rows.Next()
	rows.Close()

	if existing {
		// lastFromSortKey advances as batches complete
		if err = s.updateTx(ctx, tx,
			sq.Update("monitors").
				Set("authorized", m.Authorized).
				Set("last_from_sort_key", m.LastFromSortKey).
				Set("poll_interval", m.Interval).
				Where(sq.Eq{"mkey": m.ID}),
			nil,
		); err != nil {
			return err
		}
	} else {
		if _, err = s.insertTx(ctx, tx,
			sq.Insert("monitors").
				Columns(monitorColumns...).
				Values(
					m.ID,
					m.Authorized,
					m.LastFromSortKey,
					m.Interval,
					m.Block.Height,
					m.Block.Timestamp,
					m.CreatedAt,
				),
			nil,
		); err != nil {
			return err
		}
	}

	return s.commitTx(ctx, tx, autoCommit)
}

func (s *SQLCommon) monitorResult(ctx context.Context, row *sql.Rows) (*aotypes.Monitor, error) {
	var m aotypes.Monitor
	var createdAt aotypes.DateTime
	err := row.Scan(
		&m.ID,
		&m.Authorized,
		&m.LastFromSortKey,
		&m.Interval,
		&m.Block.Height,
		&m.Block.Timestamp,
		&createdAt,
	)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgDBReadErr, "monitors")
	}
	m.CreatedAt = &createdAt
	return &m, nil
}

func (s *SQLCommon) GetMonitors(ctx context.Context) ([]*aotypes.Monitor, error) {
	rows, err := s.query(ctx,
		sq.Select(monitorColumns...).
			From("monitors").
			OrderBy("mkey"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	monitors := []*aotypes.Monitor{}
	for rows.Next() {
		m, err := s.monitorResult(ctx, rows)
		if err != nil {
			return nil, err
		}
		monitors = append(monitors, m)
	}
	return monitors, nil
}

func (s *SQLCommon) DeleteMonitor(ctx context.Context, id string) (err error) {
	ctx, tx, autoCommit, err := s.beginOrUseTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollbackTx(ctx, tx, autoCommit)

	if err = s.deleteTx(ctx, tx,
		sq.Delete("monitors").Where(sq.Eq{"mkey": id}),
		nil,
	); err != nil {
		return err
	}

	return s.commitTx(ctx, tx, autoCommit)
}
