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
	"github.com/permagate-io/aonode/internal/log"
)

var (
	dispatchColumns = []string{
		"dkey",
		"batch_id",
		"process_id",
		"message",
		"spawn",
		"sent",
		"created_at",
	}
)

func (s *SQLCommon) UpsertDispatch(ctx context.Context, d *aotypes.Dispatch) (err error) {
	if d.CreatedAt == nil {
		d.CreatedAt = aotypes.Now()
	}
	ctx, tx, autoCommit, err := s.beginOrUseTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollbackTx(ctx, tx, autoCommit)

	rows, err := s.queryTx(ctx, tx,
		sq.Select(sequenceColumn).
			From("dispatches").
			Where(sq.Eq{"dkey": d.ID}))
	if err != nil {
		return err
	}
	existing := rows.Next()
	rows.Close()

	if existing {
		log.L(ctx).Debugf("Dispatch '%s' already recorded", d.ID)
	} else {
		if _, err = s.insertTx(ctx, tx,
			sq.Insert("dispatches").
				Columns(dispatchColumns...).
				Values(
					d.ID,
					d.BatchID,
					d.ProcessID,
					d.Message,
					d.Spawn,
					d.Sent,
					d.CreatedAt,
				),
			nil,
		); err != nil {
			return err
		}
	}

	return s.commitTx(ctx, tx, autoCommit)
}

func (s *SQLCommon) dispatchResult(ctx context.Context, row *sql.Rows) (*aotypes.Dispatch, error) {
	var d aotypes.Dispatch
	var createdAt aotypes.DateTime
	err := row.Scan(
		&d.ID,
		&d.BatchID,
		&d.ProcessID,
		&d.Message,
		&d.Spawn,
		&d.Sent,
		&createdAt,
	)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgDBReadErr, "dispatches")
	}
	d.CreatedAt = &createdAt
	return &d, nil
}

func (s *SQLCommon) GetDispatchesByBatch(ctx context.Context, batchID string) ([]*aotypes.Dispatch, error) {
	rows, err := s.query(ctx,
		sq.Select(dispatchColumns...).
			From("dispatches").
			Where(sq.Eq{"batch_id": batchID}).
			OrderBy(sequenceColumn))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dispatches := []*aotypes.Dispatch{}
	for rows.Next() {
		d, err := s.dispatchResult(ctx, rows)
		if err != nil {
			return nil, err
		}
		dispatches = append(dispatches, d)
	}
	return dispatches, nil
}

func (s *SQLCommon) UpdateDispatchSent(ctx context.Context, id string, sent bool) (err error) {
	ctx, tx, autoCommit, err := s.beginOrUseTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollbackTx(ctx, tx, autoCommit)

	if err = s.updateTx(ctx, tx,
		sq.Update("dispatches").
			Set("sent", sent).
			Where(sq.Eq{"dkey": id}),
		nil,
	); err != nil {
		return err
	}

	return s.commitTx(ctx, tx, autoCommit)
}
