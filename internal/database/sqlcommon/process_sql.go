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
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
)

var (
	processColumns = []string{
		"pkey",
		"owner",
		"signature",
		"pdata",
		"anchor",
		"tags",
		"block_height",
		"block_timestamp",
	}
)

// processKeyPrefix keeps the document key convention: identifiers that could
// start with an underscore are unacceptable to some document stores, so
// process keys carry a fixed prefix
const processKeyPrefix = "proc-"

func processKey(id string) string {
	return processKeyPrefix + id
}

func (s *SQLCommon) UpsertProcess(ctx context.Context, p *aotypes.Process) (err error) {
	ctx, tx, autoCommit, err := s.beginOrUseTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollbackTx(ctx, tx, autoCommit)

	rows, err := s.queryTx(ctx, tx,
		sq.Select(sequenceColumn).
			From("processes").
			Where(sq.Eq{"pkey": processKey(p.ID)}))
	if err != nil {
		return err
	}
	existing := rows.Next()
	rows.Close()

	if existing {
		// Processes are immutable once recorded
		log.L(ctx).Debugf("Process '%s' already recorded", p.ID)
	} else {
		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return i18n.WrapError(ctx, err, i18n.MsgJSONSerializeFailed, "tags")
		}
		if _, err = s.insertTx(ctx, tx,
			sq.Insert("processes").
				Columns(processColumns...).
				Values(
					processKey(p.ID),
					p.Owner,
					p.Signature,
					p.Data,
					p.Anchor,
					tags,
					p.Block.Height,
					p.Block.Timestamp,
				),
			nil,
		); err != nil {
			return err
		}
	}

	return s.commitTx(ctx, tx, autoCommit)
}

func (s *SQLCommon) processResult(ctx context.Context, row *sql.Rows) (*aotypes.Process, error) {
	var p aotypes.Process
	var key string
	var tagsJSON []byte
	err := row.Scan(
		&key,
		&p.Owner,
		&p.Signature,
		&p.Data,
		&p.Anchor,
		&tagsJSON,
		&p.Block.Height,
		&p.Block.Timestamp,
	)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgDBReadErr, "processes")
	}
	p.ID = strings.TrimPrefix(key, processKeyPrefix)
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &p.Tags); err != nil {
			return nil, i18n.WrapError(ctx, err, i18n.MsgDBReadErr, "processes")
		}
	}
	return &p, nil
}

func (s *SQLCommon) GetProcessByID(ctx context.Context, id string) (*aotypes.Process, error) {
	rows, err := s.query(ctx,
		sq.Select(processColumns...).
			From("processes").
			Where(sq.Eq{"pkey": processKey(id)}))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		log.L(ctx).Debugf("Process '%s' not found", id)
		return nil, nil
	}
	return s.processResult(ctx, rows)
}
