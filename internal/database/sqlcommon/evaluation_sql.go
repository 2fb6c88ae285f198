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

	sq "github.com/Masterminds/squirrel"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
)

var (
	evaluationColumns = []string{
		"process_id",
		"sort_key",
		"message_id",
		"deep_hash",
		"nonce",
		"epoch",
		"etimestamp",
		"block_height",
		"cron",
		"is_cron",
		"evaluated_at",
		"output",
	}
)

func (s *SQLCommon) UpsertEvaluation(ctx context.Context, e *aotypes.Evaluation) (err error) {
	if e.EvaluatedAt == nil {
		e.EvaluatedAt = aotypes.Now()
	}
	ctx, tx, autoCommit, err := s.beginOrUseTx(ctx)
	if err != nil {
		return err
	}
	defer s.rollbackTx(ctx, tx, autoCommit)

	// Evaluations are append-only and keyed by immutable sort key, so a
	// pre-existing row is simply retained (idempotent save)
	rows, err := s.queryTx(ctx, tx,
		sq.Select(sequenceColumn).
			From("evaluations").
			Where(sq.Eq{"process_id": e.ProcessID, "sort_key": e.SortKey}))
	if err != nil {
		return err
	}
	existing := rows.Next()
	rows.Close()

	if existing {
		log.L(ctx).Debugf("Evaluation already recorded for process '%s' at '%s'", e.ProcessID, e.SortKey)
	} else {
		output, err := json.Marshal(e.Output)
		if err != nil {
			return i18n.WrapError(ctx, err, i18n.MsgJSONSerializeFailed, "output")
		}
		if _, err = s.insertTx(ctx, tx,
			sq.Insert("evaluations").
				Columns(evaluationColumns...).
				Values(
					e.ProcessID,
					e.SortKey,
					e.MessageID,
					e.DeepHash,
					e.Nonce,
					e.Epoch,
					e.Timestamp,
					e.BlockHeight,
					e.Cron,
					e.IsCron,
					e.EvaluatedAt,
					output,
				),
			nil,
		); err != nil {
			return err
		}
	}

	return s.commitTx(ctx, tx, autoCommit)
}

func (s *SQLCommon) evaluationResult(ctx context.Context, row *sql.Rows) (*aotypes.Evaluation, error) {
	var e aotypes.Evaluation
	var evaluatedAt aotypes.DateTime
	var outputJSON []byte
	err := row.Scan(
		&e.ProcessID,
		&e.SortKey,
		&e.MessageID,
		&e.DeepHash,
		&e.Nonce,
		&e.Epoch,
		&e.Timestamp,
		&e.BlockHeight,
		&e.Cron,
		&e.IsCron,
		&evaluatedAt,
		&outputJSON,
	)
	e.EvaluatedAt = &evaluatedAt
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgDBReadErr, "evaluations")
	}
	if len(outputJSON) > 0 {
		e.Output = &aotypes.EvalOutput{}
		if err := json.Unmarshal(outputJSON, e.Output); err != nil {
			return nil, i18n.WrapError(ctx, err, i18n.MsgDBReadErr, "evaluations")
		}
	}
	return &e, nil
}

func (s *SQLCommon) getEvaluationPred(ctx context.Context, desc string, pred interface{}, orderDesc bool) (*aotypes.Evaluation, error) {
	q := sq.Select(evaluationColumns...).From("evaluations").Where(pred)
	if orderDesc {
		q = q.OrderBy("sort_key DESC")
	}
	rows, err := s.query(ctx, q.Limit(1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		log.L(ctx).Debugf("Evaluation '%s' not found", desc)
		return nil, nil
	}
	return s.evaluationResult(ctx, rows)
}

func (s *SQLCommon) GetEvaluation(ctx context.Context, processID string, sortKey aotypes.SortKey) (*aotypes.Evaluation, error) {
	return s.getEvaluationPred(ctx, string(sortKey), sq.Eq{"process_id": processID, "sort_key": sortKey.Canonical()}, false)
}

func (s *SQLCommon) GetLatestEvaluation(ctx context.Context, processID string, to aotypes.SortKey) (*aotypes.Evaluation, error) {
	pred := sq.And{sq.Eq{"process_id": processID}}
	if to != "" {
		pred = append(pred, sq.LtOrEq{"sort_key": to.Canonical()})
	}
	return s.getEvaluationPred(ctx, processID, pred, true)
}

func (s *SQLCommon) GetEvaluations(ctx context.Context, processID string, from, to aotypes.SortKey) ([]*aotypes.Evaluation, error) {
	pred := sq.And{sq.Eq{"process_id": processID}}
	if from != "" {
		pred = append(pred, sq.GtOrEq{"sort_key": from.Canonical()})
	}
	if to != "" {
		pred = append(pred, sq.LtOrEq{"sort_key": to.Canonical()})
	}
	rows, err := s.query(ctx,
		sq.Select(evaluationColumns...).
			From("evaluations").
			Where(pred).
			OrderBy("sort_key"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evaluations := []*aotypes.Evaluation{}
	for rows.Next() {
		e, err := s.evaluationResult(ctx, rows)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, e)
	}
	return evaluations, nil
}

func (s *SQLCommon) GetEvaluationByMessageID(ctx context.Context, messageID string) (*aotypes.Evaluation, error) {
	return s.getEvaluationPred(ctx, messageID, sq.Eq{"message_id": messageID}, false)
}

func (s *SQLCommon) GetEvaluationByDeepHash(ctx context.Context, processID, deepHash string) (*aotypes.Evaluation, error) {
	return s.getEvaluationPred(ctx, deepHash, sq.Eq{"process_id": processID, "deep_hash": deepHash}, false)
}
