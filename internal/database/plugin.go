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

// Package database defines the result store: the persistent record of
// evaluations, processes, monitors and dispatches, behind a pluggable
// SQL-provider interface.
package database

import (
	"context"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/pkg/errors"
)

// DeleteRecordNotFound is a sentinel returned when a delete matched no rows
var DeleteRecordNotFound = errors.New("not found")

// Capabilities defines the extended capabilities of a database
type Capabilities struct {
	Concurrency bool
}

// Plugin is the interface implemented by each result store implementation.
//
// Reads that match nothing return nil with no error. Upserts are idempotent:
// an insert conflict on the natural key is treated as success, with the
// existing record retained (records are append-only and keyed by immutable
// sort key).
type Plugin interface {
	// InitPrefix initializes the set of configuration options that are valid,
	// with defaults. Called on all plugins.
	InitPrefix(prefix config.Prefix)

	// Init initializes the plugin, with configuration
	Init(ctx context.Context, prefix config.Prefix) error

	// Capabilities returns the capabilities of the plugin
	Capabilities() *Capabilities

	// RunAsGroup makes a database group operation, in a single transaction
	// where supported
	RunAsGroup(ctx context.Context, fn func(ctx context.Context) error) error

	// UpsertEvaluation persists one evaluation record
	UpsertEvaluation(ctx context.Context, e *aotypes.Evaluation) error

	// GetEvaluation probes for the evaluation of one exact (processId, sortKey)
	GetEvaluation(ctx context.Context, processID string, sortKey aotypes.SortKey) (*aotypes.Evaluation, error)

	// GetLatestEvaluation returns the evaluation with the maximum sort key,
	// optionally bounded by `to` (inclusive)
	GetLatestEvaluation(ctx context.Context, processID string, to aotypes.SortKey) (*aotypes.Evaluation, error)

	// GetEvaluations returns a range of evaluations in ascending sort key
	GetEvaluations(ctx context.Context, processID string, from, to aotypes.SortKey) ([]*aotypes.Evaluation, error)

	// GetEvaluationByMessageID probes for an evaluation of a given message
	GetEvaluationByMessageID(ctx context.Context, messageID string) (*aotypes.Evaluation, error)

	// GetEvaluationByDeepHash probes the dedup index
	GetEvaluationByDeepHash(ctx context.Context, processID, deepHash string) (*aotypes.Evaluation, error)

	// UpsertProcess records a process; processes are immutable once recorded
	UpsertProcess(ctx context.Context, p *aotypes.Process) error

	// GetProcessByID reads back a process record
	GetProcessByID(ctx context.Context, id string) (*aotypes.Process, error)

	// UpsertMonitor inserts or replaces a monitor record
	UpsertMonitor(ctx context.Context, m *aotypes.Monitor) error

	// GetMonitors lists all monitors
	GetMonitors(ctx context.Context) ([]*aotypes.Monitor, error)

	// DeleteMonitor removes a monitor
	DeleteMonitor(ctx context.Context, id string) error

	// UpsertDispatch persists one outbound dispatch record
	UpsertDispatch(ctx context.Context, d *aotypes.Dispatch) error

	// GetDispatchesByBatch lists the dispatches persisted under one batch id
	GetDispatchesByBatch(ctx context.Context, batchID string) ([]*aotypes.Dispatch, error)

	// UpdateDispatchSent marks a dispatch sent (or unsent, for retry)
	UpdateDispatchSent(ctx context.Context, id string, sent bool) error

	// Close frees the database resources
	Close()
}
