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

// Package evaluator is the compute unit core: it locates a starting memory
// for a process, folds the hydrated message stream into it through the WASM
// engine, persists each evaluation, and keeps the memory cache and checkpoint
// store up to date.
package evaluator

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/checkpoint"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/permagate-io/aonode/internal/gateway"
	"github.com/permagate-io/aonode/internal/hydration"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/memcache"
	"github.com/permagate-io/aonode/internal/sequencer"
)

// Result is the outcome of one evaluation run: the latest state, and the
// outbound work the messenger unit cranks
type Result struct {
	Evaluation *aotypes.Evaluation
	Memory     []byte
	Messages   aotypes.JSONObjectArray
	Spawns     aotypes.JSONObjectArray
	Output     aotypes.JSONObject
	Error      aotypes.JSONObject
}

// Evaluator folds ordered messages into process state
type Evaluator struct {
	ctx         context.Context
	database    database.Plugin
	cache       memcache.Cache
	checkpoints checkpoint.Store
	sequencer   sequencer.Client
	gateway     gateway.Client
	hydration   *hydration.Pipeline
	engine      Engine
	publishGap  int64

	// evaluations for the same process are serialized; different processes
	// fold in parallel
	lockMux   sync.Mutex
	procLocks map[string]*sync.Mutex
}

func New(ctx context.Context, di database.Plugin, cache memcache.Cache, cps checkpoint.Store,
	su sequencer.Client, gw gateway.Client, pipeline *hydration.Pipeline, engine Engine) *Evaluator {
	return &Evaluator{
		ctx:         log.WithLogField(ctx, "role", "evaluator"),
		database:    di,
		cache:       cache,
		checkpoints: cps,
		sequencer:   su,
		gateway:     gw,
		hydration:   pipeline,
		engine:      engine,
		publishGap:  config.GetInt64(config.CheckpointPublishGap),
		procLocks:   make(map[string]*sync.Mutex),
	}
}

func (ev *Evaluator) lockProcess(processID string) func() {
	ev.lockMux.Lock()
	l, ok := ev.procLocks[processID]
	if !ok {
		l = &sync.Mutex{}
		ev.procLocks[processID] = l
	}
	ev.lockMux.Unlock()
	l.Lock()
	return l.Unlock
}

// Evaluate computes the state of a process at `to` (or the latest known
// position when `to` is empty), returning the final state and outbound work
func (ev *Evaluator) Evaluate(ctx context.Context, processID string, to aotypes.SortKey) (*Result, error) {
	defer ev.lockProcess(processID)()
	ctx, cancel := context.WithCancel(log.WithLogField(ctx, "aoproc", processID))
	defer cancel() // cancellation propagates by closing the source and stages

	process, err := ev.loadProcess(ctx, processID)
	if err != nil {
		return nil, err
	}

	startEval, memory, err := ev.findStartingMemory(ctx, processID, to)
	if err != nil {
		return nil, err
	}

	var from aotypes.SortKey
	if startEval != nil {
		from = startEval.SortKey
	}
	msgs, srcErrs := ev.sequencer.LoadMessages(ctx, process, from, to)
	hydrated, hydErrs := ev.hydration.Hydrate(ctx, msgs, srcErrs)

	result := &Result{
		Evaluation: startEval,
		Memory:     memory,
		Messages:   aotypes.JSONObjectArray{},
		Spawns:     aotypes.JSONObjectArray{},
	}
	lastPublished := int64(-1)
	if startEval != nil {
		lastPublished = startEval.Nonce
	}

	for msg := range hydrated {
		folded, err := ev.foldMessage(ctx, process, msg, result)
		if err != nil {
			return nil, err
		}
		if folded && ev.publishGap > 0 && result.Evaluation.Nonce-lastPublished >= ev.publishGap {
			ev.publishCheckpoint(ctx, process, result)
			lastPublished = result.Evaluation.Nonce
		}
	}
	// The stream closed - surface any terminal error
	select {
	case err := <-hydErrs:
		return nil, err
	default:
	}

	return result, nil
}

// loadProcess reads the process record, recovering it from the chain the
// first time this unit evaluates for the process
func (ev *Evaluator) loadProcess(ctx context.Context, processID string) (*aotypes.Process, error) {
	process, err := ev.database.GetProcessByID(ctx, processID)
	if err != nil {
		return nil, err
	}
	if process != nil {
		return process, nil
	}

	meta, err := ev.gateway.GetTransaction(ctx, processID)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgProcessNotFound, processID)
	}
	process = &aotypes.Process{
		ID:        meta.ID,
		Owner:     meta.Owner,
		Signature: meta.Signature,
		Anchor:    meta.Anchor,
		Tags:      meta.Tags,
		Block:     meta.Block,
	}
	if err := ev.database.UpsertProcess(ctx, process); err != nil {
		return nil, err
	}
	return process, nil
}

// findStartingMemory resolves the most advanced usable state: the cache, a
// discovered checkpoint strictly later than the cache, or a cold start
func (ev *Evaluator) findStartingMemory(ctx context.Context, processID string, to aotypes.SortKey) (*aotypes.Evaluation, []byte, error) {
	cached, err := ev.cache.Get(ctx, processID)
	if err != nil {
		return nil, nil, err
	}

	target := targetPosition(to)
	var cachedEval *aotypes.Evaluation
	if cached != nil {
		cachedEval = cached.Evaluation
		// A cached position past the target cannot seed this evaluation
		if target != nil && aotypes.IsLaterThan(target, cachedEval) {
			cached, cachedEval = nil, nil
		}
	}

	cp, err := ev.checkpoints.Discover(ctx, processID, target)
	if err != nil {
		return nil, nil, err
	}
	if cp != nil && (cachedEval == nil || aotypes.IsLaterThan(cachedEval, cp.AsEvaluation())) {
		cpEval := cp.AsEvaluation()
		// Anchor the checkpoint position to its persisted evaluation when one
		// exists, so the source resumes from the right sort key
		if persisted, err := ev.database.GetLatestEvaluation(ctx, processID, to); err == nil && persisted != nil &&
			!aotypes.IsLaterThan(persisted, cpEval) {
			cpEval.SortKey = persisted.SortKey
		}
		log.L(ctx).Debugf("Starting from checkpoint '%s' (nonce=%d)", cp.TxID, cp.Nonce)
		return cpEval, cp.Memory, nil
	}
	if cached != nil {
		log.L(ctx).Debugf("Starting from cached memory at '%s'", cachedEval.SortKey)
		return cachedEval, cached.Memory, nil
	}

	log.L(ctx).Infof("Cold start for process '%s'", processID)
	return nil, nil, nil
}

// foldMessage runs the dedup probes and folds one message, returning whether
// a new evaluation was recorded
func (ev *Evaluator) foldMessage(ctx context.Context, process *aotypes.Process, msg *aotypes.Message, result *Result) (bool, error) {
	l := log.L(ctx)

	// Dedup forwarded duplicates by deep hash
	if msg.DeepHash != "" {
		existing, err := ev.database.GetEvaluationByDeepHash(ctx, process.ID, msg.DeepHash)
		if err != nil {
			return false, err
		}
		if existing != nil {
			l.Debugf("Skipping duplicate forwarded message '%s' (deepHash seen at '%s')", msg.Message.ID, existing.SortKey)
			return false, nil
		}
	}
	// Replay idempotence by exact sort key
	existing, err := ev.database.GetEvaluation(ctx, process.ID, msg.SortKey)
	if err != nil {
		return false, err
	}
	if existing != nil {
		l.Debugf("Skipping already-evaluated sort key '%s'", msg.SortKey)
		return false, nil
	}

	output, err := ev.engine.Invoke(ctx, result.Memory, msg)
	if err != nil {
		return false, i18n.WrapError(ctx, err, i18n.MsgEvalEngineFailed, msg.Message.ID)
	}
	if output.Error != nil {
		// A deterministic process error is part of the evaluation record; the
		// chain continues
		l.Warnf("Process error folding message '%s' at '%s': %s", msg.Message.ID, msg.SortKey, output.Error.String())
	}
	if output.Memory != nil {
		result.Memory = output.Memory
	}

	evaluation := &aotypes.Evaluation{
		ProcessID:   process.ID,
		SortKey:     msg.SortKey,
		MessageID:   msg.Message.ID,
		DeepHash:    msg.DeepHash,
		Nonce:       msg.Message.Nonce,
		Epoch:       msg.Message.Epoch,
		Timestamp:   msg.Message.Timestamp,
		BlockHeight: msg.Message.BlockHeight,
		Cron:        msg.Message.Tags.GetValue(aotypes.TagCronInterval),
		IsCron:      msg.IsCron,
		EvaluatedAt: aotypes.Now(),
		Output:      output,
	}
	if err := ev.database.UpsertEvaluation(ctx, evaluation); err != nil {
		// A persistence failure halts the batch; the chain resumes from the
		// latest persisted evaluation on the next invocation
		return false, err
	}
	if err := ev.cache.Set(ctx, process.ID, evaluation, result.Memory); err != nil {
		return false, err
	}

	result.Evaluation = evaluation
	result.Messages = append(result.Messages, output.Messages...)
	result.Spawns = append(result.Spawns, output.Spawns...)
	result.Output = output.Output
	result.Error = output.Error
	return true, nil
}

func (ev *Evaluator) publishCheckpoint(ctx context.Context, process *aotypes.Process, result *Result) {
	compressed, err := memcache.Gzip(ctx, result.Memory)
	if err == nil {
		_, err = ev.checkpoints.Publish(ctx, process.Module(), result.Evaluation, compressed)
	}
	if err != nil {
		// Non-fatal: the next gap or eviction retries
		log.L(ctx).Warnf("Periodic checkpoint publish failed for process '%s': %s", process.ID, err)
	}
}

// targetPosition projects a `to` sort key onto the ordering algebra, for
// comparing cache and checkpoint candidates
func targetPosition(to aotypes.SortKey) *aotypes.Evaluation {
	if to == "" {
		return nil
	}
	parts := strings.Split(string(to), ",")
	target := &aotypes.Evaluation{Timestamp: int64(^uint64(0) >> 1)}
	if len(parts) > 1 {
		if ts, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			target.Timestamp = ts
		}
	}
	return target
}

// EvictionPublisher wires cache eviction to checkpoint publication: before a
// memory image is dropped by the size bound, it is preserved on chain
func EvictionPublisher(ctx context.Context, di database.Plugin, cps checkpoint.Store) memcache.EvictionHandler {
	return func(processID string, evaluation *aotypes.Evaluation, compressedMemory []byte) {
		module := ""
		if process, err := di.GetProcessByID(ctx, processID); err == nil && process != nil {
			module = process.Module()
		}
		if _, err := cps.Publish(ctx, module, evaluation, compressedMemory); err != nil {
			log.L(ctx).Warnf("Eviction checkpoint publish failed for process '%s': %s", processID, err)
		}
	}
}
