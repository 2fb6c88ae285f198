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

// Package monitor runs the messenger unit's polling loop: each monitored
// process is periodically asked for newly scheduled messages, which are
// persisted as a batch and handed to the cranker.
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/cranker"
	"github.com/permagate-io/aonode/internal/cunode"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/retry"
)

// A transient compute unit failure should not burn the whole poll interval,
// so the scheduled fetch retries a few times before the run gives up
const fetchRetryAttempts = 3

// Loop polls the compute unit for scheduled messages of monitored processes
type Loop struct {
	ctx      context.Context
	cancel   context.CancelFunc
	database database.Plugin
	cu       cunode.Client
	cranker  *cranker.Cranker
	interval time.Duration
	retry    retry.Retry

	// running is the in-flight set guarding against overlapping runs of the
	// same monitor; it is mutated only on the loop goroutine
	running map[string]bool
	done    chan string
	closed  chan struct{}
}

func NewLoop(ctx context.Context, di database.Plugin, cu cunode.Client, ck *cranker.Cranker) *Loop {
	ctx, cancel := context.WithCancel(log.WithLogField(ctx, "role", "monitor"))
	return &Loop{
		ctx:      ctx,
		cancel:   cancel,
		database: di,
		cu:       cu,
		cranker:  ck,
		interval: config.GetDuration(config.MUMonitorInterval),
		retry: retry.Retry{
			InitialDelay: config.GetDuration(config.MURetryInitialDelay),
			MaximumDelay: config.GetDuration(config.MURetryMaxDelay),
			Factor:       config.GetFloat64(config.MURetryFactor),
		},
		running:  make(map[string]bool),
		done:     make(chan string, 64),
		closed:   make(chan struct{}),
	}
}

// Start launches the polling loop
func (lp *Loop) Start() {
	go lp.pollLoop()
}

// Close stops the loop, waiting for it to wind down
func (lp *Loop) Close() {
	lp.cancel()
	<-lp.closed
}

func (lp *Loop) pollLoop() {
	l := log.L(lp.ctx)
	l.Infof("Monitor loop started (interval=%s)", lp.interval)
	defer close(lp.closed)

	ticker := time.NewTicker(lp.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lp.dispatchDue()
		case id := <-lp.done:
			delete(lp.running, id)
		case <-lp.ctx.Done():
			l.Infof("Monitor loop stopped")
			return
		}
	}
}

func (lp *Loop) dispatchDue() {
	monitors, err := lp.database.GetMonitors(lp.ctx)
	if err != nil {
		log.L(lp.ctx).Errorf("Failed to load monitors: %s", err)
		return
	}
	for _, m := range monitors {
		if !m.Authorized || lp.running[m.ID] {
			continue
		}
		lp.running[m.ID] = true
		go func(m *aotypes.Monitor) {
			defer func() { lp.done <- m.ID }()
			if err := lp.runMonitor(lp.ctx, m); err != nil {
				log.L(lp.ctx).Errorf("Monitor run failed for process '%s': %s", m.ID, err)
			}
		}(m)
	}
}

// runMonitor processes one poll of one monitor: fetch, persist, crank, advance
func (lp *Loop) runMonitor(ctx context.Context, m *aotypes.Monitor) error {
	ctx = log.WithLogField(ctx, "aoproc", m.ID)
	var scheduled []*aotypes.ScheduledMessage
	err := lp.retry.Do(ctx, "fetch scheduled", func(attempt int) (retryAgain bool, err error) {
		scheduled, err = lp.cu.FetchScheduled(ctx, m.ID, m.LastFromSortKey)
		return err != nil && attempt < fetchRetryAttempts, err
	})
	if err != nil {
		return err
	}
	if len(scheduled) == 0 {
		return nil
	}

	// Persist the batch under a fresh fromTxId before sending anything, so a
	// partial crank is retryable
	batchID := uuid.New().String()
	maxSortKey := m.LastFromSortKey
	for _, s := range scheduled {
		if err := lp.database.UpsertDispatch(ctx, &aotypes.Dispatch{
			ID:        uuid.New().String(),
			BatchID:   batchID,
			ProcessID: m.ID,
			Message:   s.Message,
		}); err != nil {
			return err
		}
		if aotypes.CompareSortKeys(s.ScheduledSortKey, maxSortKey) > 0 {
			maxSortKey = s.ScheduledSortKey
		}
	}

	if err := lp.cranker.Crank(ctx, batchID); err != nil {
		return err
	}

	// lastFromSortKey advances monotonically to the batch maximum
	m.LastFromSortKey = maxSortKey.Canonical()
	if err := lp.database.UpsertMonitor(ctx, m); err != nil {
		return err
	}
	log.L(ctx).Infof("Monitor advanced to '%s' (%d scheduled)", m.LastFromSortKey, len(scheduled))
	return nil
}
