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

// Package databasemocks provides an in-memory result store for unit tests
package databasemocks

import (
	"context"
	"sort"
	"sync"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/database"
)

// Plugin is an in-memory implementation of the result store, with error
// injection hooks for failure-path tests
type Plugin struct {
	mux         sync.Mutex
	evaluations map[string]*aotypes.Evaluation // processID|sortKey
	processes   map[string]*aotypes.Process
	monitors    map[string]*aotypes.Monitor
	dispatches  map[string]*aotypes.Dispatch

	UpsertEvaluationErr error
	GetEvaluationErr    error
}

func NewPlugin() *Plugin {
	return &Plugin{
		evaluations: make(map[string]*aotypes.Evaluation),
		processes:   make(map[string]*aotypes.Process),
		monitors:    make(map[string]*aotypes.Monitor),
		dispatches:  make(map[string]*aotypes.Dispatch),
	}
}

func evalKey(processID string, sortKey aotypes.SortKey) string {
	return processID + "|" + string(sortKey.Canonical())
}

func (p *Plugin) InitPrefix(prefix config.Prefix)                    {}
func (p *Plugin) Init(ctx context.Context, _ config.Prefix) error    { return nil }
func (p *Plugin) Capabilities() *database.Capabilities               { return &database.Capabilities{} }
func (p *Plugin) Close()                                             {}
func (p *Plugin) RunAsGroup(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (p *Plugin) UpsertEvaluation(ctx context.Context, e *aotypes.Evaluation) error {
	if p.UpsertEvaluationErr != nil {
		return p.UpsertEvaluationErr
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	key := evalKey(e.ProcessID, e.SortKey)
	if _, ok := p.evaluations[key]; !ok {
		p.evaluations[key] = e
	}
	return nil
}

func (p *Plugin) sortedEvaluations(processID string) []*aotypes.Evaluation {
	var evals []*aotypes.Evaluation
	for _, e := range p.evaluations {
		if e.ProcessID == processID {
			evals = append(evals, e)
		}
	}
	sort.Slice(evals, func(i, j int) bool {
		return aotypes.CompareSortKeys(evals[i].SortKey, evals[j].SortKey) < 0
	})
	return evals
}

func (p *Plugin) GetEvaluation(ctx context.Context, processID string, sortKey aotypes.SortKey) (*aotypes.Evaluation, error) {
	if p.GetEvaluationErr != nil {
		return nil, p.GetEvaluationErr
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.evaluations[evalKey(processID, sortKey)], nil
}

func (p *Plugin) GetLatestEvaluation(ctx context.Context, processID string, to aotypes.SortKey) (*aotypes.Evaluation, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	var latest *aotypes.Evaluation
	for _, e := range p.sortedEvaluations(processID) {
		if to != "" && aotypes.CompareSortKeys(e.SortKey, to) > 0 {
			continue
		}
		latest = e
	}
	return latest, nil
}

func (p *Plugin) GetEvaluations(ctx context.Context, processID string, from, to aotypes.SortKey) ([]*aotypes.Evaluation, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	results := []*aotypes.Evaluation{}
	for _, e := range p.sortedEvaluations(processID) {
		if from != "" && aotypes.CompareSortKeys(e.SortKey, from) < 0 {
			continue
		}
		if to != "" && aotypes.CompareSortKeys(e.SortKey, to) > 0 {
			continue
		}
		results = append(results, e)
	}
	return results, nil
}

func (p *Plugin) GetEvaluationByMessageID(ctx context.Context, messageID string) (*aotypes.Evaluation, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, e := range p.evaluations {
		if e.MessageID == messageID {
			return e, nil
		}
	}
	return nil, nil
}

func (p *Plugin) GetEvaluationByDeepHash(ctx context.Context, processID, deepHash string) (*aotypes.Evaluation, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, e := range p.evaluations {
		if e.ProcessID == processID && e.DeepHash == deepHash {
			return e, nil
		}
	}
	return nil, nil
}

func (p *Plugin) UpsertProcess(ctx context.Context, process *aotypes.Process) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.processes[process.ID]; !ok {
		p.processes[process.ID] = process
	}
	return nil
}

func (p *Plugin) GetProcessByID(ctx context.Context, id string) (*aotypes.Process, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	return p.processes[id], nil
}

func (p *Plugin) UpsertMonitor(ctx context.Context, m *aotypes.Monitor) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.monitors[m.ID] = m
	return nil
}

func (p *Plugin) GetMonitors(ctx context.Context) ([]*aotypes.Monitor, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	results := []*aotypes.Monitor{}
	for _, m := range p.monitors {
		results = append(results, m)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (p *Plugin) DeleteMonitor(ctx context.Context, id string) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.monitors[id]; !ok {
		return database.DeleteRecordNotFound
	}
	delete(p.monitors, id)
	return nil
}

func (p *Plugin) UpsertDispatch(ctx context.Context, d *aotypes.Dispatch) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if _, ok := p.dispatches[d.ID]; !ok {
		p.dispatches[d.ID] = d
	}
	return nil
}

func (p *Plugin) GetDispatchesByBatch(ctx context.Context, batchID string) ([]*aotypes.Dispatch, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	results := []*aotypes.Dispatch{}
	for _, d := range p.dispatches {
		if d.BatchID == batchID {
			results = append(results, d)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (p *Plugin) UpdateDispatchSent(ctx context.Context, id string, sent bool) error {
	p.mux.Lock()
	defer p.mux.Unlock()
	if d, ok := p.dispatches[id]; ok {
		d.Sent = sent
	}
	return nil
}
