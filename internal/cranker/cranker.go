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

// Package cranker is the messenger unit core: it signs evaluator-produced
// outbound messages, posts them to the sequencer for ordering, and recursively
// dispatches the further work each evaluation produces.
package cranker

import (
	"context"

	"github.com/google/uuid"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/cunode"
	"github.com/permagate-io/aonode/internal/database"
	"github.com/permagate-io/aonode/internal/deephash"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/sequencer"
)

// Cranker dispatches outbound work
type Cranker struct {
	ctx       context.Context
	database  database.Plugin
	sequencer sequencer.Client
	cu        cunode.Client
	signer    *deephash.Signer
	maxDepth  int
}

// crankState tracks one recursive crank: the traversal set that terminates
// cyclic message graphs (the depth is passed down the recursion)
type crankState struct {
	visited map[string]bool
}

func New(ctx context.Context, di database.Plugin, su sequencer.Client, cu cunode.Client, signer *deephash.Signer) *Cranker {
	return &Cranker{
		ctx:       log.WithLogField(ctx, "role", "cranker"),
		database:  di,
		sequencer: su,
		cu:        cu,
		signer:    signer,
		maxDepth:  config.GetInt(config.MUCrankDepth),
	}
}

// CrankOutbound persists the outbound messages and spawns of an evaluation
// under a fresh batch id, then cranks the batch. The persisted dispatch
// records make failed sends retryable by a later crank.
func (c *Cranker) CrankOutbound(ctx context.Context, processID string, messages, spawns aotypes.JSONObjectArray) (string, error) {
	batchID := uuid.New().String()
	for _, msg := range messages {
		if err := c.database.UpsertDispatch(ctx, &aotypes.Dispatch{
			ID:        uuid.New().String(),
			BatchID:   batchID,
			ProcessID: processID,
			Message:   msg,
		}); err != nil {
			return "", err
		}
	}
	for _, spawn := range spawns {
		if err := c.database.UpsertDispatch(ctx, &aotypes.Dispatch{
			ID:        uuid.New().String(),
			BatchID:   batchID,
			ProcessID: processID,
			Message:   spawn,
			Spawn:     true,
		}); err != nil {
			return "", err
		}
	}
	return batchID, c.Crank(ctx, batchID)
}

// Crank dispatches every unsent record of a batch. Per-message failures are
// logged and recorded unsent; siblings continue.
func (c *Cranker) Crank(ctx context.Context, batchID string) error {
	dispatches, err := c.database.GetDispatchesByBatch(ctx, batchID)
	if err != nil {
		return err
	}
	state := &crankState{visited: make(map[string]bool)}
	for _, d := range dispatches {
		if d.Sent {
			continue
		}
		if err := c.crankMessage(ctx, state, d.Message, d.Spawn, 0); err != nil {
			log.L(ctx).Errorf("Failed to crank dispatch '%s' (batch '%s'): %s", d.ID, batchID, err)
			continue
		}
		if err := c.database.UpdateDispatchSent(ctx, d.ID, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cranker) crankMessage(ctx context.Context, state *crankState, msg aotypes.JSONObject, spawn bool, depth int) error {
	l := log.L(ctx)
	if depth > c.maxDepth {
		l.Warnf("Crank depth limit %d reached, parking message to '%s'", c.maxDepth, msg.GetString("Target"))
		return nil
	}

	target := msg.GetString("Target")
	if target == "" {
		return i18n.NewError(ctx, i18n.MsgCrankNoTarget)
	}

	// Terminate on a revisit of the same (process, message) to break cycles.
	// The content digest identifies the message, since the sequencer id is
	// only known after a write.
	contentID, err := deephash.HashMessage(ctx, []byte(msg.GetString("Data")), tagsFromJSON(msg["Tags"]), target, msg.GetString("Anchor"))
	if err != nil {
		return err
	}
	visitKey := target + "|" + contentID
	if state.visited[visitKey] {
		l.Warnf("Crank revisited message '%s' for process '%s', stopping traversal", contentID, target)
		return nil
	}
	state.visited[visitKey] = true

	item, err := c.buildDataItem(ctx, msg, spawn)
	if err != nil {
		return err
	}
	txID, err := c.sequencer.WriteMessage(ctx, item.Encode())
	if err != nil {
		return err
	}
	l.Infof("Cranked message '%s' to process '%s' (depth=%d)", txID, target, depth)

	if spawn {
		// Spawn acknowledgements produce no downstream result to chase
		return nil
	}

	result, err := c.cu.FetchResult(ctx, txID, target)
	if err != nil {
		return err
	}
	for _, child := range result.Messages {
		if err := c.crankMessage(ctx, state, child, false, depth+1); err != nil {
			l.Errorf("Failed to crank child of '%s': %s", txID, err)
		}
	}
	for _, child := range result.Spawns {
		if err := c.crankMessage(ctx, state, child, true, depth+1); err != nil {
			l.Errorf("Failed to crank spawn of '%s': %s", txID, err)
		}
	}
	return nil
}

// buildDataItem signs one outbound message as a data item addressed to its
// target, tagged as forwarded by this unit
func (c *Cranker) buildDataItem(ctx context.Context, msg aotypes.JSONObject, spawn bool) (*deephash.DataItem, error) {
	tags := tagsFromJSON(msg["Tags"])
	tags = append(tags, aotypes.Tag{Name: aotypes.TagForwardedBy, Value: c.signer.Address()})
	if from := msg.GetString("From"); from != "" {
		tags = append(tags, aotypes.Tag{Name: aotypes.TagForwardedFor, Value: from})
	}
	if spawn {
		tags = append(tags, aotypes.Tag{Name: aotypes.TagAoType, Value: "spawn"})
	}
	item, err := deephash.NewDataItem(ctx, []byte(msg.GetString("Data")), tags, msg.GetString("Target"), msg.GetString("Anchor"))
	if err != nil {
		return nil, err
	}
	if err := c.signer.Sign(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func tagsFromJSON(v interface{}) aotypes.Tags {
	tags := aotypes.Tags{}
	list, ok := v.([]interface{})
	if !ok {
		return tags
	}
	for _, ti := range list {
		if tm, ok := ti.(map[string]interface{}); ok {
			name, _ := tm["name"].(string)
			value, _ := tm["value"].(string)
			tags = append(tags, aotypes.Tag{Name: name, Value: value})
		}
	}
	return tags
}
