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

// Package cunode is the messenger unit's client to compute units: fetching
// evaluation results and scheduled messages. A process is pinned to one node
// of the configured set, so repeated result fetches hit warm state.
package cunode

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/restclient"
)

// MessageResult is the outbound work of one evaluated message
type MessageResult struct {
	Messages aotypes.JSONObjectArray `json:"messages"`
	Spawns   aotypes.JSONObjectArray `json:"spawns"`
	Output   aotypes.JSONObject      `json:"output"`
}

// Client reaches compute units
type Client interface {
	// FetchResult reads the evaluation result of a message from the node
	// selected for its process. Misses return an empty structure.
	FetchResult(ctx context.Context, txID, processID string) (*MessageResult, error)

	// FetchScheduled lists the scheduled messages of a monitored process,
	// optionally from a prior position onwards
	FetchScheduled(ctx context.Context, processID string, from aotypes.SortKey) ([]*aotypes.ScheduledMessage, error)
}

const nodeAffinityCacheSize = 1024

type client struct {
	ctx      context.Context
	clients  []*resty.Client
	urls     []string
	affinity *lru.Cache
}

// InitPrefix registers the cu.* config section
func InitPrefix(prefix config.Prefix) {
	restclient.InitPrefix(prefix)
}

// NewClient builds a compute unit client set from the cu.* config section.
// cu.url holds one or more node URLs, comma separated.
func NewClient(ctx context.Context, prefix config.Prefix) Client {
	ctx = log.WithLogField(ctx, "role", "cunode")
	urls := strings.Split(prefix.GetString(restclient.HTTPConfigURL), ",")
	clients := make([]*resty.Client, len(urls))
	for i, url := range urls {
		urls[i] = strings.TrimSpace(url)
		clients[i] = restclient.New(ctx, prefix).SetHostURL(strings.TrimSuffix(urls[i], "/"))
	}
	affinity, _ := lru.New(nodeAffinityCacheSize)
	return &client{
		ctx:      ctx,
		clients:  clients,
		urls:     urls,
		affinity: affinity,
	}
}

// selectNode pins a process to one node, remembering the choice
func (c *client) selectNode(processID string) *resty.Client {
	if idx, ok := c.affinity.Get(processID); ok {
		return c.clients[idx.(int)]
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(processID))
	idx := int(h.Sum32()) % len(c.clients)
	if idx < 0 {
		idx = -idx
	}
	c.affinity.Add(processID, idx)
	log.L(c.ctx).Debugf("Process '%s' pinned to compute unit '%s'", processID, c.urls[idx])
	return c.clients[idx]
}

func (c *client) FetchResult(ctx context.Context, txID, processID string) (*MessageResult, error) {
	var result MessageResult
	res, err := c.selectNode(processID).R().
		SetContext(ctx).
		SetResult(&result).
		Get("/result/" + txID)
	if err != nil || !res.IsSuccess() {
		return nil, restclient.WrapRestErr(ctx, res, err, i18n.MsgCURequestFailed)
	}
	if result.Messages == nil {
		result.Messages = aotypes.JSONObjectArray{}
	}
	if result.Spawns == nil {
		result.Spawns = aotypes.JSONObjectArray{}
	}
	return &result, nil
}

func (c *client) FetchScheduled(ctx context.Context, processID string, from aotypes.SortKey) ([]*aotypes.ScheduledMessage, error) {
	req := c.selectNode(processID).R().SetContext(ctx)
	if from != "" {
		req.SetQueryParam("from", string(from.Canonical()))
	}
	var scheduled []*aotypes.ScheduledMessage
	res, err := req.SetResult(&scheduled).Get("/scheduled/" + processID)
	if err != nil || !res.IsSuccess() {
		return nil, restclient.WrapRestErr(ctx, res, err, i18n.MsgCURequestFailed)
	}
	for _, s := range scheduled {
		if s.ScheduledSortKey == "" {
			return nil, i18n.NewError(ctx, i18n.MsgCUSchemaFail, processID)
		}
	}
	return scheduled, nil
}
