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

// Package gateway is the client for the Arweave gateway: GraphQL queries over
// the tag index, raw transaction downloads, and data item uploads.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/restclient"
)

// TxMeta is the metadata of a chain transaction, as needed by assignment
// overlay and the legacy Load path
type TxMeta struct {
	ID        string       `json:"id"`
	Signature string       `json:"signature"`
	Anchor    string       `json:"anchor"`
	Owner     string       `json:"owner"`
	Tags      aotypes.Tags `json:"tags"`
	Block     aotypes.Block
}

// Client reaches the Arweave gateway
type Client interface {
	FindCheckpoints(ctx context.Context, processID string, limit int) ([]*aotypes.Checkpoint, error)
	FindCheckpointRecord(ctx context.Context, owner, processID string, nonce, timestamp int64, cron string) (txID string, err error)
	GetTransaction(ctx context.Context, txID string) (*TxMeta, error)
	DownloadTxData(ctx context.Context, txID string) ([]byte, error)
	UploadDataItem(ctx context.Context, encoded []byte) (txID string, err error)
}

type client struct {
	ctx    context.Context
	client *resty.Client
	txMeta *gocache.Cache
}

const txMetaCacheTTL = 5 * time.Minute

// InitPrefix registers the gateway.* config section
func InitPrefix(prefix config.Prefix) {
	restclient.InitPrefix(prefix)
}

// NewClient builds a gateway client from the gateway.* config section
func NewClient(ctx context.Context, prefix config.Prefix) Client {
	ctx = log.WithLogField(ctx, "role", "gateway")
	return &client{
		ctx:    ctx,
		client: restclient.New(ctx, prefix),
		txMeta: gocache.New(txMetaCacheTTL, txMetaCacheTTL),
	}
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type gqlTagFilter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

type gqlNode struct {
	ID        string `json:"id"`
	Signature string `json:"signature"`
	Anchor    string `json:"anchor"`
	Owner     struct {
		Address string `json:"address"`
	} `json:"owner"`
	Tags  aotypes.Tags `json:"tags"`
	Block struct {
		Height    int64 `json:"height"`
		Timestamp int64 `json:"timestamp"`
	} `json:"block"`
}

type gqlResponse struct {
	Data struct {
		Transactions struct {
			Edges []struct {
				Node gqlNode `json:"node"`
			} `json:"edges"`
		} `json:"transactions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

const transactionsQuery = `query($tags: [TagFilter!], $owners: [String!], $ids: [ID!], $first: Int) {
  transactions(tags: $tags, owners: $owners, ids: $ids, first: $first, sort: HEIGHT_DESC) {
    edges {
      node {
        id
        signature
        anchor
        owner { address }
        tags { name value }
        block { height timestamp }
      }
    }
  }
}`

func (c *client) query(ctx context.Context, variables map[string]interface{}) ([]gqlNode, error) {
	var response gqlResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(&gqlRequest{Query: transactionsQuery, Variables: variables}).
		SetResult(&response).
		Post("/graphql")
	if err != nil || !res.IsSuccess() {
		return nil, restclient.WrapRestErr(ctx, res, err, i18n.MsgGatewayRequestFailed)
	}
	if len(response.Errors) > 0 {
		return nil, i18n.NewError(ctx, i18n.MsgGatewayRequestFailed, response.Errors[0].Message)
	}
	nodes := make([]gqlNode, len(response.Data.Transactions.Edges))
	for i, e := range response.Data.Transactions.Edges {
		nodes[i] = e.Node
	}
	return nodes, nil
}

func checkpointTagFilters(processID string) []gqlTagFilter {
	return []gqlTagFilter{
		{Name: aotypes.CheckpointTagDataProtocol, Values: []string{aotypes.CheckpointDataProtocol}},
		{Name: aotypes.CheckpointTagType, Values: []string{aotypes.CheckpointType}},
		{Name: aotypes.CheckpointTagProcess, Values: []string{processID}},
	}
}

// FindCheckpoints returns the most recent checkpoints of a process, by
// descending block height, up to the bounded fan-out
func (c *client) FindCheckpoints(ctx context.Context, processID string, limit int) ([]*aotypes.Checkpoint, error) {
	nodes, err := c.query(ctx, map[string]interface{}{
		"tags":  checkpointTagFilters(processID),
		"first": limit,
	})
	if err != nil {
		return nil, err
	}
	checkpoints := make([]*aotypes.Checkpoint, 0, len(nodes))
	for i := range nodes {
		cp, err := parseCheckpoint(ctx, &nodes[i])
		if err != nil {
			// A malformed checkpoint from another unit must not block recovery
			log.L(ctx).Warnf("Ignoring malformed checkpoint '%s': %s", nodes[i].ID, err)
			continue
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, nil
}

// FindCheckpointRecord probes for a previously published checkpoint with the
// identity tuple (owner, process, nonce, timestamp, cron), for idempotent publish
func (c *client) FindCheckpointRecord(ctx context.Context, owner, processID string, nonce, timestamp int64, cron string) (string, error) {
	tags := append(checkpointTagFilters(processID),
		gqlTagFilter{Name: aotypes.CheckpointTagNonce, Values: []string{fmt.Sprintf("%d", nonce)}},
		gqlTagFilter{Name: aotypes.CheckpointTagTimestamp, Values: []string{fmt.Sprintf("%d", timestamp)}},
	)
	if cron != "" {
		tags = append(tags, gqlTagFilter{Name: aotypes.CheckpointTagCronInterval, Values: []string{cron}})
	}
	nodes, err := c.query(ctx, map[string]interface{}{
		"tags":   tags,
		"owners": []string{owner},
		"first":  1,
	})
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", nil
	}
	return nodes[0].ID, nil
}

func parseCheckpoint(ctx context.Context, node *gqlNode) (*aotypes.Checkpoint, error) {
	cp := &aotypes.Checkpoint{
		TxID:      node.ID,
		ProcessID: node.Tags.GetValue(aotypes.CheckpointTagProcess),
		Module:    node.Tags.GetValue(aotypes.CheckpointTagModule),
		Cron:      node.Tags.GetValue(aotypes.CheckpointTagCronInterval),
		Encoding:  node.Tags.GetValue(aotypes.CheckpointTagContentEncoding),
		SHA256:    node.Tags.GetValue(aotypes.CheckpointTagSHA256),
	}
	var err error
	if cp.Nonce, err = parseIntTag(node.Tags, aotypes.CheckpointTagNonce); err == nil {
		if cp.Timestamp, err = parseIntTag(node.Tags, aotypes.CheckpointTagTimestamp); err == nil {
			cp.Epoch, _ = parseIntTag(node.Tags, aotypes.CheckpointTagEpoch)
			cp.BlockHeight, err = parseIntTag(node.Tags, aotypes.CheckpointTagBlockHeight)
		}
	}
	if err != nil || cp.ProcessID == "" {
		return nil, i18n.NewError(ctx, i18n.MsgCheckpointTagsInvalid, node.ID)
	}
	return cp, nil
}

func parseIntTag(tags aotypes.Tags, name string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(tags.GetValue(name), "%d", &v)
	return v, err
}

// GetTransaction fetches (and caches) the metadata of a transaction
func (c *client) GetTransaction(ctx context.Context, txID string) (*TxMeta, error) {
	if cached, ok := c.txMeta.Get(txID); ok {
		return cached.(*TxMeta), nil
	}
	nodes, err := c.query(ctx, map[string]interface{}{
		"ids":   []string{txID},
		"first": 1,
	})
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, i18n.NewError(ctx, i18n.MsgTxNotFound, txID)
	}
	node := nodes[0]
	meta := &TxMeta{
		ID:        node.ID,
		Signature: node.Signature,
		Anchor:    node.Anchor,
		Owner:     node.Owner.Address,
		Tags:      node.Tags,
		Block:     aotypes.Block{Height: node.Block.Height, Timestamp: node.Block.Timestamp},
	}
	c.txMeta.SetDefault(txID, meta)
	return meta, nil
}

// DownloadTxData streams the raw bytes of a transaction
func (c *client) DownloadTxData(ctx context.Context, txID string) ([]byte, error) {
	res, err := c.client.R().
		SetContext(ctx).
		Get("/raw/" + txID)
	if err != nil || !res.IsSuccess() {
		return nil, restclient.WrapRestErr(ctx, res, err, i18n.MsgDataFetchFailed)
	}
	return res.Body(), nil
}

// UploadDataItem posts a signed data item, returning the assigned id
func (c *client) UploadDataItem(ctx context.Context, encoded []byte) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", aotypes.CheckpointContentType).
		SetBody(encoded).
		SetResult(&result).
		Post("/tx")
	if err != nil || !res.IsSuccess() {
		return "", restclient.WrapRestErr(ctx, res, err, i18n.MsgGatewayRequestFailed)
	}
	return result.ID, nil
}
