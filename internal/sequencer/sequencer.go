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

// Package sequencer is the client for the sequencer unit: the ordered message
// source consumed by the evaluator, and the message writer used when cranking.
package sequencer

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/restclient"
)

// Client reaches the sequencer unit
type Client interface {
	// LoadMessages opens the ordered stream of messages for a process in
	// [from, to). The returned channel closes at end of stream; an error on
	// the error channel terminates the stream.
	LoadMessages(ctx context.Context, process *aotypes.Process, from, to aotypes.SortKey) (<-chan *aotypes.Message, <-chan error)

	// WriteMessage posts a signed data item for ordering, returning its id
	WriteMessage(ctx context.Context, encoded []byte) (string, error)
}

type client struct {
	ctx    context.Context
	client *resty.Client
}

// InitPrefix registers the sequencer.* config section
func InitPrefix(prefix config.Prefix) {
	restclient.InitPrefix(prefix)
}

// NewClient builds a sequencer client from the sequencer.* config section
func NewClient(ctx context.Context, prefix config.Prefix) Client {
	ctx = log.WithLogField(ctx, "role", "sequencer")
	return &client{
		ctx:    ctx,
		client: restclient.New(ctx, prefix),
	}
}

// stringyInt64 coerces block fields that some sequencers serialize as strings
type stringyInt64 int64

func (si *stringyInt64) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*si = stringyInt64(v)
		return nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*si = stringyInt64(n)
		return nil
	default:
		return i18n.NewError(context.Background(), i18n.MsgScanFailed, raw, si)
	}
}

type interaction struct {
	ID      string `json:"id"`
	SortKey string `json:"sortKey"`
	Owner   struct {
		Address string `json:"address"`
	} `json:"owner"`
	Block struct {
		ID        string       `json:"id"`
		Height    stringyInt64 `json:"height"`
		Timestamp stringyInt64 `json:"timestamp"`
	} `json:"block"`
	Tags aotypes.Tags `json:"tags"`
}

type interactionsPage struct {
	Paging struct {
		Total stringyInt64 `json:"total"`
		Limit stringyInt64 `json:"limit"`
		Items stringyInt64 `json:"items"`
	} `json:"paging"`
	Interactions []struct {
		Interaction interaction `json:"interaction"`
	} `json:"interactions"`
}

func (c *client) LoadMessages(ctx context.Context, process *aotypes.Process, from, to aotypes.SortKey) (<-chan *aotypes.Message, <-chan error) {
	msgs := make(chan *aotypes.Message)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)

		// The sequencer pages in descending block-height order, so the whole
		// result set has to be drained before it can be replayed ascending
		interactions, err := c.fetchAll(ctx, process.ID, from, to)
		if err != nil {
			errs <- err
			return
		}
		for i := len(interactions) - 1; i >= 0; i-- {
			msg, err := toMessage(ctx, process, &interactions[i])
			if err != nil {
				errs <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				errs <- i18n.NewError(ctx, i18n.MsgContextCanceled)
				return
			}
		}
	}()

	return msgs, errs
}

func (c *client) fetchAll(ctx context.Context, processID string, from, to aotypes.SortKey) ([]interaction, error) {
	var all []interaction
	for page := 1; ; page++ {
		var result interactionsPage
		req := c.client.R().
			SetContext(ctx).
			SetResult(&result).
			SetQueryParam("contractId", processID).
			SetQueryParam("page", strconv.Itoa(page))
		if from != "" {
			req.SetQueryParam("from", string(from.Canonical()))
		}
		if to != "" {
			req.SetQueryParam("to", string(to.IncrementBound()))
		}
		res, err := req.Get("/gateway/v2/interactions-sort-key")
		if err != nil || !res.IsSuccess() {
			return nil, restclient.WrapRestErr(ctx, res, err, i18n.MsgSequencerRequestFailed)
		}
		if len(result.Interactions) == 0 {
			return all, nil
		}
		for _, wrapped := range result.Interactions {
			all = append(all, wrapped.Interaction)
		}
		if total := int(result.Paging.Total); total > 0 && len(all) >= total {
			return all, nil
		}
	}
}

func toMessage(ctx context.Context, process *aotypes.Process, in *interaction) (*aotypes.Message, error) {
	if in.SortKey == "" || in.Owner.Address == "" || in.Block.Height == 0 {
		return nil, i18n.NewError(ctx, i18n.MsgSequencerSchemaFail, in.ID)
	}
	sortKey, err := aotypes.ParseSortKey(ctx, in.SortKey)
	if err != nil {
		return nil, err
	}

	from := in.Tags.GetValue(aotypes.TagForwardedFor)
	if from == "" {
		from = in.Owner.Address
	}
	epoch, _ := strconv.ParseInt(in.Tags.GetValue("Epoch"), 10, 64)
	nonce, _ := strconv.ParseInt(in.Tags.GetValue("Nonce"), 10, 64)

	msg := &aotypes.Message{
		SortKey:      sortKey,
		IsAssignment: in.Tags.GetValue(aotypes.TagAoType) == "assignment",
		Message: aotypes.MessageData{
			ID:           in.ID,
			Owner:        in.Owner.Address,
			Target:       process.ID,
			From:         from,
			ForwardedBy:  in.Tags.GetValue(aotypes.TagForwardedBy),
			ForwardedFor: in.Tags.GetValue(aotypes.TagForwardedFor),
			Epoch:        epoch,
			Nonce:        nonce,
			Timestamp:    int64(in.Block.Timestamp),
			BlockHeight:  int64(in.Block.Height),
			Tags:         in.Tags,
		},
		AoGlobal: aotypes.AoGlobal{
			Process: aotypes.ProcessRef{ID: process.ID, Owner: process.Owner, Tags: process.Tags},
			Block: aotypes.Block{
				Height:    int64(in.Block.Height),
				Timestamp: int64(in.Block.Timestamp),
			},
		},
	}
	return msg, nil
}

func (c *client) WriteMessage(ctx context.Context, encoded []byte) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(encoded).
		SetResult(&result).
		Post("/message")
	if err != nil || !res.IsSuccess() {
		return "", restclient.WrapRestErr(ctx, res, err, i18n.MsgWriteMessageFailed)
	}
	return result.ID, nil
}
