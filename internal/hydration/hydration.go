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

// Package hydration enriches the ordered message stream before evaluation:
// deep-hashing forwarded messages, resolving the legacy Load data path, and
// overlaying assignments. Stages preserve order and pass through messages
// they do not apply to; any stage error terminates the stream.
package hydration

import (
	"context"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/deephash"
	"github.com/permagate-io/aonode/internal/gateway"
	"github.com/permagate-io/aonode/internal/log"
)

// OverlayPolicy applies the fields of a chain transaction onto an assignment
// message. The default overlays Owner and From from the transaction; see the
// policy note in DESIGN.md.
type OverlayPolicy func(msg *aotypes.Message, meta *gateway.TxMeta, data []byte)

// DefaultOverlay overlays Id, Signature, Owner, From, Tags, Anchor and Data
func DefaultOverlay(msg *aotypes.Message, meta *gateway.TxMeta, data []byte) {
	msg.Message.ID = meta.ID
	msg.Message.Signature = meta.Signature
	msg.Message.Owner = meta.Owner
	msg.Message.From = meta.Owner
	msg.Message.Tags = meta.Tags
	msg.Message.Anchor = meta.Anchor
	msg.Message.Data = string(data)
}

// Pipeline hydrates a message stream
type Pipeline struct {
	gateway      gateway.Client
	overlay      OverlayPolicy
	loadMaxBlock int64
}

// NewPipeline builds a hydration pipeline. The legacy Load transform only
// engages when hydration.loadMaxBlock is set; it is a sunset feature.
func NewPipeline(gw gateway.Client, overlay OverlayPolicy) *Pipeline {
	if overlay == nil {
		overlay = DefaultOverlay
	}
	return &Pipeline{
		gateway:      gw,
		overlay:      overlay,
		loadMaxBlock: config.GetInt64(config.HydrationLoadMaxBlock),
	}
}

// stage transforms one message: it may update it in place, drop it, or fail
type stage func(ctx context.Context, msg *aotypes.Message) (drop bool, err error)

// Hydrate composes the transform stages over the input stream. Exactly one
// output is produced per input (unless dropped), in input order. The first
// error, from upstream or any stage, is sent on the error channel and
// terminates the stream.
func (p *Pipeline) Hydrate(ctx context.Context, in <-chan *aotypes.Message, inErrs <-chan error) (<-chan *aotypes.Message, <-chan error) {
	out := make(chan *aotypes.Message)
	errs := make(chan error, 1)

	stages := []stage{
		p.maybeDeepHash,
		p.maybeLoadData,
		p.maybeAssignment,
		p.validate,
	}

	go func() {
		defer close(out)
		for {
			select {
			case err := <-inErrs:
				errs <- err
				return
			case msg, ok := <-in:
				if !ok {
					// Upstream may have failed right at end of stream
					select {
					case err := <-inErrs:
						errs <- err
					default:
					}
					return
				}
				drop, err := p.apply(ctx, stages, msg)
				if err != nil {
					errs <- err
					return
				}
				if drop {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errs
}

func (p *Pipeline) apply(ctx context.Context, stages []stage, msg *aotypes.Message) (bool, error) {
	for _, s := range stages {
		drop, err := s(ctx, msg)
		if err != nil {
			return false, err
		}
		if drop {
			return true, nil
		}
	}
	return false, nil
}

// maybeDeepHash attaches the dedup digest to forwarded messages
func (p *Pipeline) maybeDeepHash(ctx context.Context, msg *aotypes.Message) (bool, error) {
	if msg.Message.ForwardedBy == "" {
		return false, nil
	}
	hash, err := deephash.HashMessage(ctx, []byte(msg.Message.Data), msg.Message.Tags, msg.Message.Target, msg.Message.Anchor)
	if err != nil {
		// An uncomputable digest desynchronizes dedup state: fail the batch
		// rather than skip
		return false, err
	}
	msg.DeepHash = hash
	return false, nil
}

// maybeLoadData resolves the legacy Load tag, for messages below the sunset
// block height. Load messages at or above the cutoff are dropped.
func (p *Pipeline) maybeLoadData(ctx context.Context, msg *aotypes.Message) (bool, error) {
	if p.loadMaxBlock <= 0 {
		return false, nil
	}
	loadTx := msg.Message.Tags.GetValue(aotypes.TagLoad)
	if loadTx == "" || msg.IsCron {
		return false, nil
	}
	if msg.Message.BlockHeight >= p.loadMaxBlock {
		log.L(ctx).Debugf("Dropping Load message '%s' above sunset height %d", msg.Message.ID, p.loadMaxBlock)
		return true, nil
	}
	meta, err := p.gateway.GetTransaction(ctx, loadTx)
	if err != nil {
		return false, err
	}
	data, err := p.gateway.DownloadTxData(ctx, loadTx)
	if err != nil {
		return false, err
	}
	msg.Message.Data = string(data)
	msg.Message.From = meta.Owner
	return false, nil
}

// maybeAssignment overlays the referenced chain transaction onto the message
func (p *Pipeline) maybeAssignment(ctx context.Context, msg *aotypes.Message) (bool, error) {
	if !msg.IsAssignment {
		return false, nil
	}
	meta, err := p.gateway.GetTransaction(ctx, msg.Message.ID)
	if err != nil {
		return false, err
	}
	data, err := p.gateway.DownloadTxData(ctx, msg.Message.ID)
	if err != nil {
		return false, err
	}
	p.overlay(msg, meta, data)
	return false, nil
}

// validate re-parses the final shape, to catch transform bugs
func (p *Pipeline) validate(ctx context.Context, msg *aotypes.Message) (bool, error) {
	return false, aotypes.ValidateMessage(ctx, msg)
}
