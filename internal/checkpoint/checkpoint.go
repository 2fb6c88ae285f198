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

// Package checkpoint publishes and discovers process memory snapshots on
// Arweave, so a unit can recover evaluation state without replaying from
// genesis.
package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/deephash"
	"github.com/permagate-io/aonode/internal/gateway"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
	"github.com/permagate-io/aonode/internal/memcache"
)

// AnchorPolicy decides the anchor set on published checkpoint data items.
// The default leaves it empty. TODO: revisit once the network settles on an
// anchor convention for checkpoints.
type AnchorPolicy func(e *aotypes.Evaluation) string

// Store publishes and discovers checkpoints
type Store interface {
	// Discover returns the latest checkpoint not later than the target
	// position, with uncompressed memory. A nil result is the cold start
	// signal: no usable checkpoint exists.
	Discover(ctx context.Context, processID string, target *aotypes.Evaluation) (*aotypes.Checkpoint, error)

	// Publish uploads a checkpoint for an evaluation, unless one with the
	// same identity tuple was already published by this unit
	Publish(ctx context.Context, module string, e *aotypes.Evaluation, compressedMemory []byte) (txID string, err error)
}

type store struct {
	gateway    gateway.Client
	signer     *deephash.Signer
	queryLimit int
	anchor     AnchorPolicy
}

// NewStore builds a checkpoint store. The signer may be nil on read-only
// units, in which case Publish fails.
func NewStore(gw gateway.Client, signer *deephash.Signer, anchor AnchorPolicy) Store {
	if anchor == nil {
		anchor = func(*aotypes.Evaluation) string { return "" }
	}
	return &store{
		gateway:    gw,
		signer:     signer,
		queryLimit: config.GetInt(config.CheckpointQueryLimit),
		anchor:     anchor,
	}
}

func (s *store) Discover(ctx context.Context, processID string, target *aotypes.Evaluation) (*aotypes.Checkpoint, error) {
	candidates, err := s.gateway.FindCheckpoints(ctx, processID, s.queryLimit)
	if err != nil {
		// Transient gateway failures degrade to cold start
		log.L(ctx).Warnf("Checkpoint discovery failed for process '%s': %s", processID, err)
		return nil, nil
	}

	// Reduce to the latest candidate that is not later than the target
	var best *aotypes.Checkpoint
	for _, cp := range candidates {
		if target != nil && aotypes.IsLaterThan(target, cp.AsEvaluation()) {
			continue
		}
		if best == nil || aotypes.IsLaterThan(best.AsEvaluation(), cp.AsEvaluation()) {
			best = cp
		}
	}
	if best == nil {
		return nil, nil
	}

	data, err := s.gateway.DownloadTxData(ctx, best.TxID)
	if err != nil {
		log.L(ctx).Warnf("Checkpoint download failed for '%s': %s", best.TxID, err)
		return nil, nil
	}
	memory := data
	if best.Encoding == aotypes.EncodingGzip {
		if memory, err = memcache.Gunzip(ctx, data); err != nil {
			log.L(ctx).Warnf("Checkpoint decode failed for '%s': %s", best.TxID, err)
			return nil, nil
		}
	}
	if sum := memorySHA256(memory); sum != best.SHA256 {
		log.L(ctx).Warnf("Checkpoint '%s' SHA-256 mismatch: tag '%s' computed '%s'", best.TxID, best.SHA256, sum)
		return nil, nil
	}
	best.Memory = memory
	log.L(ctx).Infof("Recovered process '%s' from checkpoint '%s' (nonce=%d)", processID, best.TxID, best.Nonce)
	return best, nil
}

func (s *store) Publish(ctx context.Context, module string, e *aotypes.Evaluation, compressedMemory []byte) (string, error) {
	if s.signer == nil {
		return "", i18n.NewError(ctx, i18n.MsgCheckpointNoSigner)
	}

	// Idempotence: an already-published identity tuple is a no-op
	existing, err := s.gateway.FindCheckpointRecord(ctx, s.signer.Address(), e.ProcessID, e.Nonce, e.Timestamp, e.Cron)
	if err != nil {
		return "", err
	}
	if existing != "" {
		log.L(ctx).Debugf("Checkpoint already published for process '%s' nonce=%d: %s", e.ProcessID, e.Nonce, existing)
		return existing, nil
	}

	memory, err := memcache.Gunzip(ctx, compressedMemory)
	if err != nil {
		return "", err
	}

	tags := aotypes.Tags{
		{Name: aotypes.CheckpointTagDataProtocol, Value: aotypes.CheckpointDataProtocol},
		{Name: aotypes.CheckpointTagVariant, Value: aotypes.CheckpointVariant},
		{Name: aotypes.CheckpointTagType, Value: aotypes.CheckpointType},
		{Name: aotypes.CheckpointTagModule, Value: module},
		{Name: aotypes.CheckpointTagProcess, Value: e.ProcessID},
		{Name: aotypes.CheckpointTagEpoch, Value: fmt.Sprintf("%d", e.Epoch)},
		{Name: aotypes.CheckpointTagNonce, Value: fmt.Sprintf("%d", e.Nonce)},
		{Name: aotypes.CheckpointTagTimestamp, Value: fmt.Sprintf("%d", e.Timestamp)},
		{Name: aotypes.CheckpointTagBlockHeight, Value: fmt.Sprintf("%d", e.BlockHeight)},
		{Name: aotypes.CheckpointTagContentType, Value: aotypes.CheckpointContentType},
		{Name: aotypes.CheckpointTagSHA256, Value: memorySHA256(memory)},
		{Name: aotypes.CheckpointTagContentEncoding, Value: aotypes.EncodingGzip},
	}
	if e.Cron != "" {
		tags = append(tags, aotypes.Tag{Name: aotypes.CheckpointTagCronInterval, Value: e.Cron})
	}

	item, err := deephash.NewDataItem(ctx, compressedMemory, tags, "", s.anchor(e))
	if err != nil {
		return "", err
	}
	if err := s.signer.Sign(ctx, item); err != nil {
		return "", err
	}
	txID, err := s.gateway.UploadDataItem(ctx, item.Encode())
	if err != nil {
		return "", err
	}
	log.L(ctx).Infof("Published checkpoint '%s' for process '%s' (nonce=%d)", txID, e.ProcessID, e.Nonce)
	return txID, nil
}

// memorySHA256 hashes the uncompressed memory, as the SHA-256 tag requires
func memorySHA256(memory []byte) string {
	sum := sha256.Sum256(memory)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
