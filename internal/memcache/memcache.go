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

// Package memcache is the bounded, TTL-aware cache of process memory images.
// Entries hold the gzipped memory plus the evaluation it corresponds to, and
// eviction hands the entry to a callback so a checkpoint can be published
// before the bytes are dropped.
package memcache

import (
	"bytes"
	"compress/gzip"
	"context"
	"io/ioutil"
	"sync"
	"time"

	"github.com/karlseguin/ccache"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/permagate-io/aonode/internal/log"
)

// Cached is a cache hit: the evaluation a memory image corresponds to, with
// the memory in uncompressed form as the evaluator requires it
type Cached struct {
	Evaluation *aotypes.Evaluation
	Memory     []byte
	Stale      bool
}

// EvictionHandler receives entries dropped by the size bound, carrying the
// still-compressed memory
type EvictionHandler func(processID string, evaluation *aotypes.Evaluation, compressedMemory []byte)

// Cache is the process-wide memory cache. Mutations serialize under an
// internal lock; a set whose position is earlier than the cached one is dropped.
type Cache interface {
	Get(ctx context.Context, processID string) (*Cached, error)
	Set(ctx context.Context, processID string, evaluation *aotypes.Evaluation, memory []byte) error
	SetCompressed(ctx context.Context, processID string, evaluation *aotypes.Evaluation, compressedMemory []byte) error
	LatestEvaluation(processID string) *aotypes.Evaluation
	Stop()
}

type entry struct {
	evaluation *aotypes.Evaluation
	compressed []byte
	replaced   bool // distinguishes set-replacement from eviction in onDelete
}

func (e *entry) Size() int64 {
	return int64(len(e.compressed))
}

type memCache struct {
	ctx        context.Context
	cache      *ccache.Cache
	ttl        time.Duration
	setLock    sync.Mutex
	onEviction EvictionHandler
}

// NewCache builds the cache from the cache.* config section
func NewCache(ctx context.Context, onEviction EvictionHandler) Cache {
	mc := &memCache{
		ctx:        log.WithLogField(ctx, "role", "memcache"),
		ttl:        config.GetDuration(config.CacheTTL),
		onEviction: onEviction,
	}
	mc.cache = ccache.New(ccache.Configure().
		MaxSize(config.GetByteSize(config.CacheMaxSize)).
		ItemsToPrune(1).
		OnDelete(mc.onDelete))
	return mc
}

func (mc *memCache) onDelete(item *ccache.Item) {
	e := item.Value().(*entry)
	if e.replaced || mc.onEviction == nil {
		return
	}
	log.L(mc.ctx).Debugf("Evicting process '%s' at sort key '%s'", e.evaluation.ProcessID, e.evaluation.SortKey)
	mc.onEviction(e.evaluation.ProcessID, e.evaluation, e.compressed)
}

func (mc *memCache) Get(ctx context.Context, processID string) (*Cached, error) {
	item := mc.cache.Get(processID)
	if item == nil {
		return nil, nil
	}
	e := item.Value().(*entry)
	stale := item.Expired()
	item.Extend(mc.ttl) // access renews TTL; expired entries are served stale
	memory, err := gunzip(ctx, e.compressed)
	if err != nil {
		return nil, err
	}
	return &Cached{
		Evaluation: e.evaluation,
		Memory:     memory,
		Stale:      stale,
	}, nil
}

func (mc *memCache) Set(ctx context.Context, processID string, evaluation *aotypes.Evaluation, memory []byte) error {
	compressed, err := Gzip(ctx, memory)
	if err != nil {
		return err
	}
	return mc.SetCompressed(ctx, processID, evaluation, compressed)
}

func (mc *memCache) SetCompressed(ctx context.Context, processID string, evaluation *aotypes.Evaluation, compressedMemory []byte) error {
	mc.setLock.Lock()
	defer mc.setLock.Unlock()

	if existing := mc.cache.Get(processID); existing != nil {
		e := existing.Value().(*entry)
		if aotypes.IsLaterThan(evaluation, e.evaluation) {
			// The cached position is later than the incoming one - drop the set
			log.L(ctx).Debugf("Skipping cache regression for process '%s': cached '%s' incoming '%s'",
				processID, e.evaluation.SortKey, evaluation.SortKey)
			return nil
		}
		e.replaced = true
	}
	mc.cache.Set(processID, &entry{
		evaluation: evaluation,
		compressed: compressedMemory,
	}, mc.ttl)
	return nil
}

func (mc *memCache) LatestEvaluation(processID string) *aotypes.Evaluation {
	item := mc.cache.Get(processID)
	if item == nil {
		return nil
	}
	return item.Value().(*entry).evaluation
}

func (mc *memCache) Stop() {
	mc.cache.Stop()
}

func gunzip(ctx context.Context, compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgMemoryDecodeFailed, aotypes.EncodingGzip)
	}
	defer zr.Close()
	memory, err := ioutil.ReadAll(zr)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgMemoryDecodeFailed, aotypes.EncodingGzip)
	}
	return memory, nil
}

// Gzip compresses a memory image for storage or upload
func Gzip(ctx context.Context, memory []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(memory); err != nil {
		_ = zw.Close()
		return nil, i18n.WrapError(ctx, err, i18n.MsgMemoryEncodeFailed)
	}
	if err := zw.Close(); err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgMemoryEncodeFailed)
	}
	return buf.Bytes(), nil
}

// Gunzip decompresses a stored or downloaded memory image
func Gunzip(ctx context.Context, compressed []byte) ([]byte, error) {
	return gunzip(ctx, compressed)
}
