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

package hydration

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/gateway"
	"github.com/stretchr/testify/assert"
)

type fakeGateway struct {
	meta    map[string]*gateway.TxMeta
	data    map[string][]byte
	metaErr error
}

func (f *fakeGateway) FindCheckpoints(ctx context.Context, processID string, limit int) ([]*aotypes.Checkpoint, error) {
	return nil, nil
}
func (f *fakeGateway) FindCheckpointRecord(ctx context.Context, owner, processID string, nonce, timestamp int64, cron string) (string, error) {
	return "", nil
}
func (f *fakeGateway) GetTransaction(ctx context.Context, txID string) (*gateway.TxMeta, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return f.meta[txID], nil
}
func (f *fakeGateway) DownloadTxData(ctx context.Context, txID string) ([]byte, error) {
	return f.data[txID], nil
}
func (f *fakeGateway) UploadDataItem(ctx context.Context, encoded []byte) (string, error) {
	return "", nil
}

func validTarget() string {
	return base64.RawURLEncoding.EncodeToString(make([]byte, 32))
}

func testMessage(id string) *aotypes.Message {
	return &aotypes.Message{
		SortKey: aotypes.SortKey("1,100,a").Canonical(),
		Message: aotypes.MessageData{
			ID:          id,
			Owner:       "owner1",
			Target:      validTarget(),
			From:        "owner1",
			BlockHeight: 100,
			Tags:        aotypes.Tags{},
		},
		AoGlobal: aotypes.AoGlobal{
			Process: aotypes.ProcessRef{ID: validTarget(), Owner: "powner"},
			Block:   aotypes.Block{Height: 1, Timestamp: 100},
		},
	}
}

func hydrateAll(t *testing.T, p *Pipeline, in []*aotypes.Message) ([]*aotypes.Message, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan *aotypes.Message)
	srcErrs := make(chan error, 1)
	go func() {
		defer close(src)
		for _, msg := range in {
			src <- msg
		}
	}()
	out, errs := p.Hydrate(ctx, src, srcErrs)
	var result []*aotypes.Message
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return result, nil
			}
			result = append(result, msg)
		case err := <-errs:
			cancel()
			return result, err
		}
	}
}

func TestHydratePassThrough(t *testing.T) {
	config.Reset()
	p := NewPipeline(&fakeGateway{}, nil)
	out, err := hydrateAll(t, p, []*aotypes.Message{testMessage("m1"), testMessage("m2")})
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].Message.ID)
	assert.Equal(t, "m2", out[1].Message.ID)
	assert.Empty(t, out[0].DeepHash)
}

func TestHydrateDeepHashForwarded(t *testing.T) {
	config.Reset()
	p := NewPipeline(&fakeGateway{}, nil)
	fwd := testMessage("m1")
	fwd.Message.ForwardedBy = "muaddr"
	fwd.Message.ForwardedFor = "origin"
	out, err := hydrateAll(t, p, []*aotypes.Message{fwd})
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Len(t, out[0].DeepHash, 64)
}

func TestHydrateDeepHashFailureHalts(t *testing.T) {
	config.Reset()
	p := NewPipeline(&fakeGateway{}, nil)
	fwd := testMessage("m1")
	fwd.Message.ForwardedBy = "muaddr"
	fwd.Message.Target = "not-a-valid-target!"
	_, err := hydrateAll(t, p, []*aotypes.Message{fwd})
	assert.Regexp(t, "AO10206", err)
}

func TestHydrateLoadBelowCutoff(t *testing.T) {
	config.Reset()
	config.Set(config.HydrationLoadMaxBlock, 1000)
	fg := &fakeGateway{
		meta: map[string]*gateway.TxMeta{"loadtx": {ID: "loadtx", Owner: "dataowner"}},
		data: map[string][]byte{"loadtx": []byte("loaded-data")},
	}
	p := NewPipeline(fg, nil)
	msg := testMessage("m1")
	msg.Message.Tags = aotypes.Tags{{Name: "Load", Value: "loadtx"}}
	out, err := hydrateAll(t, p, []*aotypes.Message{msg})
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "loaded-data", out[0].Message.Data)
	assert.Equal(t, "dataowner", out[0].Message.From)
}

func TestHydrateLoadAboveCutoffDropped(t *testing.T) {
	config.Reset()
	config.Set(config.HydrationLoadMaxBlock, 10)
	p := NewPipeline(&fakeGateway{}, nil)
	msg := testMessage("m1") // block height 100
	msg.Message.Tags = aotypes.Tags{{Name: "Load", Value: "loadtx"}}
	out, err := hydrateAll(t, p, []*aotypes.Message{msg, testMessage("m2")})
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "m2", out[0].Message.ID)
}

func TestHydrateLoadDisabledPassesThrough(t *testing.T) {
	config.Reset() // loadMaxBlock defaults to 0: transform disabled
	p := NewPipeline(&fakeGateway{}, nil)
	msg := testMessage("m1")
	msg.Message.Tags = aotypes.Tags{{Name: "Load", Value: "loadtx"}}
	out, err := hydrateAll(t, p, []*aotypes.Message{msg})
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Empty(t, out[0].Message.Data)
}

func TestHydrateAssignmentOverlay(t *testing.T) {
	config.Reset()
	fg := &fakeGateway{
		meta: map[string]*gateway.TxMeta{"m1": {
			ID:        "m1",
			Signature: "sig",
			Owner:     "chainowner",
			Anchor:    "anchor1",
			Tags:      aotypes.Tags{{Name: "Action", Value: "Assigned"}},
		}},
		data: map[string][]byte{"m1": []byte("assigned-data")},
	}
	p := NewPipeline(fg, nil)
	msg := testMessage("m1")
	msg.IsAssignment = true
	out, err := hydrateAll(t, p, []*aotypes.Message{msg})
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	// Owner and From both overlay from the chain transaction
	assert.Equal(t, "chainowner", out[0].Message.Owner)
	assert.Equal(t, "chainowner", out[0].Message.From)
	assert.Equal(t, "assigned-data", out[0].Message.Data)
	assert.Equal(t, "Assigned", out[0].Message.Tags.GetValue("Action"))
}

func TestHydrateAssignmentFetchFails(t *testing.T) {
	config.Reset()
	p := NewPipeline(&fakeGateway{metaErr: fmt.Errorf("pop")}, nil)
	msg := testMessage("m1")
	msg.IsAssignment = true
	_, err := hydrateAll(t, p, []*aotypes.Message{msg})
	assert.Regexp(t, "pop", err)
}

func TestHydrateTerminalValidation(t *testing.T) {
	config.Reset()
	fg := &fakeGateway{
		meta: map[string]*gateway.TxMeta{"m1": {ID: "m1"}}, // empty owner breaks the schema
		data: map[string][]byte{},
	}
	p := NewPipeline(fg, nil)
	msg := testMessage("m1")
	msg.IsAssignment = true
	_, err := hydrateAll(t, p, []*aotypes.Message{msg})
	assert.Regexp(t, "AO10202", err)
}

func TestHydrateUpstreamErrorPropagates(t *testing.T) {
	config.Reset()
	p := NewPipeline(&fakeGateway{}, nil)
	src := make(chan *aotypes.Message)
	srcErrs := make(chan error, 1)
	srcErrs <- fmt.Errorf("upstream pop")
	close(src)
	out, errs := p.Hydrate(context.Background(), src, srcErrs)
	select {
	case err := <-errs:
		assert.Regexp(t, "upstream pop", err)
	case _, ok := <-out:
		assert.False(t, ok, "expected no messages")
		assert.Regexp(t, "upstream pop", <-errs)
	}
}
