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

package gateway

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/restclient"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T) *client {
	config.Reset()
	prefix := config.NewPluginConfig("gateway")
	InitPrefix(prefix)
	prefix.Set(restclient.HTTPConfigURL, "http://arweave.example.com")
	prefix.Set(restclient.HTTPConfigRetryEnabled, false)
	c := NewClient(context.Background(), prefix).(*client)
	httpmock.ActivateNonDefault(c.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func checkpointNode(id string, nonce int) string {
	return fmt.Sprintf(`{
		"node": {
			"id": "%s",
			"owner": { "address": "owner1" },
			"tags": [
				{"name": "Data-Protocol", "value": "ao"},
				{"name": "Type", "value": "Checkpoint"},
				{"name": "Process", "value": "proc1"},
				{"name": "Module", "value": "mod1"},
				{"name": "Epoch", "value": "0"},
				{"name": "Nonce", "value": "%d"},
				{"name": "Timestamp", "value": "1000"},
				{"name": "Block-Height", "value": "42"},
				{"name": "SHA-256", "value": "hashhash"},
				{"name": "Content-Encoding", "value": "gzip"}
			],
			"block": { "height": 42, "timestamp": 1000 }
		}
	}`, id, nonce)
}

func TestFindCheckpoints(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		httpmock.NewStringResponder(200, fmt.Sprintf(`{"data":{"transactions":{"edges":[%s,%s]}}}`,
			checkpointNode("tx2", 2), checkpointNode("tx1", 1))))

	cps, err := c.FindCheckpoints(context.Background(), "proc1", 50)
	assert.NoError(t, err)
	assert.Len(t, cps, 2)
	assert.Equal(t, "tx2", cps[0].TxID)
	assert.Equal(t, int64(2), cps[0].Nonce)
	assert.Equal(t, "gzip", cps[0].Encoding)
	assert.Equal(t, "proc1", cps[0].ProcessID)
}

func TestFindCheckpointsSkipsMalformed(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		httpmock.NewStringResponder(200, fmt.Sprintf(`{"data":{"transactions":{"edges":[
			{"node":{"id":"bad","tags":[{"name":"Process","value":"proc1"}]}},%s]}}}`,
			checkpointNode("tx1", 1))))

	cps, err := c.FindCheckpoints(context.Background(), "proc1", 50)
	assert.NoError(t, err)
	assert.Len(t, cps, 1)
	assert.Equal(t, "tx1", cps[0].TxID)
}

func TestFindCheckpointsGQLErrors(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		httpmock.NewStringResponder(200, `{"errors":[{"message":"pop"}]}`))

	_, err := c.FindCheckpoints(context.Background(), "proc1", 50)
	assert.Regexp(t, "AO10301.*pop", err)
}

func TestFindCheckpointRecord(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		httpmock.NewStringResponder(200, fmt.Sprintf(`{"data":{"transactions":{"edges":[%s]}}}`,
			checkpointNode("tx9", 9))))

	txID, err := c.FindCheckpointRecord(context.Background(), "owner1", "proc1", 9, 1000, "1m")
	assert.NoError(t, err)
	assert.Equal(t, "tx9", txID)
}

func TestFindCheckpointRecordEmpty(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		httpmock.NewStringResponder(200, `{"data":{"transactions":{"edges":[]}}}`))

	txID, err := c.FindCheckpointRecord(context.Background(), "owner1", "proc1", 9, 1000, "")
	assert.NoError(t, err)
	assert.Empty(t, txID)
}

func TestGetTransactionCached(t *testing.T) {
	c := newTestClient(t)
	calls := 0
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(200, fmt.Sprintf(`{"data":{"transactions":{"edges":[%s]}}}`,
				checkpointNode("tx1", 1))), nil
		})

	meta, err := c.GetTransaction(context.Background(), "tx1")
	assert.NoError(t, err)
	assert.Equal(t, "owner1", meta.Owner)
	assert.Equal(t, int64(42), meta.Block.Height)

	_, err = c.GetTransaction(context.Background(), "tx1")
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetTransactionNotFound(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/graphql",
		httpmock.NewStringResponder(200, `{"data":{"transactions":{"edges":[]}}}`))

	_, err := c.GetTransaction(context.Background(), "txX")
	assert.Regexp(t, "AO10307", err)
}

func TestDownloadTxData(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://arweave.example.com/raw/tx1",
		httpmock.NewBytesResponder(200, []byte("raw-bytes")))

	b, err := c.DownloadTxData(context.Background(), "tx1")
	assert.NoError(t, err)
	assert.Equal(t, []byte("raw-bytes"), b)
}

func TestDownloadTxData404(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://arweave.example.com/raw/tx1",
		httpmock.NewStringResponder(404, "nope"))

	_, err := c.DownloadTxData(context.Background(), "tx1")
	assert.Regexp(t, "AO10304", err)
}

func TestUploadDataItem(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/tx",
		httpmock.NewStringResponder(200, `{"id":"newtx"}`))

	txID, err := c.UploadDataItem(context.Background(), []byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, "newtx", txID)
}

func TestUploadDataItemFail(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://arweave.example.com/tx",
		httpmock.NewStringResponder(500, "pop"))

	_, err := c.UploadDataItem(context.Background(), []byte{1})
	assert.Regexp(t, "AO10301", err)
}
