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

package sequencer

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/restclient"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T) *client {
	config.Reset()
	prefix := config.NewPluginConfig("sequencer")
	InitPrefix(prefix)
	prefix.Set(restclient.HTTPConfigURL, "http://su.example.com")
	prefix.Set(restclient.HTTPConfigRetryEnabled, false)
	c := NewClient(context.Background(), prefix).(*client)
	httpmock.ActivateNonDefault(c.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func testProcess() *aotypes.Process {
	return &aotypes.Process{ID: "proc1", Owner: "powner"}
}

func interactionJSON(id, sortKey string, height interface{}) string {
	h, _ := height.(string)
	if h == "" {
		h = fmt.Sprintf("%v", height)
	} else {
		h = fmt.Sprintf("%q", h)
	}
	return fmt.Sprintf(`{"interaction":{
		"id": "%s",
		"sortKey": "%s",
		"owner": {"address": "owner1"},
		"block": {"id": "blk", "height": %s, "timestamp": "1694181441598"},
		"tags": [{"name": "Action", "value": "Eval"}]
	}}`, id, sortKey, h)
}

func drain(t *testing.T, msgs <-chan *aotypes.Message, errs <-chan error) ([]*aotypes.Message, error) {
	var out []*aotypes.Message
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				// Check for a trailing error before reporting clean end of stream
				select {
				case err := <-errs:
					return out, err
				default:
					return out, nil
				}
			}
			out = append(out, msg)
		case err := <-errs:
			return out, err
		}
	}
}

func TestLoadMessagesReversesDescendingPages(t *testing.T) {
	c := newTestClient(t)
	pages := []string{
		// Page 1: B then A (descending)
		fmt.Sprintf(`{"paging":{"total":2},"interactions":[%s,%s]}`,
			interactionJSON("msgB", "000000000002,200,b", 2),
			interactionJSON("msgA", "000000000001,100,a", 1)),
		`{"paging":{"total":2},"interactions":[]}`,
	}
	call := 0
	httpmock.RegisterResponder("GET", "http://su.example.com/gateway/v2/interactions-sort-key",
		func(req *http.Request) (*http.Response, error) {
			page := pages[call]
			call++
			return httpmock.NewStringResponse(200, page), nil
		})

	msgs, errs := c.LoadMessages(context.Background(), testProcess(), "1", "2")
	out, err := drain(t, msgs, errs)
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, "msgA", out[0].Message.ID)
	assert.Equal(t, "msgB", out[1].Message.ID)
	// Stringy block numbers coerced
	assert.Equal(t, int64(1694181441598), out[0].Message.Timestamp)
	assert.Equal(t, int64(1), out[0].AoGlobal.Block.Height)
	assert.Equal(t, "proc1", out[0].Message.Target)
}

func TestLoadMessagesBoundsMapping(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://su.example.com/gateway/v2/interactions-sort-key",
		func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			assert.Equal(t, "000000000042,100,a", q.Get("from"))
			// Height-only `to` is incremented so the terminal block is included
			assert.Equal(t, "000000000100", q.Get("to"))
			return httpmock.NewStringResponse(200, `{"interactions":[]}`), nil
		})

	msgs, errs := c.LoadMessages(context.Background(), testProcess(), "42,100,a", "99")
	out, err := drain(t, msgs, errs)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestLoadMessagesMalformedPageFailsStream(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://su.example.com/gateway/v2/interactions-sort-key",
		httpmock.NewStringResponder(200, `{"paging":{"total":1},"interactions":[{"interaction":{"id":"x","sortKey":"","owner":{"address":""},"block":{}}}]}`))

	msgs, errs := c.LoadMessages(context.Background(), testProcess(), "", "")
	_, err := drain(t, msgs, errs)
	assert.Regexp(t, "AO10303", err)
}

func TestLoadMessagesServerError(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("GET", "http://su.example.com/gateway/v2/interactions-sort-key",
		httpmock.NewStringResponder(500, "pop"))

	msgs, errs := c.LoadMessages(context.Background(), testProcess(), "", "")
	_, err := drain(t, msgs, errs)
	assert.Regexp(t, "AO10300", err)
}

func TestLoadMessagesForwardedTags(t *testing.T) {
	c := newTestClient(t)
	page := `{"interactions":[{"interaction":{
		"id": "msgF",
		"sortKey": "000000000001,100,a",
		"owner": {"address": "muaddr"},
		"block": {"height": 1, "timestamp": 100},
		"tags": [
			{"name": "Forwarded-By", "value": "muaddr"},
			{"name": "Forwarded-For", "value": "origin"},
			{"name": "Nonce", "value": "12"}
		]
	}}]}`
	calls := 0
	httpmock.RegisterResponder("GET", "http://su.example.com/gateway/v2/interactions-sort-key",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(200, page), nil
			}
			return httpmock.NewStringResponse(200, `{"interactions":[]}`), nil
		})

	msgs, errs := c.LoadMessages(context.Background(), testProcess(), "", "")
	out, err := drain(t, msgs, errs)
	assert.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, "origin", out[0].Message.From)
	assert.Equal(t, "muaddr", out[0].Message.ForwardedBy)
	assert.Equal(t, int64(12), out[0].Message.Nonce)
}

func TestWriteMessage(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://su.example.com/message",
		httpmock.NewStringResponder(200, `{"id":"tx123"}`))

	id, err := c.WriteMessage(context.Background(), []byte{1, 2, 3})
	assert.NoError(t, err)
	assert.Equal(t, "tx123", id)
}

func TestWriteMessageErrorBody(t *testing.T) {
	c := newTestClient(t)
	httpmock.RegisterResponder("POST", "http://su.example.com/message",
		httpmock.NewStringResponder(400, `invalid data item`))

	_, err := c.WriteMessage(context.Background(), []byte{1})
	assert.Regexp(t, "AO10305.*invalid data item", err)
}
