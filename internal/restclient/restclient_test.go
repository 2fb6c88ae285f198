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

package restclient

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/permagate-io/aonode/internal/config"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/stretchr/testify/assert"
)

func newTestPrefix() config.Prefix {
	config.Reset()
	prefix := config.NewPluginConfig("unittest.rest")
	InitPrefix(prefix)
	prefix.Set(HTTPConfigURL, "http://unit.example.com")
	return prefix
}

func TestRequestOK(t *testing.T) {
	prefix := newTestPrefix()
	prefix.Set(HTTPConfigHeaders, map[string]interface{}{"x-unit": "test"})
	c := New(context.Background(), prefix)
	httpmock.ActivateNonDefault(c.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://unit.example.com/thing",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test", req.Header.Get("x-unit"))
			return httpmock.NewStringResponse(200, "ok"), nil
		})

	res, err := c.R().SetContext(context.Background()).Get("/thing")
	assert.NoError(t, err)
	assert.True(t, res.IsSuccess())
}

func TestRequestRetries(t *testing.T) {
	prefix := newTestPrefix()
	prefix.Set(HTTPConfigRetryCount, 1)
	prefix.Set(HTTPConfigRetryWaitTime, "1ms")
	prefix.Set(HTTPConfigRetryMaxWaitTime, "1ms")
	c := New(context.Background(), prefix)
	httpmock.ActivateNonDefault(c.GetClient())
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "http://unit.example.com/flaky",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(500, "pop"), nil
			}
			return httpmock.NewStringResponse(200, "ok"), nil
		})

	res, err := c.R().SetContext(context.Background()).Get("/flaky")
	assert.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, 2, calls)
}

func TestCustomClient(t *testing.T) {
	prefix := newTestPrefix()
	customClient := &http.Client{}
	prefix.Set(HTTPCustomClient, customClient)
	c := New(context.Background(), prefix)
	assert.Equal(t, customClient, c.GetClient())
}

func TestWrapRestErr(t *testing.T) {
	prefix := newTestPrefix()
	c := New(context.Background(), prefix)
	httpmock.ActivateNonDefault(c.GetClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "http://unit.example.com/broken",
		httpmock.NewStringResponder(500, "exploded"))

	res, err := c.R().SetContext(context.Background()).Get("/broken")
	assert.NoError(t, err)
	wrapped := WrapRestErr(context.Background(), res, nil, i18n.MsgGatewayRequestFailed)
	assert.Regexp(t, "AO10301.*exploded", wrapped)
}
