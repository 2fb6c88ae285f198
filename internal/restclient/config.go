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

import "github.com/permagate-io/aonode/internal/config"

const (
	defaultRetryEnabled     = true
	defaultRetryCount       = 5
	defaultRetryWaitTime    = "250ms"
	defaultRetryMaxWaitTime = "30s"
	defaultRequestTimeout   = "30s"
)

const (
	HTTPConfigURL              = "url"
	HTTPConfigHeaders          = "headers"
	HTTPConfigRequestTimeout   = "requestTimeout"
	HTTPConfigRetryEnabled     = "retry.enabled"
	HTTPConfigRetryCount       = "retry.count"
	HTTPConfigRetryWaitTime    = "retry.waitTime"
	HTTPConfigRetryMaxWaitTime = "retry.maxWaitTime"

	// Unit test only
	HTTPCustomClient = "customClient"
)

func InitPrefix(prefix config.Prefix) {
	prefix.AddKnownKey(HTTPConfigURL)
	prefix.AddKnownKey(HTTPConfigHeaders)
	prefix.AddKnownKey(HTTPConfigRequestTimeout, defaultRequestTimeout)
	prefix.AddKnownKey(HTTPConfigRetryEnabled, defaultRetryEnabled)
	prefix.AddKnownKey(HTTPConfigRetryCount, defaultRetryCount)
	prefix.AddKnownKey(HTTPConfigRetryWaitTime, defaultRetryWaitTime)
	prefix.AddKnownKey(HTTPConfigRetryMaxWaitTime, defaultRetryMaxWaitTime)

	prefix.AddKnownKey(HTTPCustomClient)
}
