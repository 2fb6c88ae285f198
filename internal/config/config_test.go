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

package config

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	Reset()
	assert.Equal(t, "production", GetString(Mode))
	assert.Equal(t, 6363, GetInt(HTTPPort))
	assert.Equal(t, int64(500*1024*1024), GetByteSize(CacheMaxSize))
	assert.Equal(t, 10*time.Minute, GetDuration(CacheTTL))
	assert.Equal(t, 50, GetInt(CheckpointQueryLimit))
	assert.Equal(t, time.Second, GetDuration(MUMonitorInterval))
	assert.True(t, GetBool(LogColor))
	assert.Nil(t, Get(MUWallet))
}

func TestDurationMillisFallback(t *testing.T) {
	Reset()
	Set(CacheTTL, "250")
	assert.Equal(t, 250*time.Millisecond, GetDuration(CacheTTL))
	Set(CacheTTL, "!a duration")
	assert.Equal(t, time.Duration(0), GetDuration(CacheTTL))
}

func TestReadConfigFile(t *testing.T) {
	f, err := ioutil.TempFile("", "aonode*.yaml")
	assert.NoError(t, err)
	defer os.Remove(f.Name())
	_, _ = f.WriteString("mode: development\nhydration:\n  loadMaxBlock: 123456\n")
	_ = f.Close()

	assert.NoError(t, ReadConfig(f.Name()))
	assert.Equal(t, "development", GetString(Mode))
	assert.Equal(t, int64(123456), GetInt64(HydrationLoadMaxBlock))
}

func TestReadConfigFileMissing(t *testing.T) {
	err := ReadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidateRequired(t *testing.T) {
	Reset()
	err := Validate(context.Background(), MUWallet)
	assert.Regexp(t, "AO10102.*mu.wallet", err)

	Set(MUWallet, "/tmp/wallet.json")
	assert.NoError(t, Validate(context.Background(), MUWallet))
}

func TestPluginConfig(t *testing.T) {
	Reset()
	prefix := NewPluginConfig("unittest.conf")
	prefix.AddKnownKey("someKey", "defaultValue")
	assert.Equal(t, "defaultValue", prefix.GetString("someKey"))
	prefix.Set("someKey", "overridden")
	assert.Equal(t, "overridden", prefix.GetString("someKey"))

	sub := prefix.SubPrefix("deeper")
	sub.AddKnownKey("another", 42)
	assert.Equal(t, 42, sub.GetInt("another"))
	assert.Equal(t, "unittest.conf.deeper.another", sub.Resolve("another"))
}

func TestPluginConfigUnknownKeyPanics(t *testing.T) {
	Reset()
	prefix := NewPluginConfig("unittest.panics")
	assert.Panics(t, func() {
		prefix.GetString("neverRegistered")
	})
}

func TestGetKnownKeys(t *testing.T) {
	Reset()
	assert.Contains(t, GetKnownKeys(), "log.level")
}