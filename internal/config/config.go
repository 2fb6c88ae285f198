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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/permagate-io/aonode/internal/i18n"
	"github.com/spf13/viper"
)

// The following keys can be accessed from the root configuration.
// Components are responsible for defining their own keys using the Prefix interface
var (
	Lang                  RootKey = ark("lang")
	LogLevel              RootKey = ark("log.level")
	LogColor              RootKey = ark("log.color")
	DebugPort             RootKey = ark("debug.port")
	Mode                  RootKey = ark("mode")
	HTTPPort              RootKey = ark("http.port")
	CacheMaxSize          RootKey = ark("cache.maxSize")
	CacheTTL              RootKey = ark("cache.ttl")
	HydrationLoadMaxBlock RootKey = ark("hydration.loadMaxBlock")
	CheckpointQueryLimit  RootKey = ark("checkpoint.queryLimit")
	CheckpointPublishGap  RootKey = ark("checkpoint.publishGap")
	DatabaseType          RootKey = ark("database.type")
	MUWallet              RootKey = ark("mu.wallet")
	MUMonitorInterval     RootKey = ark("mu.monitorInterval")
	MUCrankDepth          RootKey = ark("mu.crankDepth")
	MURetryInitialDelay   RootKey = ark("mu.retry.initialDelay")
	MURetryMaxDelay       RootKey = ark("mu.retry.maxDelay")
	MURetryFactor         RootKey = ark("mu.retry.factor")
)

// Prefix represents the global configuration, at a nested point in
// the config hierarchy. This allows components to define their own keys
// under a common section of the configuration tree.
//
// Note that all values are GLOBAL so this cannot be used for per-instance
// customization. Rather for global initialization of components.
type Prefix interface {
	AddKnownKey(key string, defValue ...interface{})
	SubPrefix(suffix string) Prefix
	Set(key string, value interface{})

	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetInt64(key string) int64
	GetUint(key string) uint
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
	GetStringMap(key string) map[string]interface{}
	Resolve(key string) string
	Get(key string) interface{}
}

// RootKey are the known configuration keys
type RootKey string

func Reset() {
	viper.Reset()

	// Set defaults
	viper.SetDefault(string(Lang), "en")
	viper.SetDefault(string(LogLevel), "info")
	viper.SetDefault(string(LogColor), true)
	viper.SetDefault(string(DebugPort), -1)
	viper.SetDefault(string(Mode), "production")
	viper.SetDefault(string(HTTPPort), 6363)
	viper.SetDefault(string(CacheMaxSize), "500mb")
	viper.SetDefault(string(CacheTTL), "10m")
	viper.SetDefault(string(HydrationLoadMaxBlock), 0)
	viper.SetDefault(string(CheckpointQueryLimit), 50)
	viper.SetDefault(string(CheckpointPublishGap), 0)
	viper.SetDefault(string(MUMonitorInterval), "1s")
	viper.SetDefault(string(MUCrankDepth), 10)
	viper.SetDefault(string(MURetryInitialDelay), "250ms")
	viper.SetDefault(string(MURetryMaxDelay), "30s")
	viper.SetDefault(string(MURetryFactor), 2.0)

	i18n.SetLang(GetString(Lang))
}

// ReadConfig initializes the config, reading in the YAML file (if set) and
// binding AONODE_* environment variables
func ReadConfig(cfgFile string) error {
	Reset()

	viper.SetEnvPrefix("aonode")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetConfigType("yaml")
	if cfgFile != "" {
		f, err := os.Open(cfgFile)
		if err == nil {
			defer f.Close()
			err = viper.ReadConfig(f)
		}
		return err
	}
	viper.SetConfigName("aonode.core")
	viper.AddConfigPath("/etc/aonode")
	viper.AddConfigPath("$HOME/.aonode")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// Validate fails fast when one of the listed keys has no value set
func Validate(ctx context.Context, required ...RootKey) error {
	for _, k := range required {
		if viper.Get(string(k)) == nil || viper.GetString(string(k)) == "" {
			return i18n.NewError(ctx, i18n.MsgConfigRequired, k)
		}
	}
	return nil
}

func ark(k string) RootKey {
	knownKeys[k] = true
	return RootKey(k)
}

var knownKeys = map[string]bool{}

// GetKnownKeys gets the known keys
func GetKnownKeys() []string {
	keys := make([]string, 0, len(knownKeys))
	for k := range knownKeys {
		keys = append(keys, k)
	}
	return keys
}

// configPrefix is the main config structure passed to components, and used for root to wrap viper
type configPrefix struct {
	prefix string
}

// NewPluginConfig creates a new plugin configuration object, at the specified prefix
func NewPluginConfig(prefix string) Prefix {
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	return &configPrefix{
		prefix: prefix,
	}
}

func (c *configPrefix) prefixKey(k string) string {
	key := c.prefix + k
	if !knownKeys[key] {
		panic("invalid configuration key " + key)
	}
	return key
}

func (c *configPrefix) SubPrefix(suffix string) Prefix {
	return &configPrefix{
		prefix: c.prefix + suffix + ".",
	}
}

func (c *configPrefix) AddKnownKey(k string, defValue ...interface{}) {
	key := c.prefix + k
	if len(defValue) == 1 {
		viper.SetDefault(key, defValue[0])
	} else if len(defValue) > 0 {
		viper.SetDefault(key, defValue)
	}
	knownKeys[key] = true
}

// GetString gets a configuration string
func GetString(key RootKey) string {
	return viper.GetString(string(key))
}
func (c *configPrefix) GetString(key string) string {
	return viper.GetString(c.prefixKey(key))
}

// GetStringSlice gets a configuration string array
func GetStringSlice(key RootKey) []string {
	return viper.GetStringSlice(string(key))
}
func (c *configPrefix) GetStringSlice(key string) []string {
	return viper.GetStringSlice(c.prefixKey(key))
}

// GetBool gets a configuration bool
func GetBool(key RootKey) bool {
	return viper.GetBool(string(key))
}
func (c *configPrefix) GetBool(key string) bool {
	return viper.GetBool(c.prefixKey(key))
}

// GetUint gets a configuration uint
func GetUint(key RootKey) uint {
	return viper.GetUint(string(key))
}
func (c *configPrefix) GetUint(key string) uint {
	return viper.GetUint(c.prefixKey(key))
}

// GetInt gets a configuration int
func GetInt(key RootKey) int {
	return viper.GetInt(string(key))
}
func (c *configPrefix) GetInt(key string) int {
	return viper.GetInt(c.prefixKey(key))
}

// GetInt64 gets a configuration int64
func GetInt64(key RootKey) int64 {
	return viper.GetInt64(string(key))
}
func (c *configPrefix) GetInt64(key string) int64 {
	return viper.GetInt64(c.prefixKey(key))
}

// GetDuration gets a configuration duration, accepting either a Go duration
// string, or a plain number of milliseconds
func GetDuration(key RootKey) time.Duration {
	return parseDuration(viper.GetString(string(key)))
}
func (c *configPrefix) GetDuration(key string) time.Duration {
	return parseDuration(viper.GetString(c.prefixKey(key)))
}

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		intVal, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return time.Duration(intVal) * time.Millisecond
	}
	return d
}

// GetFloat64 gets a configuration float
func GetFloat64(key RootKey) float64 {
	return viper.GetFloat64(string(key))
}

// GetByteSize gets a configuration byte-size, accepting units such as "500mb"
func GetByteSize(key RootKey) int64 {
	b, _ := units.RAMInBytes(viper.GetString(string(key)))
	return b
}

// GetStringMap gets a configuration map
func GetStringMap(key RootKey) map[string]interface{} {
	return viper.GetStringMap(string(key))
}
func (c *configPrefix) GetStringMap(key string) map[string]interface{} {
	return viper.GetStringMap(c.prefixKey(key))
}

// Get gets a configuration in raw form
func Get(key RootKey) interface{} {
	return viper.Get(string(key))
}
func (c *configPrefix) Get(key string) interface{} {
	return viper.Get(c.prefixKey(key))
}

// Set allows runtime setting of config (used in unit tests)
func Set(key RootKey, value interface{}) {
	viper.Set(string(key), value)
}
func (c *configPrefix) Set(key string, value interface{}) {
	viper.Set(c.prefixKey(key), value)
}

// Resolve gives the fully qualified path of a key
func (c *configPrefix) Resolve(key string) string {
	return c.prefixKey(key)
}
