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

package evaluator

import (
	"context"

	"github.com/permagate-io/aonode/internal/i18n"
)

// The WASM runtime is supplied by the embedding application, which registers
// its adapter before the compute unit starts
var registeredEngine Engine

// RegisterEngine installs the WASM runtime adapter
func RegisterEngine(e Engine) {
	registeredEngine = e
}

// GetEngine returns the registered WASM runtime adapter, failing fast when
// the unit was started without one
func GetEngine(ctx context.Context) (Engine, error) {
	if registeredEngine == nil {
		return nil, i18n.NewError(ctx, i18n.MsgNoEngine)
	}
	return registeredEngine, nil
}
