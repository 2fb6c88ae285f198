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

	"github.com/permagate-io/aonode/internal/aotypes"
)

// Engine is the WASM runtime adapter. The runtime itself is an external
// collaborator; the evaluator only depends on this fold contract.
//
// Invoke folds one message into the process: it receives the current memory
// image (nil on cold start) and returns the updated memory alongside any
// outbound messages and spawns. A deterministic in-process failure is
// reported via the output's Error, NOT as an invocation error; an invocation
// error means the engine itself failed and the batch must halt.
type Engine interface {
	Invoke(ctx context.Context, memory []byte, msg *aotypes.Message) (*aotypes.EvalOutput, error)
}
