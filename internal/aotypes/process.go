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

package aotypes

// Process is a persistent compute entity. Immutable once recorded.
type Process struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`
	Anchor    string `json:"anchor,omitempty"`
	Tags      Tags   `json:"tags"`
	Block     Block  `json:"block"`
}

// Module returns the WASM module id the process runs, from its tags
func (p *Process) Module() string {
	return p.Tags.GetValue("Module")
}
