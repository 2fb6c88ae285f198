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

// EvalOutput is what the WASM process returns for one folded message.
// Memory is held out of the JSON persisted form, and travels separately.
type EvalOutput struct {
	Memory   []byte          `json:"-"`
	Messages JSONObjectArray `json:"Messages"`
	Spawns   JSONObjectArray `json:"Spawns"`
	Output   JSONObject      `json:"Output,omitempty"`
	Error    JSONObject      `json:"Error,omitempty"`
}

// Evaluation is the persisted record of folding one message into a process.
// Primary key (processId, sortKey); secondary index (processId, deepHash).
type Evaluation struct {
	ProcessID   string      `json:"processId"`
	SortKey     SortKey     `json:"sortKey"`
	MessageID   string      `json:"messageId,omitempty"`
	DeepHash    string      `json:"deepHash,omitempty"`
	Nonce       int64       `json:"nonce"`
	Epoch       int64       `json:"epoch"`
	Timestamp   int64       `json:"timestamp"`
	BlockHeight int64       `json:"blockHeight"`
	Cron        string      `json:"cron,omitempty"`
	IsCron      bool        `json:"isCron,omitempty"`
	EvaluatedAt *DateTime   `json:"evaluatedAt"`
	Output      *EvalOutput `json:"output"`
}

// Ordinate derives the evaluation's collation position from its nonce
func (e *Evaluation) Ordinate() Ordinate {
	if e == nil {
		return Ordinate(CollationSequenceMinChar)
	}
	return OrdinateFromNonce(uint64(e.Nonce))
}

// IsLaterThan reports whether position b is later than position a, ordering by
// timestamp, then ordinate, then cron-interval tag ("" collates before any
// interval, so two cron schedules firing together order deterministically).
func IsLaterThan(a, b *Evaluation) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	if a.Timestamp != b.Timestamp {
		return b.Timestamp > a.Timestamp
	}
	if a.Ordinate() != b.Ordinate() {
		return b.Ordinate() > a.Ordinate()
	}
	return b.Cron > a.Cron
}
