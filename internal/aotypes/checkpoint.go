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

// Checkpoint data item tag set. The tag names and values are part of the wire
// protocol and must match exactly.
const (
	CheckpointTagDataProtocol    = "Data-Protocol"
	CheckpointTagVariant         = "Variant"
	CheckpointTagType            = "Type"
	CheckpointTagModule          = "Module"
	CheckpointTagProcess         = "Process"
	CheckpointTagEpoch           = "Epoch"
	CheckpointTagNonce           = "Nonce"
	CheckpointTagTimestamp       = "Timestamp"
	CheckpointTagBlockHeight     = "Block-Height"
	CheckpointTagContentType     = "Content-Type"
	CheckpointTagContentEncoding = "Content-Encoding"
	CheckpointTagSHA256          = "SHA-256"
	CheckpointTagCronInterval    = "Cron-Interval"

	CheckpointDataProtocol = "ao"
	CheckpointVariant      = "ao.TN.1"
	CheckpointType         = "Checkpoint"
	CheckpointContentType  = "application/octet-stream"
	EncodingGzip           = "gzip"
)

// Checkpoint is the on-chain publication of a process memory snapshot at a
// specific evaluation
type Checkpoint struct {
	TxID        string  `json:"txId,omitempty"`
	ProcessID   string  `json:"processId"`
	Module      string  `json:"module"`
	Epoch       int64   `json:"epoch"`
	Nonce       int64   `json:"nonce"`
	Timestamp   int64   `json:"timestamp"`
	BlockHeight int64   `json:"blockHeight"`
	Cron        string  `json:"cron,omitempty"`
	Encoding    string  `json:"encoding,omitempty"`
	SHA256      string  `json:"sha256"`
	Memory      []byte  `json:"-"`
}

// Ordinate derives the checkpoint's collation position from its nonce
func (cp *Checkpoint) Ordinate() Ordinate {
	return OrdinateFromNonce(uint64(cp.Nonce))
}

// AsEvaluation projects the checkpoint onto the evaluation ordering algebra,
// so it can be compared with cached and requested positions
func (cp *Checkpoint) AsEvaluation() *Evaluation {
	return &Evaluation{
		ProcessID:   cp.ProcessID,
		Nonce:       cp.Nonce,
		Epoch:       cp.Epoch,
		Timestamp:   cp.Timestamp,
		BlockHeight: cp.BlockHeight,
		Cron:        cp.Cron,
	}
}
