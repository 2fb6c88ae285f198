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

import (
	"context"
	"strconv"
	"strings"

	"github.com/permagate-io/aonode/internal/i18n"
)

const (
	// SortKeyHeightDigits is the fixed width of the block-height field of a
	// canonical sort key. Left-padding to this width makes lexicographic
	// order over the whole key equal numeric order over the height.
	SortKeyHeightDigits = 12

	// CollationSequenceMinChar is the cold start sentinel ordinate. It collates
	// before every padded ordinate, so any real position compares greater.
	CollationSequenceMinChar = "0"
)

// SortKey is the composite ordering key "blockHeight,timestamp,hash" that
// establishes message order within a process. Partial forms (height only, or
// height+hash) are accepted on input; Canonical pads the height field.
type SortKey string

// Canonical left-pads the block-height field to the fixed width. Keys whose
// height field is not numeric are returned unchanged.
func (sk SortKey) Canonical() SortKey {
	if sk == "" {
		return sk
	}
	parts := strings.SplitN(string(sk), ",", 2)
	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return sk
	}
	padded := padHeight(height)
	if len(parts) == 1 {
		return SortKey(padded)
	}
	return SortKey(padded + "," + parts[1])
}

// IncrementBound prepares a `to` bound for the sequencer. Exclusive bounds mean
// a height-only key would omit interactions in its terminal block, so the
// height is incremented. Keys that carry a timestamp or hash are only padded.
func (sk SortKey) IncrementBound() SortKey {
	if sk == "" {
		return sk
	}
	parts := strings.SplitN(string(sk), ",", 2)
	if len(parts) > 1 {
		return sk.Canonical()
	}
	height, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return sk
	}
	return SortKey(padHeight(height + 1))
}

// Height returns the numeric block height field, or -1 when unparseable
func (sk SortKey) Height() int64 {
	parts := strings.SplitN(string(sk), ",", 2)
	height, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return -1
	}
	return height
}

func padHeight(height uint64) string {
	s := strconv.FormatUint(height, 10)
	if len(s) >= SortKeyHeightDigits {
		return s
	}
	return strings.Repeat("0", SortKeyHeightDigits-len(s)) + s
}

// ParseSortKey validates a sort key received on a boundary, and canonicalizes it
func ParseSortKey(ctx context.Context, s string) (SortKey, error) {
	parts := strings.SplitN(s, ",", 2)
	if _, err := strconv.ParseUint(parts[0], 10, 64); err != nil {
		return "", i18n.NewError(ctx, i18n.MsgSortKeyInvalid, s)
	}
	return SortKey(s).Canonical(), nil
}

// CompareSortKeys orders two keys by their canonical form: negative when a < b,
// zero when equal, positive when a > b
func CompareSortKeys(a, b SortKey) int {
	return strings.Compare(string(a.Canonical()), string(b.Canonical()))
}

// Ordinate is the lexicographically sortable monotonic position derived from a
// sort key's nonce, used as tiebreak when timestamps collide
type Ordinate string

// OrdinateFromNonce formats a nonce so lexicographic order equals numeric order
func OrdinateFromNonce(nonce uint64) Ordinate {
	return Ordinate(padHeight(nonce))
}

// IsColdStart reports whether the ordinate is the cold start sentinel
func (o Ordinate) IsColdStart() bool {
	return o == "" || string(o) == CollationSequenceMinChar
}
