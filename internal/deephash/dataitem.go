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

package deephash

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strconv"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/permagate-io/aonode/internal/i18n"
)

const (
	// SignatureTypeArweave is ANS-104 signature scheme 1: RSA-PSS with a
	// 4096 bit key. Owner and signature are both 512 bytes.
	SignatureTypeArweave = 1

	OwnerLength     = 512
	SignatureLength = 512
	TargetLength    = 32
	MaxAnchorLength = 32
)

// DataItem is an ANS-104 bundle item. Target and Anchor are raw bytes
// (the wire carries base64url forms of both).
type DataItem struct {
	SignatureType int
	Signature     []byte
	Owner         []byte
	Target        []byte
	Anchor        []byte
	Tags          aotypes.Tags
	Data          []byte
}

// zeroOwner is the zero-owner signer convention used when deep-hashing a
// message for dedup, so the digest is independent of who forwards it
var zeroOwner = make([]byte, OwnerLength)

// NewDataItem builds an unsigned data item, decoding and length-checking the
// target and anchor. Violations are ill-formed-message errors.
func NewDataItem(ctx context.Context, data []byte, tags aotypes.Tags, target, anchor string) (*DataItem, error) {
	d := &DataItem{
		SignatureType: SignatureTypeArweave,
		Tags:          tags,
		Data:          data,
	}
	if target != "" {
		t, err := base64.RawURLEncoding.DecodeString(target)
		if err != nil || len(t) != TargetLength {
			return nil, i18n.NewError(ctx, i18n.MsgTargetLength, target)
		}
		d.Target = t
	}
	if anchor != "" {
		a := []byte(anchor)
		if len(a) > MaxAnchorLength {
			return nil, i18n.NewError(ctx, i18n.MsgAnchorLength, len(a))
		}
		d.Anchor = a
	}
	return d, nil
}

// SignatureData is the deep-hash preimage the owner signs
func (d *DataItem) SignatureData() [48]byte {
	return DeepHash(List(
		BlobString("dataitem"),
		BlobString("1"),
		BlobString(strconv.Itoa(d.SignatureType)),
		Blob(d.Owner),
		Blob(d.Target),
		Blob(d.Anchor),
		Blob(encodeAvroTags(d.Tags)),
		Blob(d.Data),
	))
}

// ID is the data item id: base64url of the SHA-256 of the signature
func (d *DataItem) ID() string {
	sum := sha256.Sum256(d.Signature)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Encode emits the binary wire form of the item, for octet-stream upload
func (d *DataItem) Encode() []byte {
	tags := encodeAvroTags(d.Tags)
	size := 2 + SignatureLength + OwnerLength + 1 + 1 + 16 + len(tags) + len(d.Data)
	if len(d.Target) > 0 {
		size += TargetLength
	}
	if len(d.Anchor) > 0 {
		size += MaxAnchorLength
	}
	buf := make([]byte, 0, size)

	var u16 [2]byte
	binary.LittleEndian.PutUint16(u16[:], uint16(d.SignatureType))
	buf = append(buf, u16[:]...)

	sig := d.Signature
	if len(sig) == 0 {
		sig = make([]byte, SignatureLength)
	}
	buf = append(buf, sig...)

	owner := d.Owner
	if len(owner) == 0 {
		owner = zeroOwner
	}
	buf = append(buf, owner...)

	if len(d.Target) > 0 {
		buf = append(buf, 1)
		buf = append(buf, d.Target...)
	} else {
		buf = append(buf, 0)
	}
	if len(d.Anchor) > 0 {
		buf = append(buf, 1)
		anchor := make([]byte, MaxAnchorLength)
		copy(anchor, d.Anchor)
		buf = append(buf, anchor...)
	} else {
		buf = append(buf, 0)
	}

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], uint64(len(d.Tags)))
	buf = append(buf, u64[:]...)
	binary.LittleEndian.PutUint64(u64[:], uint64(len(tags)))
	buf = append(buf, u64[:]...)
	buf = append(buf, tags...)

	buf = append(buf, d.Data...)
	return buf
}

// HashMessage computes the canonical digest of a message data item, using the
// zero-owner convention so forwarded copies of the same message collide. The
// base64url digest is the dedup key.
func HashMessage(ctx context.Context, data []byte, tags aotypes.Tags, target, anchor string) (string, error) {
	d, err := NewDataItem(ctx, data, tags, target, anchor)
	if err != nil {
		return "", err
	}
	d.Owner = zeroOwner
	sum := d.SignatureData()
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// encodeAvroTags serializes tags in the Avro form ANS-104 requires: a zigzag
// count, length-prefixed name/value byte strings, and a zero terminator
func encodeAvroTags(tags aotypes.Tags) []byte {
	if len(tags) == 0 {
		return []byte{}
	}
	var buf []byte
	buf = appendZigZag(buf, int64(len(tags)))
	for _, t := range tags {
		buf = appendZigZag(buf, int64(len(t.Name)))
		buf = append(buf, t.Name...)
		buf = appendZigZag(buf, int64(len(t.Value)))
		buf = append(buf, t.Value...)
	}
	buf = append(buf, 0)
	return buf
}

func appendZigZag(buf []byte, n int64) []byte {
	u := uint64((n << 1) ^ (n >> 63))
	for u >= 0x80 {
		buf = append(buf, byte(u)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}
