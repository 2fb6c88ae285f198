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
	"crypto/sha512"
	"encoding/base64"
	"testing"

	"github.com/permagate-io/aonode/internal/aotypes"
	"github.com/stretchr/testify/assert"
)

func TestDeepHashBlobVsList(t *testing.T) {
	// A blob and a single-element list containing it must not collide
	blob := DeepHash(Blob([]byte("hello")))
	list := DeepHash(List(Blob([]byte("hello"))))
	assert.NotEqual(t, blob, list)
}

func TestDeepHashEmptyBlob(t *testing.T) {
	// "blob0" tagged hash of no data - stable, non-zero
	h := DeepHash(Blob(nil))
	assert.NotEqual(t, [sha512.Size384]byte{}, h)
	assert.Equal(t, h, DeepHash(Blob([]byte{})))
}

func TestDeepHashListOrderSensitive(t *testing.T) {
	a := DeepHash(List(BlobString("a"), BlobString("b")))
	b := DeepHash(List(BlobString("b"), BlobString("a")))
	assert.NotEqual(t, a, b)
}

func validTarget() string {
	return base64.RawURLEncoding.EncodeToString(make([]byte, 32))
}

func TestHashMessageDeterministic(t *testing.T) {
	ctx := context.Background()
	tags := aotypes.Tags{{Name: "Action", Value: "Transfer"}}
	h1, err := HashMessage(ctx, []byte("data"), tags, validTarget(), "anchor1")
	assert.NoError(t, err)
	h2, err := HashMessage(ctx, []byte("data"), tags, validTarget(), "anchor1")
	assert.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // 48 bytes base64url, unpadded

	h3, err := HashMessage(ctx, []byte("data2"), tags, validTarget(), "anchor1")
	assert.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	h4, err := HashMessage(ctx, []byte("data"), aotypes.Tags{{Name: "Action", Value: "Mint"}}, validTarget(), "anchor1")
	assert.NoError(t, err)
	assert.NotEqual(t, h1, h4)
}

func TestHashMessageBadTarget(t *testing.T) {
	_, err := HashMessage(context.Background(), nil, nil, "tooshort", "")
	assert.Regexp(t, "AO10206", err)
}

func TestHashMessageBadAnchor(t *testing.T) {
	long := make([]byte, 33)
	_, err := HashMessage(context.Background(), nil, nil, "", string(long))
	assert.Regexp(t, "AO10205", err)
}

func TestDataItemEncodeLayout(t *testing.T) {
	ctx := context.Background()
	d, err := NewDataItem(ctx, []byte("payload"), aotypes.Tags{{Name: "k", Value: "v"}}, validTarget(), "a")
	assert.NoError(t, err)
	b := d.Encode()

	// sigtype LE
	assert.Equal(t, byte(1), b[0])
	assert.Equal(t, byte(0), b[1])
	// unsigned items carry zero signature and owner
	assert.Equal(t, make([]byte, SignatureLength), b[2:2+SignatureLength])
	// target present flag
	assert.Equal(t, byte(1), b[2+SignatureLength+OwnerLength])
	// payload at the tail
	assert.Equal(t, []byte("payload"), b[len(b)-7:])
}

func TestDataItemEncodeNoTargetNoAnchor(t *testing.T) {
	d, err := NewDataItem(context.Background(), nil, nil, "", "")
	assert.NoError(t, err)
	b := d.Encode()
	// presence flags both zero, zero tags, zero tag bytes
	rest := b[2+SignatureLength+OwnerLength:]
	assert.Equal(t, []byte{0, 0}, rest[0:2])
	assert.Len(t, rest, 2+16)
}

func TestAvroTagsEncoding(t *testing.T) {
	b := encodeAvroTags(aotypes.Tags{{Name: "ab", Value: "c"}})
	// count 1 zigzags to 2; lengths 2 and 1 zigzag to 4 and 2; zero terminator
	assert.Equal(t, []byte{0x02, 0x04, 'a', 'b', 0x02, 'c', 0x00}, b)
	assert.Equal(t, []byte{}, encodeAvroTags(nil))
}
