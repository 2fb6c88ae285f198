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

// Package deephash implements the Arweave deep-hash algorithm and the ANS-104
// data item codec, which together give every message a canonical content id.
package deephash

import (
	"crypto/sha512"
	"strconv"
)

// Chunk is one element of a deep-hash tree: either a blob, or a nested list
type Chunk struct {
	Blob []byte
	List []Chunk
}

// Blob wraps a byte slice as a deep-hash chunk
func Blob(b []byte) Chunk {
	if b == nil {
		b = []byte{}
	}
	return Chunk{Blob: b}
}

// BlobString wraps a string as a deep-hash chunk
func BlobString(s string) Chunk {
	return Chunk{Blob: []byte(s)}
}

// List wraps nested chunks as a deep-hash chunk
func List(chunks ...Chunk) Chunk {
	if chunks == nil {
		chunks = []Chunk{}
	}
	return Chunk{List: chunks}
}

// DeepHash computes the 48 byte SHA-384 deep hash of a chunk tree.
// Blobs hash as H(H("blob"+len) || H(data)); lists fold each element's deep
// hash into an accumulator seeded with H("list"+len).
func DeepHash(c Chunk) [sha512.Size384]byte {
	if c.List == nil {
		tag := []byte("blob" + strconv.Itoa(len(c.Blob)))
		tagHash := sha512.Sum384(tag)
		dataHash := sha512.Sum384(c.Blob)
		return sha512.Sum384(append(tagHash[:], dataHash[:]...))
	}
	tag := []byte("list" + strconv.Itoa(len(c.List)))
	acc := sha512.Sum384(tag)
	for _, child := range c.List {
		childHash := DeepHash(child)
		acc = sha512.Sum384(append(acc[:], childHash[:]...))
	}
	return acc
}
