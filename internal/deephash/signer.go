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
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io/ioutil"
	"math/big"

	"github.com/permagate-io/aonode/internal/i18n"
)

// jwk is the subset of an RSA JWK wallet keyfile the signer needs
type jwk struct {
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
	D   string `json:"d"`
	P   string `json:"p"`
	Q   string `json:"q"`
}

// Signer holds the unit's wallet key, and signs data items with it
type Signer struct {
	key     *rsa.PrivateKey
	owner   []byte
	address string
}

// LoadWallet reads an RSA JWK keyfile, such as the MU wallet
func LoadWallet(ctx context.Context, path string) (*Signer, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgWalletLoadFailed, path)
	}
	return NewSigner(ctx, b)
}

// NewSigner parses RSA JWK keyfile bytes
func NewSigner(ctx context.Context, keyfile []byte) (*Signer, error) {
	var k jwk
	if err := json.Unmarshal(keyfile, &k); err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgWalletParseFailed)
	}
	if k.Kty != "RSA" || k.N == "" || k.D == "" {
		return nil, i18n.NewError(ctx, i18n.MsgWalletParseFailed)
	}
	n, err1 := b64Int(k.N)
	e, err2 := b64Int(k.E)
	d, err3 := b64Int(k.D)
	p, err4 := b64Int(k.P)
	q, err5 := b64Int(k.Q)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return nil, i18n.WrapError(ctx, err, i18n.MsgWalletParseFailed)
		}
	}
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
		D:         d,
		Primes:    []*big.Int{p, q},
	}
	key.Precompute()
	if err := key.Validate(); err != nil {
		return nil, i18n.WrapError(ctx, err, i18n.MsgWalletParseFailed)
	}

	owner := make([]byte, OwnerLength)
	n.FillBytes(owner)
	sum := sha256.Sum256(owner)
	return &Signer{
		key:     key,
		owner:   owner,
		address: base64.RawURLEncoding.EncodeToString(sum[:]),
	}, nil
}

// Address is the wallet address: base64url of the SHA-256 of the owner modulus
func (s *Signer) Address() string {
	return s.address
}

// Sign sets the owner and signature on a data item
func (s *Signer) Sign(ctx context.Context, d *DataItem) error {
	d.SignatureType = SignatureTypeArweave
	d.Owner = s.owner
	preimage := d.SignatureData()
	digest := sha256.Sum256(preimage[:])
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: 32,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return i18n.WrapError(ctx, err, i18n.MsgSignFailed)
	}
	d.Signature = sig
	return nil
}

func b64Int(s string) (*big.Int, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}
