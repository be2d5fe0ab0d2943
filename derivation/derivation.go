// Copyright (c) 2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository at
// https://github.com/hyperledger-labs/evm-bridge
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

// Package derivation implements the epsilon derivation of child keys from the
// root key of the signer.
//
// A child key is the sum of the root key and a tweak (epsilon), computed from
// the public derivation context of a request. Because the tweak is public, the
// child public key and hence the address of the child account can be computed
// from the root public key alone (see DeriveChildPublic).
package derivation

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hyperledger-labs/evm-bridge"
)

// DomainPrefix separates the epsilon derivation from other uses of the hash.
const DomainPrefix = "sig.network v2.0.0 epsilon derivation"

// Error type is used to define error constants for this package.
type Error string

// Error implements error interface.
func (e Error) Error() string {
	return string(e)
}

// Definition of error constants for this package.
const (
	ErrZeroChildKey  Error = "derived child key is zero, the derivation context cannot be used with this root key"
	ErrInfinityPoint Error = "derived child public key is the point at infinity"
	ErrRootKeyZeroed Error = "root key was zeroed and cannot be used anymore"
	ErrNilRootKey    Error = "root key is nil"
	ErrNotOnCurve    Error = "public key is not on the secp256k1 curve"
)

// Epsilon returns the tweak for the given context. It is the hash of the
// domain prefix, chain context, predecessor id and path, interpreted as a
// big-endian integer.
func Epsilon(ctx bridge.DerivationContext) *big.Int {
	digest := crypto.Keccak256(
		[]byte(DomainPrefix),
		[]byte(ctx.ChainContext),
		[]byte(ctx.PredecessorID),
		[]byte(ctx.Path),
	)
	return new(big.Int).SetBytes(digest)
}

// DeriveChild returns the child key (root + epsilon) mod n, where n is the
// order of the curve. It is a pure function of its inputs.
func DeriveChild(root *ecdsa.PrivateKey, ctx bridge.DerivationContext) (*ecdsa.PrivateKey, error) {
	if root == nil || root.D == nil {
		return nil, ErrNilRootKey
	}
	n := crypto.S256().Params().N
	d := new(big.Int).Add(root.D, Epsilon(ctx))
	d.Mod(d, n)
	if d.Sign() == 0 {
		return nil, ErrZeroChildKey
	}
	child, err := crypto.ToECDSA(math.PaddedBigBytes(d, bridge.WordLen))
	if err != nil {
		return nil, ErrZeroChildKey
	}
	return child, nil
}

// DeriveChildPublic returns the public key of the child, computed as
// rootPub + epsilon·G. It matches the public key of DeriveChild for the
// corresponding root private key.
func DeriveChildPublic(rootPub *ecdsa.PublicKey, ctx bridge.DerivationContext) (*ecdsa.PublicKey, error) {
	curve := crypto.S256()
	if rootPub == nil || rootPub.X == nil || !curve.IsOnCurve(rootPub.X, rootPub.Y) {
		return nil, ErrNotOnCurve
	}
	eps := new(big.Int).Mod(Epsilon(ctx), curve.Params().N)
	if eps.Sign() == 0 {
		return &ecdsa.PublicKey{Curve: curve, X: new(big.Int).Set(rootPub.X), Y: new(big.Int).Set(rootPub.Y)}, nil
	}
	ex, ey := curve.ScalarBaseMult(math.PaddedBigBytes(eps, bridge.WordLen))
	// rootPub == -epsilon·G results in the point at infinity.
	if ex.Cmp(rootPub.X) == 0 && ey.Cmp(rootPub.Y) != 0 {
		return nil, ErrInfinityPoint
	}
	x, y := curve.Add(rootPub.X, rootPub.Y, ex, ey)
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// ChildToAddress returns the address of the account controlled by the given
// public key: the last 20 bytes of Hash(x || y).
func ChildToAddress(pub *ecdsa.PublicKey) common.Address {
	return crypto.PubkeyToAddress(*pub)
}

// ChildAddress derives the address of the child account for the given
// context from the root public key.
func ChildAddress(rootPub *ecdsa.PublicKey, ctx bridge.DerivationContext) (common.Address, error) {
	pub, err := DeriveChildPublic(rootPub, ctx)
	if err != nil {
		return common.Address{}, err
	}
	return ChildToAddress(pub), nil
}
