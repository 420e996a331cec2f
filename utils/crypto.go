// Copyright 2021 The tinyChain Authors
// This file is part of the tinyChain.
//
// The tinyChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tinyChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tinyChain. If not, see <http://www.gnu.org/licenses/>.

/* This file wraps the low-level crypto primitives consumed by the rest of tinyChain:
sha256, ripemd160, and ECDSA P-256 key generation / signing / verification.
Private keys travel as PKCS#8 bytes so they can be stored in the wallet file and
re-parsed for later signing. */
package utils

import (
	`crypto/ecdsa`
	`crypto/elliptic`
	`crypto/rand`
	`crypto/sha256`
	`crypto/x509`
	`log`
	`math/big`

	`github.com/pkg/errors`
	`golang.org/x/crypto/ripemd160`
)

// Sha256Digest returns the sha256 digest of data.
func Sha256Digest(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// Ripemd160Digest returns the ripemd160 digest of data.
func Ripemd160Digest(data []byte) []byte {
	hasher := ripemd160.New()
	_, err := hasher.Write(data)
	if err != nil {
		log.Panic(err)
	}
	return hasher.Sum(nil)
}

// NewKeyPair generates an ECDSA P-256 key pair. The private key is returned in its
// portable PKCS#8 encoding, the public key as the uncompressed curve point bytes.
func NewKeyPair() ([]byte, []byte, error) {
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, errors.Wrap(err, "generate p256 key")
	}
	pkcs8, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode pkcs8")
	}
	pubKey := elliptic.Marshal(elliptic.P256(), private.PublicKey.X, private.PublicKey.Y)
	return pkcs8, pubKey, nil
}

// EcdsaSignDigest signs sha256(data) with the PKCS#8-encoded private key and returns
// the fixed-width signature r || s (32 bytes each half).
func EcdsaSignDigest(pkcs8, data []byte) []byte {
	key, err := x509.ParsePKCS8PrivateKey(pkcs8)
	if err != nil {
		log.Panic(err)
	}
	private, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		log.Panic("not an ECDSA private key")
	}

	digest := sha256.Sum256(data)
	r, s, err := ecdsa.Sign(rand.Reader, private, digest[:])
	if err != nil {
		log.Panic(err)
	}

	signature := make([]byte, 64)
	r.FillBytes(signature[:32])
	s.FillBytes(signature[32:])
	return signature
}

// EcdsaVerify checks the r || s signature over sha256(data) against the uncompressed
// public key bytes produced by NewKeyPair.
func EcdsaVerify(pubKey, signature, data []byte) bool {
	x, y := elliptic.Unmarshal(elliptic.P256(), pubKey)
	if x == nil {
		return false
	}
	if len(signature) != 64 {
		return false
	}

	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	digest := sha256.Sum256(data)

	public := ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}
	return ecdsa.Verify(&public, digest[:], r, s)
}
