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

package utils

import (
	`crypto/rand`
	`encoding/hex`
	`testing`

	`github.com/stretchr/testify/assert`
	`github.com/stretchr/testify/require`
)

func TestSha256Digest(t *testing.T) {
	digest := Sha256Digest([]byte("hello"))
	assert.Len(t, digest, 32)
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		hex.EncodeToString(digest))
}

func TestRipemd160Digest(t *testing.T) {
	digest := Ripemd160Digest([]byte("hello"))
	assert.Len(t, digest, 20)
	assert.Equal(t, "108f07b8382412612c048d07d13f814118445acd", hex.EncodeToString(digest))
}

func TestNewKeyPair(t *testing.T) {
	pkcs8, pubKey, err := NewKeyPair()
	require.NoError(t, err)
	assert.NotEmpty(t, pkcs8)
	// an uncompressed P-256 point: 0x04 followed by two 32-byte coordinates
	require.Len(t, pubKey, 65)
	assert.Equal(t, byte(0x04), pubKey[0])
}

func TestEcdsaSignAndVerify(t *testing.T) {
	pkcs8, pubKey, err := NewKeyPair()
	require.NoError(t, err)

	data := []byte("some signing payload")
	signature := EcdsaSignDigest(pkcs8, data)
	require.Len(t, signature, 64)

	assert.True(t, EcdsaVerify(pubKey, signature, data))
	assert.False(t, EcdsaVerify(pubKey, signature, []byte("another payload")))

	tampered := append([]byte{}, signature...)
	tampered[10] ^= 0xff
	assert.False(t, EcdsaVerify(pubKey, tampered, data))
}

func TestEcdsaVerifyRejectsGarbage(t *testing.T) {
	_, pubKey, err := NewKeyPair()
	require.NoError(t, err)

	assert.False(t, EcdsaVerify(pubKey, []byte("short"), []byte("data")))
	assert.False(t, EcdsaVerify([]byte("not a point"), make([]byte, 64), []byte("data")))
}

func TestEcdsaVerifyOtherKey(t *testing.T) {
	pkcs8, _, err := NewKeyPair()
	require.NoError(t, err)
	_, otherPubKey, err := NewKeyPair()
	require.NoError(t, err)

	data := []byte("payload")
	signature := EcdsaSignDigest(pkcs8, data)
	assert.False(t, EcdsaVerify(otherPubKey, signature, data))
}

func TestBase58RoundTrip(t *testing.T) {
	for trial := 0; trial < 32; trial++ {
		payload := make([]byte, 1+trial)
		_, err := rand.Read(payload)
		require.NoError(t, err)

		encoded := Base58Encode(payload)
		assert.Equal(t, payload, Base58Decode(encoded))
	}
}

func TestBase58DecodeMalformed(t *testing.T) {
	// 0, O, I and l are outside the base58 alphabet
	assert.Empty(t, Base58Decode("0OIl"))
	assert.Empty(t, Base58Decode("not base58 at all!"))
}

func TestInt2Hex(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, Int2Hex(1))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Int2Hex(-1))
}

func TestInt2LeHex(t *testing.T) {
	assert.Equal(t, []byte{8, 0, 0, 0}, Int2LeHex(8))
	assert.Equal(t, []byte{0x01, 0x02, 0, 0}, Int2LeHex(0x0201))
}
