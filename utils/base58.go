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

/* This file gives the base58 encoding and decoding used to render wallet addresses. */
package utils

import `github.com/mr-tron/base58`

// Base58Encode returns the base58 encoding of input.
func Base58Encode(input []byte) string {
	return base58.Encode(input)
}

// Base58Decode decodes a base58 string. Malformed input decodes to an empty slice;
// callers must treat empty as invalid.
func Base58Decode(input string) []byte {
	decoded, err := base58.Decode(input)
	if err != nil {
		return []byte{}
	}
	return decoded
}
