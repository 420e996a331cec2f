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

package network

import (
	`encoding/json`
	`fmt`
	`net`
	`time`

	`github.com/pkg/errors`

	`tinyChain/core`
)

const protocol = "tcp"
const nodeVersion = 1

// CentralNode is the hardcoded seed every node bootstraps from.
const CentralNode = "127.0.0.1:2001"

const tcpWriteTimeout = 1000 * time.Millisecond

// OpType names the kind of object an Inv or GetData message refers to.
type OpType string

const (
	OpTypeBlock OpType = "Block"
	OpTypeTx    OpType = "Tx"
)

// VersionPayload announces the sender's tip height.
type VersionPayload struct {
	AddrFrom   string `json:"addr_from"`
	Version    int    `json:"version"`
	BestHeight int    `json:"best_height"`
}

// GetBlocksPayload asks the receiver for its full list of block hashes.
type GetBlocksPayload struct {
	AddrFrom string `json:"addr_from"`
}

// InvPayload advertises object ids the sender holds.
type InvPayload struct {
	AddrFrom string   `json:"addr_from"`
	OpType   OpType   `json:"op_type"`
	Items    [][]byte `json:"items"`
}

// GetDataPayload requests a single object by id.
type GetDataPayload struct {
	AddrFrom string `json:"addr_from"`
	OpType   OpType `json:"op_type"`
	Id       []byte `json:"id"`
}

// BlockPayload delivers a serialized block.
type BlockPayload struct {
	AddrFrom string `json:"addr_from"`
	Block    []byte `json:"block"`
}

// TxPayload delivers a serialized transaction.
type TxPayload struct {
	AddrFrom    string `json:"addr_from"`
	Transaction []byte `json:"transaction"`
}

// Package is the tagged union carried on the wire: exactly one variant field is
// set, and its name tags the JSON object. A connection carries a stream of
// concatenated JSON-encoded Packages.
type Package struct {
	Version   *VersionPayload   `json:"Version,omitempty"`
	GetBlocks *GetBlocksPayload `json:"GetBlocks,omitempty"`
	Inv       *InvPayload       `json:"Inv,omitempty"`
	GetData   *GetDataPayload   `json:"GetData,omitempty"`
	Block     *BlockPayload     `json:"Block,omitempty"`
	Tx        *TxPayload        `json:"Tx,omitempty"`
}

// sendData dials dstAddr, writes one JSON-encoded package under the write
// timeout, and closes the stream. An unreachable peer is evicted from nodes (when
// given) and the send still reports success; gossip is fire-and-forget.
func sendData(nodes *Nodes, dstAddr string, pkg *Package) error {
	conn, err := net.Dial(protocol, dstAddr)
	if err != nil {
		fmt.Printf("%s is not reachable: %v\n", dstAddr, err)
		if nodes != nil {
			nodes.EvictNode(dstAddr)
		}
		return nil
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := json.NewEncoder(conn).Encode(pkg); err != nil {
		return errors.Wrapf(err, "send package to %s", dstAddr)
	}
	return nil
}

// SendTx pushes a transaction to dstAddr on behalf of selfAddr. The CLI uses it
// to hand a freshly built transaction to the seed node.
func SendTx(dstAddr, selfAddr string, tx *core.Transaction) error {
	return sendData(nil, dstAddr, &Package{Tx: &TxPayload{
		AddrFrom:    selfAddr,
		Transaction: tx.Serialize(),
	}})
}
