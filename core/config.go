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

package core

import (
	`os`
	`sync`

	`github.com/joho/godotenv`
)

// DefaultNodeAddr is the listen address used when NODE_ADDRESS is not set. It is
// also the address of the hardcoded seed node.
const DefaultNodeAddr = "127.0.0.1:2001"

const nodeAddrKey = "NODE_ADDRESS"
const miningAddrKey = "MINING_ADDRESS"

// Config holds the process-wide keyed settings behind a reader-writer lock. It is
// created once at startup and injected into the components that need it.
type Config struct {
	mtx   sync.RWMutex
	inner map[string]string
}

// NewConfig reads the environment (a .env file is honored when present) and
// returns the node configuration.
func NewConfig() *Config {
	_ = godotenv.Load()

	nodeAddr := DefaultNodeAddr
	if addr := os.Getenv(nodeAddrKey); addr != "" {
		nodeAddr = addr
	}

	return &Config{inner: map[string]string{nodeAddrKey: nodeAddr}}
}

// GetNodeAddr returns the local node's listen address.
func (config *Config) GetNodeAddr() string {
	config.mtx.RLock()
	defer config.mtx.RUnlock()
	return config.inner[nodeAddrKey]
}

// SetMiningAddr marks this node as a miner receiving rewards at addr.
func (config *Config) SetMiningAddr(addr string) {
	config.mtx.Lock()
	defer config.mtx.Unlock()
	config.inner[miningAddrKey] = addr
}

// GetMiningAddr returns the configured mining address, if any.
func (config *Config) GetMiningAddr() (string, bool) {
	config.mtx.RLock()
	defer config.mtx.RUnlock()
	addr, ok := config.inner[miningAddrKey]
	return addr, ok
}

// IsMiner reports whether a mining address is configured.
func (config *Config) IsMiner() bool {
	_, ok := config.GetMiningAddr()
	return ok
}
