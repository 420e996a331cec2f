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

import `sync`

// Nodes is the deduplicated set of known peer addresses ("host:port"). It stands
// in for real peer discovery: the seed node is always present at startup.
type Nodes struct {
	mtx   sync.RWMutex
	inner []string
}

func NewNodes() *Nodes {
	return &Nodes{}
}

// AddNode records a peer address; a known address is left in place.
func (nodes *Nodes) AddNode(addr string) {
	nodes.mtx.Lock()
	defer nodes.mtx.Unlock()
	for _, known := range nodes.inner {
		if known == addr {
			return
		}
	}
	nodes.inner = append(nodes.inner, addr)
}

// EvictNode drops a peer address, typically after a failed dial.
func (nodes *Nodes) EvictNode(addr string) {
	nodes.mtx.Lock()
	defer nodes.mtx.Unlock()
	for idx, known := range nodes.inner {
		if known == addr {
			nodes.inner = append(nodes.inner[:idx], nodes.inner[idx+1:]...)
			return
		}
	}
}

// First returns the first known peer address.
func (nodes *Nodes) First() (string, bool) {
	nodes.mtx.RLock()
	defer nodes.mtx.RUnlock()
	if len(nodes.inner) == 0 {
		return "", false
	}
	return nodes.inner[0], true
}

// GetNodes returns a copy of all known peer addresses.
func (nodes *Nodes) GetNodes() []string {
	nodes.mtx.RLock()
	defer nodes.mtx.RUnlock()
	return append([]string{}, nodes.inner...)
}

// NodeIsKnown reports whether addr is already in the set.
func (nodes *Nodes) NodeIsKnown(addr string) bool {
	nodes.mtx.RLock()
	defer nodes.mtx.RUnlock()
	for _, known := range nodes.inner {
		if known == addr {
			return true
		}
	}
	return false
}
