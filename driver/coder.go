/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package driver

import "sync"

/*
Coder packs (server, thread, sequence) into a single query id so that
any engine thread holding only an id can recover where its owner lives,
without a lookup table - grounded on the reference's coder.hpp
(get_and_inc_qid/sid_of/tid_of), reconstructed here since the header
itself was not part of the retrieved original_source pack. 65535 servers
and threads each, 2^32 sequence numbers per (server, thread) pair.
*/
type Coder struct {
	mu sync.Mutex

	server  int
	thread  int
	counter uint64
}

/*
NewCoder creates a Coder for one engine thread.
*/
func NewCoder(server, thread int) *Coder {
	return &Coder{server: server, thread: thread}
}

/*
NextID hands out the next query id owned by this engine thread.
*/
func (c *Coder) NextID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return (uint64(c.server) << 48) | (uint64(c.thread) << 32) | c.counter
}

/*
ServerOf extracts the owning server from an id minted by NextID.
*/
func ServerOf(id uint64) int { return int(id >> 48) }

/*
ThreadOf extracts the owning thread from an id minted by NextID.
*/
func ThreadOf(id uint64) int { return int((id >> 32) & 0xFFFF) }
