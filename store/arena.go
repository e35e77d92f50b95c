/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import "sync"

/*
arena is a bump-allocated payload zone holding packed vertex-ID arrays
(and typed attribute scalars, which reuse the same zone). Buckets never
hold raw pointers into it - only (offset, length) pairs - so the whole
zone can be grown (reallocated) without invalidating anything but the
slice header itself.

This is the Go-idiomatic rendering of the spec's "typed arena with
offsets" design note: a []byte growable slice plays the role of the
reference's manually managed kvstore payload region.
*/
type arena struct {
	mu   sync.RWMutex
	data []byte
}

func newArena(initial int) *arena {
	if initial <= 0 {
		initial = 4096
	}
	return &arena{data: make([]byte, 0, initial)}
}

/*
alloc appends b to the arena and returns the (offset, length) at which it
was stored.
*/
func (a *arena) alloc(b []byte) (uint64, uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	off := uint64(len(a.data))
	a.data = append(a.data, b...)
	return off, uint32(len(b))
}

/*
read returns a copy of the bytes at [offset, offset+length). Returns nil
if the range is out of bounds.
*/
func (a *arena) read(offset uint64, length uint32) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()

	end := offset + uint64(length)
	if end > uint64(len(a.data)) {
		return nil
	}

	out := make([]byte, length)
	copy(out, a.data[offset:end])
	return out
}

/*
size returns the current length of the arena payload zone.
*/
func (a *arena) size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.data)
}
