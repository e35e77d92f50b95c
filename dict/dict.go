/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package dict provides the string <-> id dictionary the rest of the
engine treats as an external collaborator (package rdf's doc comment,
SPEC_FULL.md's package-mapping table). It mirrors the reference's
String_Server: every vertex, predicate and literal is interned to a
uint64 id once at load time, and FILTER/ORDER BY rehydrate ids back to
strings on demand (original_source/core/engine.hpp's get_str/exist).

The hot path (id -> string, used once per FILTER/ORDER BY row) is kept
in a datautil.MapCache in front of the authoritative map so that a
Dictionary backed by something slower than memory (future on-disk
interning) does not have to duplicate caching.
*/
package dict

import (
	"sync"

	"devt.de/krotik/common/datautil"
)

/*
Dictionary interns strings to ids and resolves ids back to strings. A
single Dictionary is shared by every engine thread on a server;
implementations must be safe for concurrent use.
*/
type Dictionary interface {

	// Lookup returns the id for s, interning it if it has not been seen
	// before.
	Lookup(s string) uint64

	// Exist reports whether id has a known string mapping (mirrors the
	// reference's String_Server::exist).
	Exist(id uint64) bool

	// Str returns the string for id, or "" if id is unknown.
	Str(id uint64) string
}

/*
Memory is an in-memory Dictionary, the reference implementation for
single-process tests and for servers that load their whole input set up
front (spec.md 4.1's all-files-load path, which interns strings as it
reads).
*/
type Memory struct {
	mu    sync.RWMutex
	toID  map[string]uint64
	toStr map[uint64]string
	next  uint64

	cache *datautil.MapCache // read-through cache for Str, fronting toStr
}

/*
NewMemory creates an empty in-memory dictionary. ids are handed out
starting at 1 so that 0 can be reserved as BLANK_ID by callers (spec.md
4.5's bound_filter "unbound variable" sentinel).
*/
func NewMemory() *Memory {
	return &Memory{
		toID:  make(map[string]uint64),
		toStr: make(map[uint64]string),
		next:  1,
		cache: datautil.NewMapCache(4096, 0),
	}
}

/*
Lookup interns s if necessary and returns its id.
*/
func (m *Memory) Lookup(s string) uint64 {
	m.mu.RLock()
	if id, ok := m.toID[s]; ok {
		m.mu.RUnlock()
		return id
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.toID[s]; ok {
		return id
	}

	id := m.next
	m.next++
	m.toID[s] = id
	m.toStr[id] = s
	return id
}

/*
Exist reports whether id is known.
*/
func (m *Memory) Exist(id uint64) bool {
	if _, ok := m.cache.Get(cacheKey(id)); ok {
		return true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.toStr[id]
	return ok
}

/*
Str returns the string for id, or "" if unknown.
*/
func (m *Memory) Str(id uint64) string {
	if v, ok := m.cache.Get(cacheKey(id)); ok {
		return v.(string)
	}

	m.mu.RLock()
	s, ok := m.toStr[id]
	m.mu.RUnlock()

	if !ok {
		return ""
	}

	m.cache.Put(cacheKey(id), s)
	return s
}

func cacheKey(id uint64) string {
	buf := make([]byte, 0, 20)
	if id == 0 {
		return "0"
	}
	for id > 0 {
		buf = append(buf, byte('0'+id%10))
		id /= 10
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
