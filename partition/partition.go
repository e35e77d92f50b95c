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
Package partition maps vertex IDs to the server which owns them. The hash
must be deterministic and produce identical results on every server in
the cluster - no seeding from process state is allowed.
*/
package partition

/*
hashSeed mirrors the multiplicative constant used by the reference
implementation's hash_mod (a Knuth multiplicative hash) - any server
computing HashMod must agree, so this is fixed, not configurable.
*/
const hashSeed uint64 = 2654435761

/*
HashMod maps id to a server index in [0, numServers).
*/
func HashMod(id uint64, numServers int) int {
	if numServers <= 0 {
		return 0
	}

	h := id * hashSeed
	h ^= h >> 33

	return int(h % uint64(numServers))
}

/*
Owner describes where the OUT and IN copies of a triple touching s and o
are stored.
*/
type Owner struct {
	SubjectServer int
	ObjectServer  int
}

/*
OwnerOf returns the servers owning the OUT side (keyed by subject) and IN
side (keyed by object) of a triple. When SubjectServer == ObjectServer a
single server holds both sides (spec.md "shard ownership").
*/
func OwnerOf(s, o uint64, numServers int) Owner {
	return Owner{
		SubjectServer: HashMod(s, numServers),
		ObjectServer:  HashMod(o, numServers),
	}
}
