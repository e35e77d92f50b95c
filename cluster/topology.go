/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cluster

import "devt.de/krotik/rhizome/engine"

/*
Topology is the indexed [server][engine] table a worker loop's
work-stealing neighbor and a query's destination engine are both looked
up through - an integer-indexed table rather than a graph of pointers
crossing ownership, per spec.md 9's note on avoiding cyclic
engine<->reply-map references.
*/
type Topology struct {
	workers [][]*engine.Worker
}

/*
NewTopology allocates an empty numServers x numEngines table. Callers
fill it in with Set as each local engine's Worker is constructed;
remote slots stay nil - Topology only ever resolves local engines, a
remote destination goes through Transport instead.
*/
func NewTopology(numServers, numEngines int) *Topology {
	workers := make([][]*engine.Worker, numServers)
	for i := range workers {
		workers[i] = make([]*engine.Worker, numEngines)
	}
	return &Topology{workers: workers}
}

/*
Set registers the Worker running server/engineIdx.
*/
func (t *Topology) Set(server, engineIdx int, w *engine.Worker) {
	t.workers[server][engineIdx] = w
}

/*
Worker returns the Worker registered for server/engineIdx, or nil if
none has been set (including every remote server's slots on this
process).
*/
func (t *Topology) Worker(server, engineIdx int) *engine.Worker {
	if server < 0 || server >= len(t.workers) {
		return nil
	}
	if engineIdx < 0 || engineIdx >= len(t.workers[server]) {
		return nil
	}
	return t.workers[server][engineIdx]
}

/*
Local returns every engine Worker registered for server.
*/
func (t *Topology) Local(server int) []*engine.Worker {
	if server < 0 || server >= len(t.workers) {
		return nil
	}
	return t.workers[server]
}

/*
NumServers reports the table's server dimension.
*/
func (t *Topology) NumServers() int {
	return len(t.workers)
}

/*
NumEngines reports the table's per-server engine dimension.
*/
func (t *Topology) NumEngines() int {
	if len(t.workers) == 0 {
		return 0
	}
	return len(t.workers[0])
}
