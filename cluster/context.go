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

import (
	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/store"
	"devt.de/krotik/rhizome/transport"
)

/*
Context is the explicit, once-constructed bundle of cluster-wide
collaborators a server process wires together at startup and passes
down - config, store, transport and topology - rather than reaching for
package-level mutable singletons (spec.md 9's note on global mutable
state; the only standing exception, matching the teacher's own idiom,
is the swappable rlog.Info/Debug/Warn/Error func vars).
*/
type Context struct {
	Server     int
	NumServers int
	NumEngines int

	Store      *store.Store
	Dict       dict.Dictionary
	Transport  transport.Transport
	Topology   *Topology
	Membership *Membership
}
