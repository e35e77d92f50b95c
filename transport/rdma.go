/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport

/*
RDMA names the shape a real one-sided RDMA transport would need to
satisfy Transport with a genuine zero-copy RemoteRead, instead of WS's
"unsupported" stub. Left as an interface only: a real implementation
needs kernel bypass / NIC verbs bindings that have no idiomatic Go
expression and no home in this module (spec.md 1's RDMA transport
library is an explicit external collaborator). A cluster configured with
UseRDMA=true but no RDMA implementation wired falls back to WS.
*/
type RDMA interface {
	Transport

	// Register exposes a byte range of the local store's arena for peers
	// to read with a one-sided RemoteRead, without involving this
	// engine's CPU once registered.
	Register(offset, length uint64) error

	// Deregister revokes a previously Registered range.
	Deregister(offset, length uint64) error
}
