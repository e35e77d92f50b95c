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

import (
	"context"
	"errors"
)

/*
ErrRemoteReadUnsupported is returned by implementations that do not carry
raw one-sided reads (everything except a true RDMA backend).
*/
var ErrRemoteReadUnsupported = errors.New("one-sided remote read is not supported by this transport")

/*
Transport is the non-blocking bundle channel plus one-sided remote-read
trait one engine's worker loop uses to reach the rest of the cluster
(spec.md 4.7). Send must never block - backpressure is signalled by a
false return so the caller can stash the bundle in its own pending list
and retry, per spec.md's "no bounded-queue drop" rule.
*/
type Transport interface {

	// Send attempts to deliver b to the engine at (dstServer, dstEngine).
	// Returns false if the send would block (backpressure); the caller
	// is responsible for retrying.
	Send(dstServer, dstEngine int, b Bundle) bool

	// TryRecv returns the next bundle addressed to this endpoint, if any.
	TryRecv() (Bundle, bool)

	// RemoteRead performs a one-sided read of length bytes at offset from
	// peer's store arena, for transports that can express it.
	RemoteRead(ctx context.Context, thread, peer int, offset, length uint64) ([]byte, error)
}
