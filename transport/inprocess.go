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
	"sync"
)

/*
InProcessHub wires every engine in a single-binary deployment (or test)
together through Go channels - no bytes cross a process boundary, so
RemoteRead is never meaningful and reports ErrRemoteReadUnsupported; a
single-process cluster always serves edges/attrs locally.
*/
type InProcessHub struct {
	mu      sync.Mutex
	inboxes map[[2]int]chan Bundle
}

/*
NewInProcessHub creates an empty hub.
*/
func NewInProcessHub() *InProcessHub {
	return &InProcessHub{inboxes: make(map[[2]int]chan Bundle)}
}

/*
Endpoint returns the Transport for one engine, creating its inbox with
the given buffer size if this is the first call for (server, engine).
*/
func (h *InProcessHub) Endpoint(server, engine, bufSize int) Transport {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := [2]int{server, engine}
	ch, ok := h.inboxes[key]
	if !ok {
		ch = make(chan Bundle, bufSize)
		h.inboxes[key] = ch
	}

	return &InProcess{hub: h, self: key, inbox: ch}
}

/*
InProcess is the Transport handed to one engine by an InProcessHub.
*/
type InProcess struct {
	hub   *InProcessHub
	self  [2]int
	inbox chan Bundle
}

/*
Send delivers b to dstServer/dstEngine's inbox, non-blocking.
*/
func (t *InProcess) Send(dstServer, dstEngine int, b Bundle) bool {
	t.hub.mu.Lock()
	ch, ok := t.hub.inboxes[[2]int{dstServer, dstEngine}]
	t.hub.mu.Unlock()

	if !ok {
		return false
	}

	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

/*
TryRecv drains one pending bundle addressed to this endpoint, if any.
*/
func (t *InProcess) TryRecv() (Bundle, bool) {
	select {
	case b := <-t.inbox:
		return b, true
	default:
		return Bundle{}, false
	}
}

/*
RemoteRead is never meaningful in-process; every peer is reachable
locally through the store's own EdgeFetcher seam instead.
*/
func (t *InProcess) RemoteRead(ctx context.Context, thread, peer int, offset, length uint64) ([]byte, error) {
	return nil, ErrRemoteReadUnsupported
}
