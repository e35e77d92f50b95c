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
Package engine implements the per-thread worker loop (spec.md 4.7): the
six-step scheduler that advances SPARQL queries through a driver.Driver,
dispatches their sub-queries over a transport.Transport, retries
backpressured sends, and optionally steals work from a paired neighbor
engine when idle.

Grounded on the reference's engine thread loop and on the teacher's
cluster/manager housekeeping worker for the general shape of a
lock-guarded background loop driven from Run.
*/
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"devt.de/krotik/rhizome/driver"
	"devt.de/krotik/rhizome/query"
	"devt.de/krotik/rhizome/rlog"
	"devt.de/krotik/rhizome/transport"
)

/*
Worker loop timing constants (spec.md 4.7).
*/
const (
	MinSnoozeTime       = 10 * time.Millisecond
	MaxSnoozeTime       = 80 * time.Millisecond
	BusyPollingThreshold = 10 * time.Second
	NeighborTimeoutThreshold = 10 * time.Millisecond
)

/*
pendingSend is a previously-blocked Send, kept around for the sweep step
until it either succeeds or its backoff policy gives up.
*/
type pendingSend struct {
	dstServer int
	dstThread int
	bundle    transport.Bundle
	backoff   backoff.BackOff
	nextTry   time.Time
}

/*
Worker runs the scheduler loop for one engine thread. Server/Thread
identify this engine for routing purposes; they must match the Server/
Thread the owned Driver was built with.
*/
type Worker struct {
	Server int
	Thread int

	Driver    *driver.Driver
	Transport transport.Transport

	// Neighbor, when non-nil, is the paired engine this worker may steal
	// work from once it has been idle past NeighborTimeoutThreshold.
	Neighbor           *Worker
	EnableWorkStealing bool

	// OnDynamicLoad/OnGstoreCheck handle non-query bundle kinds this
	// worker receives; both may be nil, in which case the bundle is
	// silently dropped.
	OnDynamicLoad func(*transport.DynamicLoad)
	OnGstoreCheck func(*transport.GstoreCheck)

	// OnEdgeFetch answers an incoming EdgeFetchRequest from this engine's
	// local store; when nil, the worker answers with an error response,
	// which the asking cluster.RemoteFetcher returns as an error.
	OnEdgeFetch func(*transport.EdgeFetchRequest) transport.EdgeFetchResponse

	fetchIDSeq  uint64
	fetchMu     sync.Mutex
	fetchWaiters map[uint64]chan transport.EdgeFetchResponse

	// OnComplete is called once a query reaches final processing on its
	// owning engine (spec.md 4.4's "Done" outcome) - the proxy/API layer
	// hangs its reply delivery off this hook.
	OnComplete func(*query.SPARQLQuery)

	fastPathMu sync.Mutex
	fastPath   []*query.SPARQLQuery

	newReqMu    sync.Mutex
	newReqQueue []*query.SPARQLQuery

	pendingMu sync.Mutex
	pending   []*pendingSend

	lastMsgMu sync.Mutex
	lastMsg   time.Time

	snoozeTime   time.Duration
	busySince    time.Time
}

/*
NewWorker creates a Worker for one engine thread, ready to Run.
*/
func NewWorker(server, thread int, d *driver.Driver, t transport.Transport) *Worker {
	now := time.Now()
	return &Worker{
		Server:       server,
		Thread:       thread,
		Driver:       d,
		Transport:    t,
		snoozeTime:   MinSnoozeTime,
		busySince:    now,
		lastMsg:      now,
		fetchWaiters: make(map[uint64]chan transport.EdgeFetchResponse),
	}
}

/*
NextFetchID hands out a request ID unique to this worker, for
cluster.RemoteFetcher to tag an outgoing EdgeFetchRequest with.
*/
func (w *Worker) NextFetchID() uint64 {
	return atomic.AddUint64(&w.fetchIDSeq, 1)
}

/*
RegisterFetchWaiter opens a reply slot for id and returns the channel the
matching EdgeFetchResponse will be delivered on. Callers must eventually
call UnregisterFetchWaiter(id), win or lose the race with a reply.
*/
func (w *Worker) RegisterFetchWaiter(id uint64) chan transport.EdgeFetchResponse {
	ch := make(chan transport.EdgeFetchResponse, 1)
	w.fetchMu.Lock()
	w.fetchWaiters[id] = ch
	w.fetchMu.Unlock()
	return ch
}

/*
UnregisterFetchWaiter removes id's reply slot, whether or not a reply
ever arrived (a late reply is simply dropped - the caller already gave
up).
*/
func (w *Worker) UnregisterFetchWaiter(id uint64) {
	w.fetchMu.Lock()
	delete(w.fetchWaiters, id)
	w.fetchMu.Unlock()
}

/*
Send is a small exported wrapper so cluster.RemoteFetcher can dispatch a
fetch request/response without reaching into the pending-send retry
machinery meant for queries - a fetch request that cannot be sent right
away simply fails the fetch, which the caller surfaces as an error
rather than silently retrying forever.
*/
func (w *Worker) Send(dstServer, dstEngine int, b transport.Bundle) bool {
	return w.Transport.Send(dstServer, dstEngine, b)
}

/*
enqueueFastPath appends q to this engine's own fast-path queue - used
when a Dispatch target names this same (Server, Thread), avoiding a
round trip through the transport (spec.md 4.7 step 1).
*/
func (w *Worker) enqueueFastPath(q *query.SPARQLQuery) {
	w.fastPathMu.Lock()
	w.fastPath = append(w.fastPath, q)
	w.fastPathMu.Unlock()
}

func (w *Worker) popFastPath() (*query.SPARQLQuery, bool) {
	w.fastPathMu.Lock()
	defer w.fastPathMu.Unlock()

	if len(w.fastPath) == 0 {
		return nil, false
	}

	q := w.fastPath[0]
	w.fastPath = w.fastPath[1:]
	return q, true
}

func (w *Worker) popNewReq() (*query.SPARQLQuery, bool) {
	w.newReqMu.Lock()
	defer w.newReqMu.Unlock()

	if len(w.newReqQueue) == 0 {
		return nil, false
	}

	q := w.newReqQueue[0]
	w.newReqQueue = w.newReqQueue[1:]
	return q, true
}

func (w *Worker) pushNewReq(q *query.SPARQLQuery) {
	w.newReqMu.Lock()
	w.newReqQueue = append(w.newReqQueue, q)
	w.newReqMu.Unlock()
}

func (w *Worker) markActivity() {
	w.lastMsgMu.Lock()
	w.lastMsg = time.Now()
	w.lastMsgMu.Unlock()
	w.snoozeTime = MinSnoozeTime
	w.busySince = time.Now()
}

func (w *Worker) idleSince() time.Time {
	w.lastMsgMu.Lock()
	defer w.lastMsgMu.Unlock()
	return w.lastMsg
}

/*
route delivers q to dstServer/dstThread: same-engine targets go onto the
fast-path queue directly, everything else goes over the transport and,
on backpressure, onto the pending-send retry list (spec.md 4.4/4.7).
*/
func (w *Worker) route(dstServer, dstThread int, q *query.SPARQLQuery) {
	if dstServer == w.Server && dstThread == w.Thread {
		w.enqueueFastPath(q)
		return
	}

	bundle := transport.Bundle{Kind: transport.BundleSPARQLQuery, Query: q}
	if w.Transport.Send(dstServer, dstThread, bundle) {
		return
	}

	w.stashPending(dstServer, dstThread, bundle)
}

func (w *Worker) stashPending(dstServer, dstThread int, bundle transport.Bundle) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = MinSnoozeTime
	bo.MaxInterval = MaxSnoozeTime
	bo.MaxElapsedTime = 0 // retry indefinitely - the driver never cancels a dispatch

	w.pendingMu.Lock()
	w.pending = append(w.pending, &pendingSend{
		dstServer: dstServer,
		dstThread: dstThread,
		bundle:    bundle,
		backoff:   bo,
		nextTry:   time.Now(),
	})
	w.pendingMu.Unlock()
}

/*
dispatchOutcome routes every SubTarget an AdvanceResult carries, or
invokes OnComplete if the query finished.
*/
func (w *Worker) dispatchOutcome(res *driver.AdvanceResult) {
	if res.Done {
		if w.OnComplete != nil {
			w.OnComplete(res.Query)
		}
		return
	}

	for _, t := range res.Dispatch {
		w.route(t.Server, t.Thread, t.Query)
	}
}

/*
runQuery advances q to its next suspension point and dispatches the
outcome. Errors are logged rather than propagated - the worker loop has
no caller to return them to, mirroring the reference's run-to-completion
per-step model where a step failure degrades to a logged, empty result.
*/
func (w *Worker) runQuery(ctx context.Context, q *query.SPARQLQuery) {
	res, err := w.Driver.Advance(ctx, q)
	if err != nil {
		rlog.Error(logrus.Fields{"server": w.Server, "thread": w.Thread, "query": q.ID}, err.Error())
		return
	}
	w.dispatchOutcome(res)
}

/*
resumeQuery re-enters the driver for a parent whose children have all
replied.
*/
func (w *Worker) resumeQuery(ctx context.Context, pid uint64) {
	res, err := w.Driver.Resume(ctx, pid)
	if err != nil {
		rlog.Error(logrus.Fields{"server": w.Server, "thread": w.Thread, "parent": pid}, err.Error())
		return
	}
	w.dispatchOutcome(res)
}

/*
handleBundle executes one received bundle to completion (for queries,
that means one Advance step which may itself suspend; for dynamic-load
and gstore-check bundles, the registered hook runs synchronously).
*/
func (w *Worker) handleBundle(ctx context.Context, b transport.Bundle) {
	switch b.Kind {
	case transport.BundleSPARQLQuery:
		w.deliver(ctx, b.Query)
	case transport.BundleDynamicLoad:
		if w.OnDynamicLoad != nil {
			w.OnDynamicLoad(b.Load)
		}
	case transport.BundleGstoreCheck:
		if w.OnGstoreCheck != nil {
			w.OnGstoreCheck(b.Check)
		}
	case transport.BundleEdgeFetchRequest:
		w.handleFetchRequest(b.FetchReq)
	case transport.BundleEdgeFetchResponse:
		w.handleFetchResponse(b.FetchResp)
	}
}

/*
handleFetchRequest answers req from this engine's local store (via
OnEdgeFetch) and sends the result back to the asking engine. A send
failure is logged and dropped - the asking RemoteFetcher times out on
its own ctx rather than this side retrying indefinitely.
*/
func (w *Worker) handleFetchRequest(req *transport.EdgeFetchRequest) {
	var resp transport.EdgeFetchResponse
	if w.OnEdgeFetch != nil {
		resp = w.OnEdgeFetch(req)
	} else {
		resp = transport.EdgeFetchResponse{Err: "edge fetch not supported on this engine"}
	}
	resp.ID = req.ID

	bundle := transport.Bundle{Kind: transport.BundleEdgeFetchResponse, FetchResp: &resp}
	if !w.Transport.Send(req.ReplyServer, req.ReplyEngine, bundle) {
		rlog.Warn(logrus.Fields{"server": w.Server, "thread": w.Thread, "fetch": req.ID},
			"dropping edge-fetch response: reply send would block")
	}
}

/*
handleFetchResponse delivers resp to whichever goroutine registered
fetch ID resp.ID via RegisterFetchWaiter, if any is still waiting.
*/
func (w *Worker) handleFetchResponse(resp *transport.EdgeFetchResponse) {
	w.fetchMu.Lock()
	ch, ok := w.fetchWaiters[resp.ID]
	w.fetchMu.Unlock()

	if !ok {
		return
	}

	select {
	case ch <- *resp:
	default:
	}
}

/*
deliver feeds q either straight into the driver (a fresh or forwarded
request) or into the reply map followed by a Resume (a sub-query's
reply), depending on whether q.ParentID names a pending entry this
engine itself registered - a child freshly dispatched to this engine
names no entry here (its parent's entry, if any, lives on whichever
engine dispatched it), so it always falls through to execution.
*/
func (w *Worker) deliver(ctx context.Context, q *query.SPARQLQuery) {
	if q.ParentID != 0 && w.Driver.Replies.Has(q.ParentID) {
		if w.Driver.Replies.PutReply(q) {
			w.resumeQuery(ctx, q.ParentID)
		}
		return
	}
	w.runQuery(ctx, q)
}

/*
Run drives the six-step loop until ctx is cancelled (spec.md 4.7):

 1. fast path
 2. sweep pending sends
 3. own queue (priority bundles run immediately, priority 0 queues)
 4. new_req_queue
 5. work-stealing from Neighbor
 6. adaptive snooze if nothing happened
*/
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		did := false

		if q, ok := w.popFastPath(); ok {
			w.deliver(ctx, q)
			did = true
		}

		if w.sweepPending() {
			did = true
		}

		if b, ok := w.Transport.TryRecv(); ok {
			w.markActivity()
			did = true

			if b.Kind == transport.BundleSPARQLQuery && b.Query.Priority == 0 {
				w.pushNewReq(b.Query)
			} else {
				w.handleBundle(ctx, b)
			}
		} else if q, ok := w.popNewReq(); ok {
			w.deliver(ctx, q)
			did = true
		}

		if !did && w.EnableWorkStealing && w.Neighbor != nil {
			if w.steal(ctx) {
				did = true
			}
		}

		if !did {
			w.snooze()
		}
	}
}

/*
sweepPending retries every blocked send whose backoff has elapsed,
dropping it from the list on success.
*/
func (w *Worker) sweepPending() bool {
	w.pendingMu.Lock()
	items := w.pending
	w.pendingMu.Unlock()

	if len(items) == 0 {
		return false
	}

	now := time.Now()
	sent := false
	kept := items[:0:0]

	for _, p := range items {
		if now.Before(p.nextTry) {
			kept = append(kept, p)
			continue
		}

		if w.Transport.Send(p.dstServer, p.dstThread, p.bundle) {
			sent = true
			continue
		}

		p.nextTry = now.Add(p.backoff.NextBackOff())
		kept = append(kept, p)
	}

	w.pendingMu.Lock()
	w.pending = kept
	w.pendingMu.Unlock()

	return sent
}

/*
steal examines the paired neighbor and, if it looks idle, receives one
message on its behalf and executes it under the neighbor's own driver -
so the reply map update lands with the correct owner (spec.md 4.7 step
5, 5's "work-stolen executions route through the correct owner").
*/
func (w *Worker) steal(ctx context.Context) bool {
	if time.Since(w.Neighbor.idleSince()) < NeighborTimeoutThreshold {
		return false
	}

	b, ok := w.Neighbor.Transport.TryRecv()
	if !ok {
		return false
	}

	// stolen work always executes immediately, regardless of priority -
	// the point of stealing is to spend this engine's otherwise-idle
	// cycles on the neighbor's backlog right now.
	w.Neighbor.markActivity()
	w.Neighbor.handleBundle(ctx, b)
	return true
}

func (w *Worker) snooze() {
	if time.Since(w.busySince) < BusyPollingThreshold {
		return
	}

	time.Sleep(w.snoozeTime)

	w.snoozeTime *= 2
	if w.snoozeTime > MaxSnoozeTime {
		w.snoozeTime = MaxSnoozeTime
	}
}
