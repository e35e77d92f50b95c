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

import (
	"context"

	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/executor"
	"devt.de/krotik/rhizome/query"
)

/*
Driver runs the five-step advance cycle for one engine thread: index-start
force-dispatch, the step loop (with the co-run optimisation triggered at
CorunStep), fork-join dispatch gated by NeedForkJoin, and on finish,
UNION/OPTIONAL sub-query dispatch, FILTER and final processing (spec.md
4.4). One Driver is owned by each engine thread, sharing that thread's
Coder and ReplyMap.
*/
type Driver struct {
	Executor   *executor.Context
	Dictionary dict.Dictionary
	Replies    *ReplyMap
	Coder      *Coder

	Server int
	Thread int

	NumServers    int
	NumEngines    int
	RDMAEnabled   bool
	RDMAThreshold int
}

/*
SubTarget names the (server, thread) an outgoing sub-query should be
routed to. Same-server-same-thread targets the reference sends directly
onto the engine's own fast-path queue rather than round-tripping through
the network; callers (package engine) can detect that case by comparing
Server/Thread against their own.
*/
type SubTarget struct {
	Server int
	Thread int
	Query  *query.SPARQLQuery
}

/*
AdvanceResult is the outcome of one Driver.Advance call.

Done reports that q has reached final processing and Query holds the
result ready to deliver to OriginServer/OriginThread. Otherwise Dispatch
holds the sub-queries Advance generated - UNION/OPTIONAL/fork-join
children, or the parent query being forwarded up to its own dispatcher
once q's branch has finished - which the caller must route and,
eventually, feed back into the owning Driver's ReplyMap.
*/
type AdvanceResult struct {
	Done    bool
	Query   *query.SPARQLQuery
	Dispatch []SubTarget
}

/*
Advance runs q until it either finishes locally, needs to fork out
sub-queries, or needs to forward a completed branch back to its
dispatcher.
*/
func (d *Driver) Advance(ctx context.Context, q *query.SPARQLQuery) (*AdvanceResult, error) {
	if q.Step == 0 && q.ForceDispatch && executor.StartFromIndex(q) {
		return d.dispatchIndexStart(q), nil
	}

	for !executor.IsFinished(q) {
		if q.CorunStep >= 0 && q.Step == q.CorunStep {
			if err := runCorun(ctx, d.Executor, q); err != nil {
				return nil, err
			}
			continue
		}

		if err := executor.Step(ctx, d.Executor, q); err != nil {
			return nil, err
		}

		if NeedForkJoin(q, d.NumServers, d.RDMAEnabled, d.RDMAThreshold) {
			return d.dispatchForkJoin(q), nil
		}
	}

	return d.finish(q)
}

/*
dispatchIndexStart force-dispatches a start-from-index pattern to every
(server, engine) pair in the cluster - S*M sub-queries, one per server
times per engine thread - each stamped with its own engine offset j as
Thread, so every engine's stride-sharded slice of that server's local
index (see executor.indexToUnknown) actually gets claimed by somebody.
*/
func (d *Driver) dispatchIndexStart(q *query.SPARQLQuery) *AdvanceResult {
	targets := make([]SubTarget, 0, d.NumServers*d.NumEngines)
	for srv := 0; srv < d.NumServers; srv++ {
		for j := 0; j < d.NumEngines; j++ {
			sub := q.Clone()
			sub.ID = d.Coder.NextID()
			sub.Server = srv
			sub.Thread = j
			sub.ForceDispatch = false
			sub.ParentID = q.ID
			sub.Kind = query.KindForkJoin
			targets = append(targets, SubTarget{Server: srv, Thread: j, Query: sub})
		}
	}

	d.Replies.PutParentRequest(q, len(targets))
	return &AdvanceResult{Dispatch: targets}
}

func (d *Driver) dispatchForkJoin(q *query.SPARQLQuery) *AdvanceResult {
	subs := generateForkJoinQueries(q, d.NumServers)
	for _, s := range subs {
		s.ID = d.Coder.NextID()
	}

	d.Replies.PutParentRequest(q, len(subs))

	targets := make([]SubTarget, len(subs))
	for i, s := range subs {
		targets[i] = SubTarget{Server: s.Server, Thread: q.Thread, Query: s}
	}
	return &AdvanceResult{Dispatch: targets}
}

func (d *Driver) finish(q *query.SPARQLQuery) (*AdvanceResult, error) {
	if len(q.Group.Unions) > 0 && !q.UnionDispatched {
		q.UnionDispatched = true

		subs := generateUnionQueries(q)
		for _, s := range subs {
			s.ID = d.Coder.NextID()
		}
		d.Replies.PutParentRequest(q, len(subs))

		targets := make([]SubTarget, len(subs))
		for i, s := range subs {
			targets[i] = SubTarget{Server: d.Server, Thread: d.Thread, Query: s}
		}
		return &AdvanceResult{Dispatch: targets}, nil
	}

	isOwner := q.Server == q.OriginServer && q.Thread == q.OriginThread

	if isOwner {
		if len(q.Group.Optional) > 0 && !q.OptionalDispatched {
			q.OptionalDispatched = true

			// FILTER runs after this dispatch resumes with the optional
			// columns merged in, not here - the optional columns don't
			// exist yet on this pre-merge result.
			subs := generateOptionalQueries(q)
			for _, s := range subs {
				s.ID = d.Coder.NextID()
			}
			d.Replies.PutParentRequest(q, len(subs))

			targets := make([]SubTarget, len(subs))
			for i, s := range subs {
				targets[i] = SubTarget{Server: d.Server, Thread: d.Thread, Query: s}
			}
			return &AdvanceResult{Dispatch: targets}, nil
		}

		Filter(q, d.Dictionary)
		FinalProcess(q, d.Dictionary)
		return &AdvanceResult{Done: true, Query: q}, nil
	}

	Filter(q, d.Dictionary)

	return &AdvanceResult{
		Dispatch: []SubTarget{{
			Server: ServerOf(q.ParentID),
			Thread: ThreadOf(q.ParentID),
			Query:  q,
		}},
	}, nil
}

/*
Resume is the re-entry point used once every sub-query dispatched for
pid has replied: it retrieves the merged reply from the ReplyMap and
feeds it back into Advance to continue the parent's own branch (spec.md
4.4's "Reply Map drains into the next Advance call").
*/
func (d *Driver) Resume(ctx context.Context, pid uint64) (*AdvanceResult, error) {
	q := d.Replies.GetMergedReply(pid)
	return d.Advance(ctx, q)
}
