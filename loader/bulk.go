/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"devt.de/krotik/rhizome/partition"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/rlog"
	"devt.de/krotik/rhizome/transport"
)

const (
	exchangeBatchSize      = 1024
	exchangeDrainIdleRounds = 5
	exchangeDrainPoll       = 5 * time.Millisecond
)

/*
AllFilesLoad reads every id_ file on every server and keeps only the
triples this server owns (spec.md 4.1's all-files-load path, used when
config.Config.UseRDMA is false - avoids cross-server traffic at the cost
of every server doing the full directory's I/O, mirrors the reference's
load_data_from_allfiles).
*/
func (l *Loader) AllFilesLoad(ctx context.Context, dir string) (int, error) {
	dfiles, err := l.Files.List(dir, "id_")
	if err != nil {
		return 0, fmt.Errorf("loader: %w", err)
	}

	var owned []rdf.Triple
	for _, path := range dfiles {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := l.scanTriples(path, func(t rdf.Triple) error {
			sSid := partition.HashMod(t.S, l.NumServers)
			oSid := partition.HashMod(t.O, l.NumServers)
			if sSid == l.Server || oSid == l.Server {
				owned = append(owned, t)
			}
			return nil
		}); err != nil {
			return 0, err
		}
	}

	pso, pos := Aggregate(owned, l.Server, l.NumServers)
	l.Store.InsertNormal(pso, pos)

	rlog.Info(logrus.Fields{"server": l.Server, "files": len(dfiles), "triples": len(owned)},
		"all-files load complete")
	return len(owned), nil
}

/*
ExchangeLoad has each server read only its 1/NumServers slice of id_
files (selected by file index modulo NumServers, matching the
reference's "ensure the file name list has the same order on all
servers" invariant) and exchanges triples with their owning server(s)
over Transport instead of RDMA, mirroring the reference's
load_data/send_triple/flush_triples. Used when config.Config.UseRDMA is
true.
*/
func (l *Loader) ExchangeLoad(ctx context.Context, dir string) (int, error) {
	if l.Transport == nil {
		return 0, fmt.Errorf("loader: ExchangeLoad requires a Transport")
	}

	dfiles, err := l.Files.List(dir, "id_")
	if err != nil {
		return 0, fmt.Errorf("loader: %w", err)
	}

	var owned []rdf.Triple
	pending := make(map[int][]transport.TripleMsg)

	flush := func(dst int) error {
		batch := pending[dst]
		if len(batch) == 0 {
			return nil
		}
		b := transport.Bundle{
			Kind: transport.BundleDynamicLoad,
			Load: &transport.DynamicLoad{Normal: append([]transport.TripleMsg(nil), batch...)},
		}

		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 10 * time.Millisecond
		bo.MaxInterval = 200 * time.Millisecond
		bo.MaxElapsedTime = 5 * time.Second

		for !l.Transport.Send(dst, LoaderEngine, b) {
			d := bo.NextBackOff()
			if d == backoff.Stop {
				return fmt.Errorf("loader: exchange send to server %d timed out", dst)
			}
			time.Sleep(d)
		}

		pending[dst] = pending[dst][:0]
		return nil
	}

	for i, path := range dfiles {
		if i%l.NumServers != l.Server {
			continue
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := l.scanTriples(path, func(t rdf.Triple) error {
			sSid := partition.HashMod(t.S, l.NumServers)
			oSid := partition.HashMod(t.O, l.NumServers)

			for _, dst := range destServers(sSid, oSid) {
				if dst == l.Server {
					owned = append(owned, t)
					continue
				}
				pending[dst] = append(pending[dst], tripleMsg(t))
				if len(pending[dst]) >= exchangeBatchSize {
					if err := flush(dst); err != nil {
						return err
					}
				}
			}
			return nil
		}); err != nil {
			return 0, err
		}
	}

	for dst := range pending {
		if err := flush(dst); err != nil {
			return 0, err
		}
	}

	owned = append(owned, l.drainExchangeInbox(ctx)...)

	pso, pos := Aggregate(owned, l.Server, l.NumServers)
	l.Store.InsertNormal(pso, pos)

	rlog.Info(logrus.Fields{"server": l.Server, "files": len(dfiles), "triples": len(owned)},
		"exchange load complete")
	return len(owned), nil
}

/*
drainExchangeInbox collects DynamicLoad bundles sent to this server by
its peers during ExchangeLoad, stopping once a run of idle TryRecv calls
suggests no more are coming. Bulk load has no barrier primitive of its
own to know every peer has finished sending (spec.md's Transport is
deliberately barrier-free); callers that need a hard guarantee should
run ExchangeLoad only after every server has confirmed file-read
completion through the cluster membership layer.
*/
func (l *Loader) drainExchangeInbox(ctx context.Context) []rdf.Triple {
	var out []rdf.Triple
	idle := 0

	for idle < exchangeDrainIdleRounds {
		if ctx.Err() != nil {
			return out
		}

		b, ok := l.Transport.TryRecv()
		if !ok {
			idle++
			time.Sleep(exchangeDrainPoll)
			continue
		}
		idle = 0

		if b.Kind != transport.BundleDynamicLoad || b.Load == nil {
			continue
		}
		for _, m := range b.Load.Normal {
			out = append(out, rdf.Triple{S: m.S, P: m.P, O: m.O})
		}
	}
	return out
}

/*
LoadAttrFiles reads attr_ files in all-files-load style (spec.md 4.1:
"attribute files always load in all-files-load style") regardless of
config.Config.UseRDMA - the reference never offers an exchange variant
for attributes either.
*/
func (l *Loader) LoadAttrFiles(ctx context.Context, dir string) (int, error) {
	afiles, err := l.Files.List(dir, "attr_")
	if err != nil {
		return 0, fmt.Errorf("loader: %w", err)
	}
	if len(afiles) == 0 {
		return 0, nil
	}

	var owned []rdf.AttrTriple
	for _, path := range afiles {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := l.scanAttrTriples(path, func(at rdf.AttrTriple) error {
			if partition.HashMod(at.S, l.NumServers) == l.Server {
				owned = append(owned, at)
			}
			return nil
		}); err != nil {
			return 0, err
		}
	}

	l.Store.InsertAttr(owned)

	rlog.Info(logrus.Fields{"server": l.Server, "files": len(afiles), "attrs": len(owned)},
		"attribute load complete")
	return len(owned), nil
}

/*
Aggregate restripes triples already read by this server's loader into
the OUT-ordered (PSO) and IN-ordered (POS) slices Store.InsertNormal
expects, keeping only the side(s) this server owns, then sorts and
dedups each (mirrors the reference's aggregate_data). The reference
additionally restripes by `s mod numEngines`/`o mod numEngines` so each
OpenMP thread can build its slice of the preallocated kvstore in
parallel; Store's own per-bucket locking makes that split unnecessary
here; InsertNormal is already safe to call with the full set.
*/
func Aggregate(triples []rdf.Triple, server, numServers int) (pso, pos []rdf.Triple) {
	for _, t := range triples {
		if partition.HashMod(t.S, numServers) == server {
			pso = append(pso, t)
		}
		if partition.HashMod(t.O, numServers) == server {
			pos = append(pos, t)
		}
	}

	sort.Sort(rdf.TripleSortPSO(pso))
	pso = rdf.DedupTriples(pso)

	sort.Sort(rdf.TripleSortPOS(pos))
	pos = rdf.DedupTriples(pos)

	return pso, pos
}

func destServers(sSid, oSid int) []int {
	if sSid == oSid {
		return []int{sSid}
	}
	return []int{sSid, oSid}
}

func tripleMsg(t rdf.Triple) transport.TripleMsg {
	return transport.TripleMsg{S: t.S, P: t.P, O: t.O}
}
