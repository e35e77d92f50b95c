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

	"github.com/sirupsen/logrus"

	"devt.de/krotik/rhizome/partition"
	"devt.de/krotik/rhizome/rdf"
	"devt.de/krotik/rhizome/rlog"
)

/*
RemapTable translates an incremental-load batch's own ids (minted by
whatever produced the batch, independent from this cluster's running
dictionary) into this cluster's ids, built from the batch's str_index/
str_normal extension files (mirrors the reference's id2id map populated
by dynamic_load_mappings).
*/
type RemapTable map[uint64]uint64

/*
Convert returns id's cluster-local id, or id unchanged if it has no
entry (mirrors the reference's convert_sid, a no-op when the id is not
in id2id).
*/
func (rt RemapTable) Convert(id uint64) uint64 {
	if v, ok := rt[id]; ok {
		return v
	}
	return id
}

/*
BuildRemapTable reads every str_index/str_normal file under dir and
resolves each (str, batch-local id) pair against the running Dictionary:
an already-known string maps to its existing cluster id, an unseen one
is interned fresh. The reference keeps index ids and normal ids in two
counters off one String_Server; Dictionary is a single id space (package
dict's doc comment), so here both file kinds fold into one Lookup call -
a deliberate simplification over the reference's dual-namespace counters.
*/
func (l *Loader) BuildRemapTable(dir string) (RemapTable, error) {
	remap := make(RemapTable)

	for _, prefix := range []string{"str_index", "str_normal"} {
		paths, err := l.Files.List(dir, prefix)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}

		for _, path := range paths {
			if err := l.scanStrIDPairs(path, func(str string, oldID uint64) error {
				remap[oldID] = l.Dict.Lookup(str)
				return nil
			}); err != nil {
				return nil, err
			}
		}
	}

	return remap, nil
}

/*
IncrementalLoad applies one dynamic-load batch under dir: builds the
id2id remap, then inserts every triple and attribute triple this server
owns (mirrors the reference's dynamic_load_data). checkDup enables
duplicate suppression on insert (spec.md 4.2's InsertTripleOut/In
checkDup parameter).

Unlike the reference - whose attribute half of dynamic_load_data ends in
a commented-out `gstore.insert_triple_attribute` call and only ever
increments a counter - this inserts the attribute triple for real via
Store.InsertAttrTriple, completing that TODO.
*/
func (l *Loader) IncrementalLoad(ctx context.Context, dir string, checkDup bool) (int64, error) {
	remap, err := l.BuildRemapTable(dir)
	if err != nil {
		return 0, err
	}

	dfiles, err := l.Files.List(dir, "id_")
	if err != nil {
		return 0, fmt.Errorf("loader: %w", err)
	}
	afiles, err := l.Files.List(dir, "attr_")
	if err != nil {
		return 0, fmt.Errorf("loader: %w", err)
	}

	if len(dfiles) == 0 && len(afiles) == 0 {
		rlog.Warn(logrus.Fields{"server": l.Server, "dir": dir}, "no incremental load files found")
		return 0, nil
	}

	var count int64

	for _, path := range dfiles {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := l.scanTriples(path, func(t rdf.Triple) error {
			nt := rdf.Triple{
				S: remap.Convert(t.S),
				P: remap.Convert(t.P),
				O: remap.Convert(t.O),
			}
			l.warnUnknown(nt.S)
			l.warnUnknown(nt.P)
			l.warnUnknown(nt.O)

			if partition.HashMod(nt.S, l.NumServers) == l.Server {
				l.Store.InsertTripleOut(nt, checkDup)
				count++
			}
			if partition.HashMod(nt.O, l.NumServers) == l.Server {
				l.Store.InsertTripleIn(nt, checkDup)
				count++
			}
			return nil
		}); err != nil {
			return count, err
		}
	}

	for _, path := range afiles {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := l.scanAttrTriples(path, func(at rdf.AttrTriple) error {
			nat := rdf.AttrTriple{
				S: remap.Convert(at.S),
				A: remap.Convert(at.A),
				V: at.V,
			}
			l.warnUnknown(nat.S)
			l.warnUnknown(nat.A)

			if partition.HashMod(nat.S, l.NumServers) == l.Server {
				l.Store.InsertAttrTriple(nat)
				count++
			}
			return nil
		}); err != nil {
			return count, err
		}
	}

	rlog.Info(logrus.Fields{"server": l.Server, "dir": dir, "inserted": count}, "incremental load complete")
	return count, nil
}

func (l *Loader) warnUnknown(id uint64) {
	if !l.Dict.Exist(id) {
		rlog.Warn(logrus.Fields{"server": l.Server, "id": id}, "unknown id in incremental load batch")
	}
}
