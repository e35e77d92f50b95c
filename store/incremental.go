/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import "devt.de/krotik/rhizome/rdf"

/*
InsertTripleOut inserts the OUT side of a single triple into the live
store, preserving the adjacency-list ordering invariant. checkDup
enables the optional duplicate check mentioned in spec.md 4.1's
incremental load.
*/
func (s *Store) InsertTripleOut(t rdf.Triple, checkDup bool) {
	s.appendSIDList(key{t.S, t.P, rdf.OUT}, []uint64{t.O}, checkDup)
	s.appendSIDList(key{t.S, rdf.PredicateID, rdf.OUT}, []uint64{t.P}, true)
}

/*
InsertTripleIn inserts the IN side of a single triple into the live
store.
*/
func (s *Store) InsertTripleIn(t rdf.Triple, checkDup bool) {
	s.appendSIDList(key{t.O, t.P, rdf.IN}, []uint64{t.S}, checkDup)
	s.appendSIDList(key{t.O, rdf.PredicateID, rdf.IN}, []uint64{t.P}, true)
}

/*
InsertAttrTriple inserts one attribute triple into the live store. This
completes the attribute insertion path which the reference implementation
left as a TODO in its incremental-load routine (spec.md 9, Open Question
d).
*/
func (s *Store) InsertAttrTriple(t rdf.AttrTriple) {
	s.insertAttrValue(t.S, t.A, t.V)
}
