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
Package loader populates a server's store from the ID-format input
corpus (spec.md 4.1): exchange-load and all-files-load bulk strategies,
attribute loading, and incremental (dynamic) load with a string-id
remap. A Loader owns exactly one server's share of the data - the
caller runs one per server process.
*/
package loader

import (
	"bufio"
	"fmt"
	"io"

	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/files"
	"devt.de/krotik/rhizome/store"
	"devt.de/krotik/rhizome/transport"
)

/*
LoaderEngine is the engine thread id a Loader addresses when it sends or
receives DynamicLoad bundles during ExchangeLoad - the worker loop
proper is not running yet at bulk-load time, so the loader speaks for
engine 0 on its server.
*/
const LoaderEngine = 0

/*
Loader loads id_, attr_, str_index and str_normal files into a Store for one
server of a NumServers-sized cluster.
*/
type Loader struct {
	Store      *store.Store
	Dict       dict.Dictionary
	Files      files.Reader
	Transport  transport.Transport // only required by ExchangeLoad
	Server     int
	NumServers int
	NumEngines int
}

/*
New creates a Loader. transport may be nil if only AllFilesLoad/
LoadAttrFiles/IncrementalLoad are used.
*/
func New(s *store.Store, d dict.Dictionary, f files.Reader, t transport.Transport, server, numServers, numEngines int) *Loader {
	return &Loader{
		Store:      s,
		Dict:       d,
		Files:      f,
		Transport:  t,
		Server:     server,
		NumServers: numServers,
		NumEngines: numEngines,
	}
}

func (l *Loader) open(path string) (io.ReadCloser, error) {
	f, err := l.Files.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return f, nil
}

func wordScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return sc
}
