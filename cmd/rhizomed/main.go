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
rhizomed is the process entry point for one rhizome cluster member: it
loads configuration, builds the local graph store and dictionary, bulk-
loads the input corpus, wires every local engine's worker loop, and
joins cluster membership - no CLI/REPL or query-submission surface, both
declared out of scope (spec.md 1). Embedding applications reach the
running engines through package engine/cluster directly, dispatching
queries onto a Worker's own queue and receiving results through its
OnComplete hook.

Grounded on the teacher's eliasdb.go main(): a package-level ConfigFile
variable, print/fatal logging before structured logging is wired up, and
a graceful-shutdown wait at the end - with the HTTPS/REPL-specific
pieces this spec's Non-goals exclude removed.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"devt.de/krotik/rhizome/cluster"
	"devt.de/krotik/rhizome/config"
	"devt.de/krotik/rhizome/dict"
	"devt.de/krotik/rhizome/driver"
	"devt.de/krotik/rhizome/engine"
	"devt.de/krotik/rhizome/executor"
	"devt.de/krotik/rhizome/files"
	"devt.de/krotik/rhizome/loader"
	"devt.de/krotik/rhizome/rlog"
	"devt.de/krotik/rhizome/store"
	"devt.de/krotik/rhizome/transport"
)

/*
ConfigFile is the config file rhizomed reads at startup (JSON or YAML,
see config.Load) - mirrors the teacher's own package-level ConfigFile
variable, settable by embedders/tests without touching flag parsing.
*/
var ConfigFile = "rhizome.config.json"

func main() {
	flag.StringVar(&ConfigFile, "config", ConfigFile, "configuration file (JSON or YAML)")
	flag.Parse()

	if err := config.Load(ConfigFile); err != nil {
		fmt.Fprintln(os.Stderr, "rhizomed: loading configuration:", err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		rlog.Error(nil, err.Error())
		os.Exit(1)
	}
}

/*
hub is the common shape transport.InProcessHub and transport.WSHub both
satisfy - rhizomed only ever needs to mint one endpoint per local engine,
never anything carrier-specific.
*/
type hub interface {
	Endpoint(server, engine, bufSize int) transport.Transport
}

func run() error {
	server := int(config.Int(config.ServerID))
	numServers := int(config.Int(config.NumServer))
	numEngines := int(config.Int(config.NumEngines))

	rlog.Info(logrus.Fields{"server": server, "numServers": numServers, "numEngines": numEngines},
		"starting rhizome server")

	numBuckets := 1 << 16
	versatile := false
	gstore := store.New(numBuckets, versatile)
	dictionary := dict.NewMemory()

	h, httpServer, membership, err := wireTransport(server, numServers)
	if err != nil {
		return fmt.Errorf("wiring transport: %w", err)
	}

	if err := bulkLoad(gstore, dictionary, h, server, numServers, numEngines); err != nil {
		return fmt.Errorf("bulk load: %w", err)
	}

	topology := cluster.NewTopology(numServers, numEngines)
	fetcher := &cluster.RemoteFetcher{PeerEngines: func(int) int { return numEngines }}

	workers := make([]*engine.Worker, numEngines)
	for i := 0; i < numEngines; i++ {
		t := h.Endpoint(server, i, 256)

		ectx := &executor.Context{
			Store:       gstore,
			Fetcher:     fetcher,
			Thread:      i,
			Server:      server,
			NumServers:  numServers,
			NumEngines:  numEngines,
			EnableVAttr: config.Bool(config.EnableVattr),
		}

		d := &driver.Driver{
			Executor:      ectx,
			Dictionary:    dictionary,
			Replies:       driver.NewReplyMap(),
			Coder:         driver.NewCoder(server, i),
			Server:        server,
			Thread:        i,
			NumServers:    numServers,
			NumEngines:    numEngines,
			RDMAEnabled:   config.Bool(config.UseRDMA),
			RDMAThreshold: int(config.Int(config.RDMAThreshold)),
		}

		w := engine.NewWorker(server, i, d, t)
		w.EnableWorkStealing = config.Bool(config.EnableWorkstealing)
		w.OnEdgeFetch = cluster.LocalAnswer(gstore)

		workers[i] = w
		topology.Set(server, i, w)
	}
	fetcher.Workers = workers

	for i, w := range workers {
		w.Neighbor = workers[(i+1)%numEngines]
	}

	ctx, cancel := context.WithCancel(context.Background())

	for _, w := range workers {
		go w.Run(ctx)
	}

	if httpServer != nil {
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				rlog.Error(nil, fmt.Sprintf("transport listener: %v", err))
			}
		}()
	}

	rlog.Info(nil, "rhizome server running, waiting for shutdown signal")
	waitForShutdown()

	cancel()
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}
	if membership != nil {
		membership.Leave(5 * time.Second)
		membership.Shutdown()
	}

	rlog.Info(nil, "rhizome server stopped")
	return nil
}

/*
wireTransport builds the hub every local engine's Transport is carved
out of: an in-process hub (and no listener) for a single-server
deployment, or a websocket hub with a listener for a multi-server one.
In the websocket case, when config.Seeds is non-empty, the server joins
cluster membership through those seeds and dials every other server
index whose address membership already knows; with no seeds it only
listens. A single process has nothing to gossip about.
*/
func wireTransport(server, numServers int) (hub, *http.Server, *cluster.Membership, error) {
	if numServers <= 1 {
		return transport.NewInProcessHub(), nil, nil, nil
	}

	wsHub := transport.NewWSHub()

	listenAddr := fmt.Sprintf("%s:%d", config.Str(config.ListenHost), config.Int(config.ListenPort))
	httpServer := cluster.ListenWS(wsHub, listenAddr)

	var membership *cluster.Membership
	if seeds := config.Seeds(); len(seeds) > 0 {
		m, err := cluster.Join(fmt.Sprintf("server-%d", server), config.Str(config.ListenHost), int(config.Int(config.ListenPort))+1, seeds)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("joining cluster: %w", err)
		}
		membership = m

		for peer := 0; peer < numServers; peer++ {
			if peer == server {
				continue
			}
			addr, ok := m.ServerAddr(peer)
			if !ok {
				continue
			}
			if err := cluster.DialWS(wsHub, addr, server, peer); err != nil {
				rlog.Warn(logrus.Fields{"peer": peer}, fmt.Sprintf("dialing peer: %v", err))
			}
		}
	}

	return wsHub, httpServer, membership, nil
}

/*
bulkLoad runs the configured loader passes over config.InputFolder:
exchange-load (distributed, RDMA/message exchange) or all-files-load
(every server reads everything, keeps only what it owns), chosen by
config.UseRDMA, followed by attribute-file loading which always runs in
all-files-load style (spec.md 4.1).
*/
func bulkLoad(gstore *store.Store, dictionary dict.Dictionary, h hub, server, numServers, numEngines int) error {
	dir := config.Str(config.InputFolder)
	if dir == "" {
		rlog.Info(nil, "no input folder configured, skipping bulk load")
		return nil
	}

	reader := &files.Local{}
	loadTransport := h.Endpoint(server, loader.LoaderEngine, 256) // the engine id every peer's ExchangeLoad sends to; worker 0 reuses this inbox afterwards
	l := loader.New(gstore, dictionary, reader, loadTransport, server, numServers, numEngines)

	ctx := context.Background()

	var (
		n   int
		err error
	)
	if config.Bool(config.UseRDMA) {
		n, err = l.ExchangeLoad(ctx, dir)
	} else {
		n, err = l.AllFilesLoad(ctx, dir)
	}
	if err != nil {
		return fmt.Errorf("loading triples from %s: %w", dir, err)
	}

	attrN, err := l.LoadAttrFiles(ctx, dir)
	if err != nil {
		return fmt.Errorf("loading attributes from %s: %w", dir, err)
	}

	rlog.Info(logrus.Fields{"triples": n, "attrs": attrN}, "bulk load complete")
	return nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
