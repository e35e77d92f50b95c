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
Package cluster ties a running server into the rest of the deployment:
gossip-based membership discovery (Membership, giving partition.HashMod
a live server count instead of a static config constant) and the
in-process Topology/Context a server's engines are addressed through.
*/
package cluster

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/memberlist"
	"github.com/sirupsen/logrus"

	"devt.de/krotik/rhizome/rlog"
)

/*
Membership wraps a hashicorp/memberlist node, grounded on the gossip
membership shown in the pack's weaviate example (usecases/cluster.State)
- the teacher ships no gossip layer of its own, its cluster membership
being HTTP-polled rather than gossiped.
*/
type Membership struct {
	list *memberlist.Memberlist
}

/*
Join creates a Membership bound to name/bindHost:bindPort and, if seeds
is non-empty, joins the existing cluster through them. An empty seeds
list starts a new single-node cluster that others can join later.
*/
func Join(name, bindHost string, bindPort int, seeds []string) (*Membership, error) {
	cfg := memberlist.DefaultLANConfig()
	cfg.Name = name
	if bindHost != "" {
		cfg.BindAddr = bindHost
	}
	if bindPort != 0 {
		cfg.BindPort = bindPort
		cfg.AdvertisePort = bindPort
	}
	cfg.LogOutput = logWriter{}

	list, err := memberlist.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster: creating memberlist node: %w", err)
	}

	m := &Membership{list: list}

	if len(seeds) > 0 {
		if _, err := list.Join(seeds); err != nil {
			return nil, fmt.Errorf("cluster: joining seeds %v: %w", seeds, err)
		}
	}

	return m, nil
}

/*
NumServers is the live member count - the value partition.HashMod's
numServers argument should use once a cluster is actually running,
rather than the static config.NumServer.
*/
func (m *Membership) NumServers() int {
	return m.list.NumMembers()
}

/*
LocalName returns this node's gossip name.
*/
func (m *Membership) LocalName() string {
	return m.list.LocalNode().Name
}

/*
Members returns every known live member's name, sorted - the sort order
doubles as the server-index assignment (spec.md's ServerID config key
should match a member's position in this list).
*/
func (m *Membership) Members() []string {
	mem := m.list.Members()
	names := make([]string, len(mem))
	for i, n := range mem {
		names[i] = n.Name
	}
	sort.Strings(names)
	return names
}

/*
ServerAddr resolves the data-plane address (not the gossip address) of
the member at sorted position server, the same index partition.HashMod
and Topology use. Mirrors the pack's weaviate example's own
Port+1-is-the-data-port convention (its AllHostnames/NodeHostname,
which carry an identical "how can we find out the actual data port"
TODO) rather than inventing a fresh one - a real deployment would want
memberlist node metadata carrying the real port instead.
*/
func (m *Membership) ServerAddr(server int) (string, bool) {
	mem := m.list.Members()
	sort.Slice(mem, func(i, j int) bool { return mem[i].Name < mem[j].Name })

	if server < 0 || server >= len(mem) {
		return "", false
	}
	n := mem[server]
	return fmt.Sprintf("%s:%d", n.Addr.String(), n.Port+1), true
}

/*
Leave gracefully announces departure before Shutdown.
*/
func (m *Membership) Leave(timeout time.Duration) error {
	return m.list.Leave(timeout)
}

/*
Shutdown tears down the gossip node without announcing departure.
*/
func (m *Membership) Shutdown() error {
	return m.list.Shutdown()
}

/*
logWriter forwards memberlist's io.Writer-shaped log lines into rlog,
the same structured sink every other package logs through, rather than
letting memberlist write straight to stderr.
*/
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	rlog.Info(logrus.Fields{"component": "memberlist"}, strings.TrimSpace(string(p)))
	return len(p), nil
}
