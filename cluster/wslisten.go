/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cluster

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"devt.de/krotik/rhizome/rlog"
	"devt.de/krotik/rhizome/transport"
)

/*
wsUpgrader mirrors the teacher's api/v1 sockUpgrader (ecal-sock.go):
same ReadBufferSize/WriteBufferSize, a rhizome-specific subprotocol name
in place of "ecal-sock".
*/
var wsUpgrader = websocket.Upgrader{
	Subprotocols:    []string{"rhizome-transport"},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

/*
ListenWSPath is the fixed HTTP path peers dial to establish a transport
connection; the dialing peer's own server id travels as the "server"
query parameter.
*/
const ListenWSPath = "/rhizome/transport"

/*
ListenWS starts an HTTP server accepting inbound transport connections
on addr and registers each one with hub via AddPeer once upgraded. The
returned *http.Server is not yet serving - call Serve in a goroutine and
Shutdown it on teardown.
*/
func ListenWS(hub *transport.WSHub, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc(ListenWSPath, func(w http.ResponseWriter, r *http.Request) {
		peerServer, err := strconv.Atoi(r.URL.Query().Get("server"))
		if err != nil {
			http.Error(w, "missing or invalid server parameter", http.StatusBadRequest)
			return
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			rlog.Warn(logrus.Fields{"remote": r.RemoteAddr}, fmt.Sprintf("websocket upgrade failed: %v", err))
			return
		}

		rlog.Info(logrus.Fields{"peerServer": peerServer, "remote": r.RemoteAddr}, "accepted transport connection")
		hub.AddPeer(peerServer, conn)
	})

	return &http.Server{Addr: addr, Handler: mux}
}

/*
DialWS dials peerAddr's ListenWS endpoint, identifying localServer as the
caller, and registers the resulting connection with hub under
peerServer. Mirrors the teacher's own websocket.DefaultDialer.Dial use in
api/v1's subscription/ecal-sock tests, generalized from a test helper
into a real client.
*/
func DialWS(hub *transport.WSHub, peerAddr string, localServer, peerServer int) error {
	u := url.URL{Scheme: "ws", Host: peerAddr, Path: ListenWSPath}
	q := u.Query()
	q.Set("server", strconv.Itoa(localServer))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("cluster: dialing %s: %w", u.String(), err)
	}

	hub.AddPeer(peerServer, conn)
	return nil
}
