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
	"testing"

	"devt.de/krotik/rhizome/query"
)

func TestInProcessSendRecv(t *testing.T) {
	hub := NewInProcessHub()
	a := hub.Endpoint(0, 0, 4)
	b := hub.Endpoint(0, 1, 4)

	q := query.NewQuery(query.Group{}, nil)
	bundle := Bundle{Kind: BundleSPARQLQuery, Query: q}

	if !a.Send(0, 1, bundle) {
		t.Fatal("expected Send to endpoint (0,1) to succeed")
	}

	got, ok := b.TryRecv()
	if !ok {
		t.Fatal("expected a pending bundle at (0,1)")
	}
	if got.Query != q {
		t.Fatal("expected the same query pointer to round-trip")
	}

	if _, ok := b.TryRecv(); ok {
		t.Fatal("expected no second bundle pending")
	}
}

func TestInProcessSendToUnknownEndpointFails(t *testing.T) {
	hub := NewInProcessHub()
	a := hub.Endpoint(0, 0, 4)

	if a.Send(5, 5, Bundle{}) {
		t.Fatal("expected Send to an endpoint that was never created to fail")
	}
}

func TestInProcessSendBackpressure(t *testing.T) {
	hub := NewInProcessHub()
	a := hub.Endpoint(0, 0, 1)
	b := hub.Endpoint(0, 1, 1)

	if !a.Send(0, 1, Bundle{}) {
		t.Fatal("expected the first send to fit the buffer")
	}
	if b.Send(0, 1, Bundle{}) {
		t.Fatal("expected a second send to fail once the single-slot inbox is full")
	}
}

func TestInProcessRemoteReadUnsupported(t *testing.T) {
	hub := NewInProcessHub()
	a := hub.Endpoint(0, 0, 1)

	if _, err := a.RemoteRead(context.Background(), 0, 1, 0, 8); err != ErrRemoteReadUnsupported {
		t.Fatalf("expected ErrRemoteReadUnsupported, got %v", err)
	}
}
