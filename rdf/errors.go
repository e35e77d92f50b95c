/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package rdf

import (
	"errors"
	"fmt"
)

/*
Error is a rhizome-related error carrying a stable Type for equality
checks plus human-readable detail.
*/
type Error struct {
	Type   error
	Detail string
}

/*
Error returns a human-readable string representation of this error.
*/
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (%v)", e.Type, e.Detail)
	}
	return e.Type.Error()
}

/*
Unwrap exposes the underlying error type for errors.Is/As.
*/
func (e *Error) Unwrap() error {
	return e.Type
}

/*
Common rhizome error types.
*/
var (
	ErrInvalidData  = errors.New("Invalid data")
	ErrLoad         = errors.New("Failed to load data")
	ErrStagingFull  = errors.New("Staging buffer overflow")
	ErrUnknownID    = errors.New("Unknown ID")
	ErrAttrType     = errors.New("Unsupported attribute value type")
	ErrReading      = errors.New("Could not read graph information")
	ErrWriting      = errors.New("Could not write graph information")

	// ErrUnsupportedPattern marks a triple pattern shape the step executor
	// has no join kernel for (reference: execute_one_step's assert(false)
	// branches - const->const, const->known, and anything starting from
	// an unbound subject are query-planning errors, not runtime faults).
	ErrUnsupportedPattern = errors.New("Unsupported triple pattern shape")
)
