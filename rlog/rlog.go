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
Package rlog provides the swappable logging hooks used throughout the
engine and cluster code. Like the cluster manager's Logger func vars,
components call the package-level Info/Debug functions rather than a
passed-in logger object; tests and embedders may replace them wholesale.

The default implementation is backed by logrus instead of a bare
log.Print - it gives every call site structured fields (server/engine
ids, query ids) for free without changing the call-site shape.
*/
package rlog

import (
	"github.com/sirupsen/logrus"
)

/*
Logger is a function which processes a log message with structured
fields attached.
*/
type Logger func(fields logrus.Fields, msg string)

var base = logrus.New()

/*
Info is called for informational messages (server start/stop, load
timings, housekeeping summaries).
*/
var Info = Logger(func(fields logrus.Fields, msg string) {
	base.WithFields(fields).Info(msg)
})

/*
Debug is called for verbose diagnostics (per-step query tracing, worker
loop snoozing); disabled by default.
*/
var Debug = Logger(func(fields logrus.Fields, msg string) {
	base.WithFields(fields).Debug(msg)
})

/*
Warn is called for recoverable problems (unknown ID during incremental
load, attribute type mismatch).
*/
var Warn = Logger(func(fields logrus.Fields, msg string) {
	base.WithFields(fields).Warn(msg)
})

/*
Error is called for failed operations that do not halt the process.
*/
var Error = Logger(func(fields logrus.Fields, msg string) {
	base.WithFields(fields).Error(msg)
})

/*
Null discards a log message; assign to Debug to silence it, matching the
teacher's LogNull idiom.
*/
func Null(fields logrus.Fields, msg string) {}

/*
SetLevel adjusts the verbosity of the base logger (e.g. logrus.DebugLevel
to enable Debug output).
*/
func SetLevel(level logrus.Level) {
	base.SetLevel(level)
}

/*
SetOutputJSON switches the base logger to structured JSON output, useful
when a cluster member's logs are shipped off-box.
*/
func SetOutputJSON() {
	base.SetFormatter(&logrus.JSONFormatter{})
}
