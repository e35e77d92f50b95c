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
	"fmt"
	"strconv"

	"devt.de/krotik/rhizome/rdf"
)

/*
scanTriples streams whitespace-separated "s p o" triples from path,
mirroring the reference's `file >> s >> p >> o` token loop - triples may
span any number of lines, not just one per line.
*/
func (l *Loader) scanTriples(path string, fn func(rdf.Triple) error) error {
	f, err := l.open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := wordScanner(f)
	for sc.Scan() {
		s, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if !sc.Scan() {
			return fmt.Errorf("loader: scanning %s: truncated triple", path)
		}
		p, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if !sc.Scan() {
			return fmt.Errorf("loader: scanning %s: truncated triple", path)
		}
		o, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if err := fn(rdf.Triple{S: s, P: p, O: o}); err != nil {
			return err
		}
	}
	return sc.Err()
}

/*
scanAttrTriples streams "s a type value" attribute records from path,
dispatching the value's parse on type (1 int32, 2 float32, 3 float64)
exactly like the reference's load_attr_from_allfiles switch.
*/
func (l *Loader) scanAttrTriples(path string, fn func(rdf.AttrTriple) error) error {
	f, err := l.open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := wordScanner(f)
	for sc.Scan() {
		s, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if !sc.Scan() {
			return fmt.Errorf("loader: scanning %s: truncated attribute", path)
		}
		a, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if !sc.Scan() {
			return fmt.Errorf("loader: scanning %s: truncated attribute", path)
		}
		typ, err := strconv.Atoi(sc.Text())
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if !sc.Scan() {
			return fmt.Errorf("loader: scanning %s: truncated attribute", path)
		}

		var v rdf.AttrValue
		switch typ {
		case 1:
			n, err := strconv.ParseInt(sc.Text(), 10, 32)
			if err != nil {
				return fmt.Errorf("loader: scanning %s: %w", path, err)
			}
			v = rdf.IntValue(int32(n))
		case 2:
			n, err := strconv.ParseFloat(sc.Text(), 32)
			if err != nil {
				return fmt.Errorf("loader: scanning %s: %w", path, err)
			}
			v = rdf.FloatValue(float32(n))
		case 3:
			n, err := strconv.ParseFloat(sc.Text(), 64)
			if err != nil {
				return fmt.Errorf("loader: scanning %s: %w", path, err)
			}
			v = rdf.DoubleValue(n)
		default:
			return fmt.Errorf("loader: scanning %s: unsupported attribute value type %d", path, typ)
		}

		if err := fn(rdf.AttrTriple{S: s, A: a, V: v}); err != nil {
			return err
		}
	}
	return sc.Err()
}

/*
scanStrIDPairs streams "str id" pairs from a str_index/str_normal
extension file.
*/
func (l *Loader) scanStrIDPairs(path string, fn func(str string, id uint64) error) error {
	f, err := l.open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := wordScanner(f)
	for sc.Scan() {
		str := sc.Text()
		if !sc.Scan() {
			return fmt.Errorf("loader: scanning %s: truncated mapping for %q", path, str)
		}
		id, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("loader: scanning %s: %w", path, err)
		}
		if err := fn(str, id); err != nil {
			return err
		}
	}
	return sc.Err()
}
