// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"errors"
	"fmt"
	"io"
	"path"

	"go-hep.org/x/hep/csvutil"
)

var (
	ErrEmpty = errors.New("store: no data row")
)

// Table is a TOA5 table read back from disk.
type Table struct {
	Env   []string   // environment row
	Names []string   // field names
	Units []string   // field units
	Rows  [][]string // raw data cells
}

// ReadTOA5 reads the TOA5 table stored in fname.
// Tables without any data row are reported as ErrEmpty.
func ReadTOA5(fname string) (*Table, error) {
	tbl, err := csvutil.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("store: could not open TOA5 file %q: %w", fname, err)
	}
	defer tbl.Close()
	tbl.Reader.Comma = ','
	tbl.Reader.FieldsPerRecord = -1

	rows, err := tbl.ReadRows(0, -1)
	if err != nil {
		return nil, fmt.Errorf("store: could not read rows of %q: %w", fname, err)
	}
	defer rows.Close()

	var (
		toa = &Table{}
		i   = 0
	)
	for rows.Next() {
		fields := clone(rows.Fields())
		switch i {
		case 0:
			toa.Env = fields
		case 1:
			toa.Names = fields
		case 2:
			toa.Units = fields
		case 3:
			// processing tags.
		default:
			if len(fields) != len(toa.Names) {
				return nil, fmt.Errorf(
					"store: row %d of %q has %d fields, want %d",
					i, fname, len(fields), len(toa.Names),
				)
			}
			toa.Rows = append(toa.Rows, fields)
		}
		i++
	}
	if err := rows.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("store: could not scan TOA5 file %q: %w", fname, err)
	}

	switch {
	case i < 4 || len(toa.Env) == 0 || toa.Env[0] != "TOA5":
		return nil, fmt.Errorf("store: %q is not a TOA5 file", fname)
	case len(toa.Rows) == 0:
		return nil, fmt.Errorf("store: %q: %w", fname, ErrEmpty)
	}
	return toa, nil
}

func clone(vs []string) []string {
	o := make([]string, len(vs))
	copy(o, vs)
	return o
}

// Column returns the index of the named column, or -1.
func (tbl *Table) Column(name string) int {
	for i, v := range tbl.Names {
		if v == name {
			return i
		}
	}
	return -1
}

// matchAny reports whether name matches any of the glob patterns.
func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
