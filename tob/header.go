// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// FileHeader is the ASCII header of a binary table file.
type FileHeader struct {
	Format Format
	Env    []string // environment: format tag, station, model, serial, OS, program, ...
	Table  TableInfo
	Names  []string
	Units  []string
	Procs  []string // processing tags
	Types  []string // type declarations

	size int64 // number of header bytes
}

// TableInfo describes the frame geometry of a TOB3 file.
type TableInfo struct {
	Name       string
	Interval   time.Duration // non-timestamped record interval
	FrameSize  int           // major frame size, in bytes
	Intended   int           // intended number of records in the file
	Validation uint16        // frame validation stamp
	Resolution time.Duration // sub-second resolution of frame timestamps
}

// Size returns the number of bytes the ASCII header occupies.
func (hdr *FileHeader) Size() int64 { return hdr.size }

var intervalUnits = map[string]time.Duration{
	"NSEC": time.Nanosecond,
	"USEC": time.Microsecond,
	"MSEC": time.Millisecond,
	"SEC":  time.Second,
	"MIN":  time.Minute,
	"HR":   time.Hour,
	"DAY":  24 * time.Hour,
}

var resolutions = map[string]time.Duration{
	"Sec100Usec": 100 * time.Microsecond,
	"Sec10Usec":  10 * time.Microsecond,
	"SecUSec":    time.Microsecond,
}

// readRows reads n header rows from r.
func readRows(r *bufio.Reader, n int) ([][]string, int64, error) {
	var (
		rows = make([][]string, 0, n)
		size int64
	)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		size += int64(len(line))
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return rows, size, xerrors.Errorf("tob: could not read header row %d/%d: %v: %w", i+1, n, err, ErrHeader)
		}
		rows = append(rows, splitRow(line))
	}
	return rows, size, nil
}

// splitRow splits a header line into its fields.
// Non-ASCII bytes and quotes are dropped, line endings removed.
func splitRow(line string) []string {
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c >= 0x80, c == '"', c == '\r', c == '\n':
			continue
		}
		b.WriteByte(c)
	}
	return strings.Split(b.String(), ",")
}

// parseHeader builds a file header from the raw rows, the last four of
// which are the field names, units, processing tags and types.
func parseHeader(rows [][]string, size int64) (*FileHeader, error) {
	n := len(rows)
	hdr := &FileHeader{
		Format: formatFrom(rows[0][0]),
		Env:    rows[0],
		Names:  rows[n-4],
		Units:  rows[n-3],
		Procs:  rows[n-2],
		Types:  rows[n-1],
		size:   size,
	}
	for i, tok := range hdr.Types {
		hdr.Types[i] = strings.ReplaceAll(tok, " ", "")
	}
	if len(hdr.Types) == 1 && hdr.Types[0] == "" {
		return nil, xerrors.Errorf("tob: no field declared: %w", ErrHeader)
	}

	want := len(hdr.Names)
	for _, row := range []struct {
		name string
		n    int
	}{
		{"units", len(hdr.Units)},
		{"processing", len(hdr.Procs)},
		{"types", len(hdr.Types)},
	} {
		if row.n != want {
			return nil, xerrors.Errorf(
				"tob: header %s row has %d columns, names row has %d: %w",
				row.name, row.n, want, ErrColumns,
			)
		}
	}
	return hdr, nil
}

// ReadTOB1Header reads the 5 rows of a TOB1 header.
func ReadTOB1Header(r *bufio.Reader) (*FileHeader, error) {
	rows, size, err := readRows(r, 5)
	if err != nil {
		return nil, err
	}
	if tag := rows[0][0]; tag != "TOB1" {
		return nil, xerrors.Errorf("tob: invalid format tag %q (want TOB1): %w", tag, ErrFormat)
	}
	return parseHeader(rows, size)
}

// ReadTOB3Header reads the 6 rows of a TOB3 header.
func ReadTOB3Header(r *bufio.Reader) (*FileHeader, error) {
	rows, size, err := readRows(r, 6)
	if err != nil {
		return nil, err
	}
	if tag := rows[0][0]; tag != "TOB3" {
		return nil, xerrors.Errorf("tob: invalid format tag %q (want TOB3): %w", tag, ErrFormat)
	}
	hdr, err := parseHeader(rows, size)
	if err != nil {
		return nil, err
	}
	hdr.Table, err = parseTableInfo(rows[1])
	if err != nil {
		return nil, err
	}
	return hdr, nil
}

func parseTableInfo(row []string) (TableInfo, error) {
	var tbl TableInfo
	if len(row) < 6 {
		return tbl, xerrors.Errorf("tob: table row has %d columns, want at least 6: %w", len(row), ErrHeader)
	}
	tbl.Name = row[0]

	var err error
	tbl.Interval, err = ParseInterval(row[1])
	if err != nil {
		return tbl, err
	}

	tbl.FrameSize, err = strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil || tbl.FrameSize <= frameHeaderSize+frameFooterSize {
		return tbl, xerrors.Errorf("tob: invalid frame size %q: %w", row[2], ErrHeader)
	}

	tbl.Intended, err = strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return tbl, xerrors.Errorf("tob: invalid table size %q: %w", row[3], ErrHeader)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(row[4]), 10, 16)
	if err != nil {
		return tbl, xerrors.Errorf("tob: invalid validation stamp %q: %w", row[4], ErrHeader)
	}
	tbl.Validation = uint16(v)

	res, ok := resolutions[strings.TrimSpace(row[5])]
	if !ok {
		return tbl, xerrors.Errorf("tob: unknown frame time resolution %q: %w", row[5], ErrHeader)
	}
	tbl.Resolution = res

	return tbl, nil
}

// ParseInterval parses a record interval such as "1 SEC" or "100 MSEC".
func ParseInterval(s string) (time.Duration, error) {
	val, unit, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok {
		return 0, xerrors.Errorf("tob: invalid interval %q: %w", s, ErrHeader)
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, xerrors.Errorf("tob: invalid interval value %q: %w", s, ErrHeader)
	}
	u, ok := intervalUnits[strings.ToUpper(strings.TrimSpace(unit))]
	if !ok {
		return 0, xerrors.Errorf("tob: invalid interval unit %q: %w", s, ErrHeader)
	}
	return time.Duration(n) * u, nil
}

// Layout describes the binary layout of the records of a file.
type Layout struct {
	Fields []Field
	Stride int // size of a record, in bytes

	// Stamped is set for TOB1 records starting with SECONDS and
	// NANOSECONDS fields, which are collapsed into a single timestamp.
	Stamped bool
}

// NewLayout derives the record layout from a file header.
func NewLayout(hdr *FileHeader) (*Layout, error) {
	lay := &Layout{Fields: make([]Field, len(hdr.Types))}
	for i, decl := range hdr.Types {
		f, err := ParseField(hdr.Names[i], decl)
		if err != nil {
			return nil, err
		}
		lay.Fields[i] = f
		lay.Stride += f.Size
	}

	lay.Stamped = hdr.stamped()
	return lay, nil
}

// decode decodes the record p into dst.
func (lay *Layout) decode(dst []Value, p []byte) ([]Value, error) {
	var (
		beg = 0
		n0  = len(dst)
	)
	for _, f := range lay.Fields {
		v, err := f.Decode(p[min(beg, len(p)):])
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
		beg += f.Size
	}
	if lay.Stamped {
		ts := stamp(uint32(dst[n0].Int), uint32(dst[n0+1].Int))
		dst[n0] = TimeValue(ts)
		dst = append(dst[:n0+1], dst[n0+2:]...)
	}
	return dst, nil
}

// TOA5 returns the 4 rows of the TOA5 header describing the output of
// a decoded file named origin.
func (hdr *FileHeader) TOA5(origin string) [4][]string {
	var rows [4][]string
	switch hdr.Format {
	case FormatTOB3:
		env := clone(hdr.Env)
		env[0] = "TOA5"
		env[len(env)-1] = hdr.Table.Name
		rows[0] = append(env, origin)
		rows[1] = append([]string{"TIMESTAMP", "RECORD"}, hdr.Names...)
		rows[2] = append([]string{"TS", "RN"}, hdr.Units...)
		rows[3] = append([]string{"", ""}, hdr.Procs...)
	default:
		env := clone(hdr.Env)
		env[0] = "TOA5"
		rows[0] = append(env, origin)
		rows[1] = clone(hdr.Names)
		rows[2] = clone(hdr.Units)
		rows[3] = clone(hdr.Procs)
		if hdr.stamped() {
			rows[1] = rows[1][1:]
			rows[2] = rows[2][1:]
			rows[3] = rows[3][1:]
			rows[1][0] = "TIMESTAMP"
			rows[2][0] = "TS"
		}
	}
	return rows
}

func (hdr *FileHeader) stamped() bool {
	return hdr.Format == FormatTOB1 &&
		len(hdr.Names) >= 2 && len(hdr.Types) >= 2 &&
		hdr.Names[0] == "SECONDS" && hdr.Names[1] == "NANOSECONDS" &&
		hdr.Types[0] == "ULONG" && hdr.Types[1] == "ULONG"
}

func clone(vs []string) []string {
	o := make([]string, len(vs))
	copy(o, vs)
	return o
}
