// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package archive handles the naming and the on-disk layout of datalogger
// files: decoding of logger file names, dated output trees, consumed and
// quarantined files.
package archive // import "github.com/go-lpc/csi/archive"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

const (
	// Ext is the extension of binary files retrieved from dataloggers.
	Ext = ".bdat"

	ConsumedDir   = "consumed"
	QuarantineDir = "quarantine"
)

var (
	ErrName = errors.New("archive: invalid logger file name")
)

// DefaultTables maps the table code of a logger file name to the table name.
var DefaultTables = map[byte]string{
	'S': "sonic",
	'A': "analog",
	'M': "monitor",
}

// logger file names: 3 characters of site, 1 table code, 5 base-38 digits.
var reName = regexp.MustCompile(`^([a-z0-9]{3})([A-Z])([0-9a-z_-]{5})\.bdat$`)

// Match reports whether fname is the base name of a logger file.
func Match(fname string) bool {
	return reName.MatchString(fname)
}

// Name is a decoded logger file name.
type Name struct {
	Base  string    // base name of the logger file
	Site  string    // station name
	Code  byte      // table code
	Table string    // table name
	Valid time.Time // start of the data in the file, UTC
}

// ParseName decodes the base name of a logger file, using tables to
// resolve the table code. DefaultTables is used if tables is nil.
func ParseName(fname string, tables map[byte]string) (Name, error) {
	if tables == nil {
		tables = DefaultTables
	}

	base := filepath.Base(fname)
	m := reName.FindStringSubmatch(base)
	if m == nil {
		return Name{}, fmt.Errorf("%w %q", ErrName, base)
	}

	code := m[2][0]
	table, ok := tables[code]
	if !ok {
		return Name{}, fmt.Errorf("%w %q: unknown table code %q", ErrName, base, code)
	}

	var ds [5]int
	for i := range ds {
		ds[i] = b38(m[3][i])
	}
	var (
		year  = 2000 + ds[0]
		month = time.Month(ds[1])
		day   = ds[2]
		mins  = ds[3]*38 + ds[4]
	)
	valid := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Add(time.Duration(mins) * time.Minute)
	if month < time.January || month > time.December || mins >= 24*60 ||
		valid.Day() != day || valid.Month() != month {
		return Name{}, fmt.Errorf("%w %q: invalid date", ErrName, base)
	}

	return Name{
		Base:  base,
		Site:  m[1],
		Code:  code,
		Table: table,
		Valid: valid,
	}, nil
}

// b38 decodes a digit of the loggers' base-38 encoding: 0-9, a-z, '-', '_'.
func b38(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 10
	case c == '-':
		return 36
	case c == '_':
		return 37
	}
	panic(fmt.Errorf("archive: invalid base-38 digit %q", c))
}

// Stem returns the name of the converted table, without extension:
// <site>_<table>_<yymmdd>-<hhmm>.
func (n Name) Stem() string {
	return n.Site + "_" + n.Table + "_" + n.Valid.Format("060102-1504")
}

var reStem = regexp.MustCompile(`^([a-z0-9]{3})_([A-Za-z0-9_]+)_([0-9]{6}-[0-9]{4})(\.dat)?$`)

// ParseStem decodes the name of a converted table, as returned by Stem,
// with or without its .dat extension.
// The table code is looked up in tables, DefaultTables if nil, and left
// to zero when unknown.
func ParseStem(fname string, tables map[byte]string) (Name, error) {
	if tables == nil {
		tables = DefaultTables
	}

	base := filepath.Base(fname)
	m := reStem.FindStringSubmatch(base)
	if m == nil {
		return Name{}, fmt.Errorf("%w %q", ErrName, base)
	}
	valid, err := time.ParseInLocation("060102-1504", m[3], time.UTC)
	if err != nil {
		return Name{}, fmt.Errorf("%w %q: invalid date: %v", ErrName, base, err)
	}

	n := Name{
		Base:  base,
		Site:  m[1],
		Table: m[2],
		Valid: valid,
	}
	for code, table := range tables {
		if table == n.Table {
			n.Code = code
			break
		}
	}
	return n, nil
}

// Dir returns the dated directory of the file under root.
func (n Name) Dir(root string) string {
	return filepath.Join(root, n.Valid.Format("2006"), n.Valid.Format("01"), n.Valid.Format("02"))
}

// OutputPath returns the path of the converted table under root,
// without extension.
func (n Name) OutputPath(root string) string {
	return filepath.Join(n.Dir(root), n.Stem())
}

// consumedPath returns where the logger file is stored once processed.
func (n Name) consumedPath(dir string) string {
	return filepath.Join(n.Dir(dir), n.Valid.Format("200601021504")+"_"+n.Base)
}

// List returns the sorted base names of the logger files in dir.
func List(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: could not read directory: %w", err)
	}
	var names []string
	for _, ent := range ents {
		if ent.IsDir() || !Match(ent.Name()) {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Consume moves the processed logger file fname to
// <root>/consumed/YYYY/MM/DD/<YYYYmmddHHMM>_<base>.
func Consume(root, fname string, n Name) (string, error) {
	dst := n.consumedPath(filepath.Join(root, ConsumedDir))
	err := move(dst, fname)
	if err != nil {
		return "", fmt.Errorf("archive: could not consume %q: %w", fname, err)
	}
	return dst, nil
}

// Quarantine moves the logger file fname to <root>/quarantine.
func Quarantine(root, fname string) (string, error) {
	dst := filepath.Join(root, QuarantineDir, filepath.Base(fname))
	err := move(dst, fname)
	if err != nil {
		return "", fmt.Errorf("archive: could not quarantine %q: %w", fname, err)
	}
	return dst, nil
}

// Tidy rearranges the logger files found at the top of the consumed
// directory dir into its dated tree.
// Tidy returns the new paths of the moved files.
func Tidy(dir string, tables map[byte]string) ([]string, error) {
	fnames, err := List(dir)
	if err != nil {
		return nil, err
	}

	var moved []string
	for _, fname := range fnames {
		n, err := ParseName(fname, tables)
		if err != nil {
			return moved, err
		}
		dst := n.consumedPath(dir)
		err = move(dst, filepath.Join(dir, fname))
		if err != nil {
			return moved, fmt.Errorf("archive: could not tidy %q: %w", fname, err)
		}
		moved = append(moved, dst)
	}
	return moved, nil
}

func move(dst, src string) error {
	err := os.MkdirAll(filepath.Dir(dst), 0755)
	if err != nil {
		return err
	}
	return os.Rename(src, dst)
}

var (
	reYear = regexp.MustCompile(`^[0-9]{4}$`)
	reDay  = regexp.MustCompile(`^[0-9]{2}$`)
)

// Dirs returns the sorted YYYY/MM/DD directories under root whose date
// lies within [beg, end].
// Only the calendar dates of beg and end are considered.
func Dirs(root string, beg, end time.Time) ([]string, error) {
	var (
		lo   = datenum(beg)
		hi   = datenum(end)
		dirs []string
	)

	years, err := subdirs(root, reYear)
	if err != nil {
		return nil, err
	}
	for _, y := range years {
		months, err := subdirs(filepath.Join(root, y), reDay)
		if err != nil {
			return nil, err
		}
		for _, m := range months {
			days, err := subdirs(filepath.Join(root, y, m), reDay)
			if err != nil {
				return nil, err
			}
			for _, d := range days {
				v, _ := strconv.Atoi(y + m + d)
				if v < lo || hi < v {
					continue
				}
				dirs = append(dirs, filepath.Join(root, y, m, d))
			}
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func datenum(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

func subdirs(dir string, re *regexp.Regexp) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: could not read directory: %w", err)
	}
	var o []string
	for _, ent := range ents {
		if !ent.IsDir() || !re.MatchString(ent.Name()) {
			continue
		}
		o = append(o, ent.Name())
	}
	return o, nil
}
