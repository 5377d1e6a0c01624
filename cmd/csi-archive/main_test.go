// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/csi/archive"
)

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	for _, fname := range []string{"hamSg8muk.bdat", "stoMk1100.bdat", "README"} {
		err := os.WriteFile(filepath.Join(dir, fname), nil, 0644)
		if err != nil {
			t.Fatalf("could not create %q: %+v", fname, err)
		}
	}

	out := new(strings.Builder)
	n, err := process(out, dir, archive.DefaultTables)
	if err != nil {
		t.Fatalf("could not tidy directory: %+v", err)
	}
	if got, want := n, 2; got != want {
		t.Fatalf("invalid number of moved files: got=%d, want=%d", got, want)
	}

	want := strings.Join([]string{
		filepath.Join(dir, "2016", "08", "22", "201608221920_hamSg8muk.bdat"),
		filepath.Join(dir, "2020", "01", "01", "202001010000_stoMk1100.bdat"),
	}, "\n") + "\n"
	if got := out.String(); got != want {
		t.Fatalf("invalid output:\ngot:\n%s\nwant:\n%s", got, want)
	}

	for _, fname := range []string{
		filepath.Join(dir, "2016", "08", "22", "201608221920_hamSg8muk.bdat"),
		filepath.Join(dir, "README"),
	} {
		if _, err := os.Stat(fname); err != nil {
			t.Fatalf("missing file: %+v", err)
		}
	}

	n, err = process(out, dir, archive.DefaultTables)
	if err != nil {
		t.Fatalf("could not tidy directory again: %+v", err)
	}
	if n != 0 {
		t.Fatalf("tidy is not idempotent: %d file(s) moved", n)
	}
}

func TestProcessMissing(t *testing.T) {
	_, err := process(new(strings.Builder), filepath.Join(t.TempDir(), "missing"), nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
}
