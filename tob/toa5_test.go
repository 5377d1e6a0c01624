// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"errors"
	"strings"
	"testing"
)

var errDiskFull = errors.New("disk full")

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errDiskFull }

func TestWriterErrors(t *testing.T) {
	w := NewWriter(failWriter{}, TimeMinimal)

	err := w.WriteHeader([4][]string{{"TOA5"}, {"a"}, {""}, {""}})
	if err != nil {
		t.Fatalf("buffered header should not fail: %+v", err)
	}

	err = w.Flush()
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, errDiskFull)
	}
	if got, want := err.Error(), "tob: could not flush TOA5 table"; !strings.HasPrefix(got, want) {
		t.Fatalf("invalid error message: got=%q, want prefix %q", got, want)
	}

	// errors are sticky.
	err = w.Write([]Value{IntValue(1)})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("invalid sticky error: got=%+v, want=%v", err, errDiskFull)
	}
}

func TestParseTimeFormatError(t *testing.T) {
	_, err := ParseTimeFormat("fortnight")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(), `tob: unknown time format "fortnight"`; got != want {
		t.Fatalf("invalid error: got=%q, want=%q", got, want)
	}
}
