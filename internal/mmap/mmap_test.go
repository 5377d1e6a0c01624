// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestOpen(t *testing.T) {
	tmp := t.TempDir()
	fname := filepath.Join(tmp, "data.bin")
	want := []byte("TOB1,station\n\x00\x01\x02\x03")
	err := os.WriteFile(fname, want, 0644)
	if err != nil {
		t.Fatalf("could not create file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open file: %+v", err)
	}
	defer h.Close()

	if got, want := h.Len(), len(want); got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	if got, want := h.At(1), byte('O'); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	got, err := io.ReadAll(h.Reader())
	if err != nil {
		t.Fatalf("could not read mapped file: %+v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("invalid content:\ngot= %q\nwant=%q", got, want)
	}

	_, err = h.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not close handle: %+v", err)
	}

	_, err = h.ReadAt(make([]byte, 1), 0)
	if !errors.Is(err, errClosed) {
		t.Fatalf("invalid read-at error: %+v", err)
	}
}

func TestOpenEmpty(t *testing.T) {
	tmp := t.TempDir()
	fname := filepath.Join(tmp, "empty.bin")
	err := os.WriteFile(fname, nil, 0644)
	if err != nil {
		t.Fatalf("could not create file: %+v", err)
	}

	h, err := Open(fname)
	if err != nil {
		t.Fatalf("could not open empty file: %+v", err)
	}
	defer h.Close()

	if got, want := h.Len(), 0; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	n, err := h.ReadAt(make([]byte, 4), 0)
	if !errors.Is(err, io.EOF) || n != 0 {
		t.Fatalf("invalid read-at: n=%d, err=%+v", n, err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("invalid error: %+v", err)
	}
}
