// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bufio"
	"io"

	"golang.org/x/xerrors"
)

// Writer writes TOA5 tables.
type Writer struct {
	w   *bufio.Writer
	tf  TimeFormat
	buf []byte
	err error
}

// NewWriter returns a TOA5 writer formatting timestamps with tf.
func NewWriter(w io.Writer, tf TimeFormat) *Writer {
	return &Writer{
		w:   bufio.NewWriter(w),
		tf:  tf,
		buf: make([]byte, 0, 512),
	}
}

// WriteHeader writes the 4 header rows, every cell quoted.
func (w *Writer) WriteHeader(rows [4][]string) error {
	for _, row := range rows {
		if w.err != nil {
			return w.err
		}
		w.buf = w.buf[:0]
		for i, cell := range row {
			if i > 0 {
				w.buf = append(w.buf, ',')
			}
			w.buf = append(w.buf, '"')
			w.buf = append(w.buf, cell...)
			w.buf = append(w.buf, '"')
		}
		w.buf = append(w.buf, '\n')
		_, w.err = w.w.Write(w.buf)
	}
	if w.err != nil {
		return xerrors.Errorf("tob: could not write TOA5 header: %w", w.err)
	}
	return nil
}

// Write writes one data row.
func (w *Writer) Write(row []Value) error {
	if w.err != nil {
		return w.err
	}
	w.buf = w.buf[:0]
	for i, v := range row {
		if i > 0 {
			w.buf = append(w.buf, ',')
		}
		w.buf = v.AppendFormat(w.buf, w.tf)
	}
	w.buf = append(w.buf, '\n')
	_, w.err = w.w.Write(w.buf)
	if w.err != nil {
		w.err = xerrors.Errorf("tob: could not write TOA5 row: %w", w.err)
	}
	return w.err
}

// WriteBlock writes all the rows of a block.
func (w *Writer) WriteBlock(blk *Block) error {
	for _, row := range blk.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.w.Flush(); err != nil {
		w.err = xerrors.Errorf("tob: could not flush TOA5 table: %w", err)
	}
	return w.err
}
