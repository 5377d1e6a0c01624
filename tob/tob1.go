// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bufio"
	"errors"
	"io"

	"golang.org/x/xerrors"
)

// TOB1Decoder decodes TOB1 files: a header followed by back-to-back
// fixed-size records.
type TOB1Decoder struct {
	r   io.Reader
	cfg config

	hdr *FileHeader
	lay *Layout

	buf   []byte
	pos   int64 // offset of the next record
	stats Stats
	err   error
}

// NewTOB1Decoder reads the TOB1 header from r and returns a decoder for
// the records that follow.
func NewTOB1Decoder(r io.Reader, opts ...Option) (*TOB1Decoder, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return newTOB1Decoder(br, newConfig(opts))
}

func newTOB1Decoder(r *bufio.Reader, cfg config) (*TOB1Decoder, error) {
	hdr, err := ReadTOB1Header(r)
	if err != nil {
		return nil, &Error{File: cfg.origin, Offset: -1, Err: err}
	}
	lay, err := NewLayout(hdr)
	if err != nil {
		return nil, &Error{File: cfg.origin, Offset: -1, Err: err}
	}
	if lay.Stride <= 0 {
		return nil, &Error{
			File: cfg.origin, Offset: -1,
			Err: xerrors.Errorf("tob: null record stride: %w", ErrHeader),
		}
	}

	dec := &TOB1Decoder{
		r:   r,
		cfg: cfg,
		hdr: hdr,
		lay: lay,
		buf: make([]byte, lay.Stride),
		pos: hdr.Size(),
	}
	dec.stats.Format = FormatTOB1
	return dec, nil
}

func (dec *TOB1Decoder) Header() *FileHeader { return dec.hdr }
func (dec *TOB1Decoder) Layout() *Layout     { return dec.lay }
func (dec *TOB1Decoder) Stats() Stats        { return dec.stats }

// Decode decodes the next record.
// A trailing partial record is discarded and reported as io.EOF.
func (dec *TOB1Decoder) Decode(blk *Block) error {
	blk.Rows = blk.Rows[:0]
	if dec.err != nil {
		return dec.err
	}

	pos := dec.pos
	n, err := io.ReadFull(dec.r, dec.buf)
	dec.pos += int64(n)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			dec.err = io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			dec.cfg.msg.Printf("discarding %d trailing bytes at offset %d", n, pos)
			dec.err = io.EOF
		default:
			dec.err = &Error{
				File: dec.cfg.origin, Offset: pos,
				Err: xerrors.Errorf("tob: could not read record: %w", err),
			}
		}
		return dec.err
	}

	row, err := dec.lay.decode(make([]Value, 0, len(dec.lay.Fields)), dec.buf)
	if err != nil {
		dec.err = &Error{File: dec.cfg.origin, Offset: pos, Err: err}
		return dec.err
	}
	blk.Rows = append(blk.Rows, row)
	dec.stats.Records++
	return nil
}

var _ Decoder = (*TOB1Decoder)(nil)
