// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/go-lpc/csi/internal/mmap"
	"golang.org/x/xerrors"
)

// Sniff returns the format declared by the first header cell of r.
// r is not consumed.
func Sniff(r *bufio.Reader) (Format, error) {
	p, err := r.Peek(8)
	if err != nil && !errors.Is(err, io.EOF) {
		return FormatUnknown, xerrors.Errorf("tob: could not peek at file format: %w", err)
	}
	p = bytes.TrimLeft(p, `"`)
	if i := bytes.IndexAny(p, "\",\r\n"); i >= 0 {
		p = p[:i]
	}
	return formatFrom(string(p)), nil
}

// NewDecoder returns a decoder for the TOB1 or TOB3 file read from r.
func NewDecoder(r io.Reader, opts ...Option) (Decoder, error) {
	cfg := newConfig(opts)
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	format, err := Sniff(br)
	if err != nil {
		return nil, &Error{File: cfg.origin, Offset: 0, Err: err}
	}

	switch format {
	case FormatTOB1:
		return newTOB1Decoder(br, cfg)
	case FormatTOB3:
		return newTOB3Decoder(br, cfg)
	case FormatUnknown:
		return nil, &Error{
			File: cfg.origin, Offset: 0,
			Err: xerrors.Errorf("tob: missing format tag: %w", ErrFormat),
		}
	default:
		return nil, &Error{
			File: cfg.origin, Offset: 0,
			Err: xerrors.Errorf("tob: unsupported format %v: %w", format, ErrFormat),
		}
	}
}

// Convert decodes the binary table read from r and writes it to w as a
// TOA5 table.
// Rows decoded before a failure are written out before the error is returned.
func Convert(ctx context.Context, w io.Writer, r io.Reader, opts ...Option) (Stats, error) {
	cfg := newConfig(opts)
	dec, err := NewDecoder(r, opts...)
	if err != nil {
		return Stats{}, err
	}

	toa := NewWriter(w, cfg.tfmt)
	err = toa.WriteHeader(dec.Header().TOA5(cfg.origin))
	if err != nil {
		return dec.Stats(), err
	}

	var blk Block
loop:
	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		default:
		}

		err = dec.Decode(&blk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			break loop
		}

		err = toa.WriteBlock(&blk)
		if err != nil {
			break loop
		}
	}

	if e := toa.Flush(); e != nil && err == nil {
		err = e
	}
	return dec.Stats(), err
}

// ConvertFile converts the binary table iname into the TOA5 file oname.
// The input file name is recorded in the TOA5 header unless WithOrigin
// is given.
func ConvertFile(ctx context.Context, oname, iname string, opts ...Option) (Stats, error) {
	cfg := newConfig(opts)
	if cfg.origin == "" {
		opts = append(opts[:len(opts):len(opts)], WithOrigin(filepath.Base(iname)))
	}

	var r io.Reader
	switch {
	case cfg.mmap:
		h, err := mmap.Open(iname)
		if err != nil {
			return Stats{}, xerrors.Errorf("tob: could not open input file: %w", err)
		}
		defer h.Close()
		r = h.Reader()
	default:
		f, err := os.Open(iname)
		if err != nil {
			return Stats{}, xerrors.Errorf("tob: could not open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	o, err := os.Create(oname)
	if err != nil {
		return Stats{}, xerrors.Errorf("tob: could not create output file: %w", err)
	}
	defer o.Close()

	stats, err := Convert(ctx, o, r, opts...)
	if e := o.Close(); e != nil && err == nil {
		err = xerrors.Errorf("tob: could not close output file: %w", e)
	}
	return stats, err
}
