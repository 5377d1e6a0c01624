// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"golang.org/x/xerrors"
)

// TOB3Decoder decodes frame-structured TOB3 files.
//
// Major frames are read at the declared frame size. Frames whose footer
// does not carry the header's validation stamp are skipped. Frames flagged
// empty or minor are split into minor frames, walked backward from the
// end of the major frame and emitted in chronological order.
type TOB3Decoder struct {
	r   io.Reader
	cfg config

	hdr *FileHeader
	lay *Layout

	frame   []byte
	pos     int64 // offset of the next major frame
	invalid int   // number of consecutive invalid frames
	stats   Stats
	err     error
}

// NewTOB3Decoder reads the TOB3 header from r and returns a decoder for
// the frames that follow.
func NewTOB3Decoder(r io.Reader, opts ...Option) (*TOB3Decoder, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return newTOB3Decoder(br, newConfig(opts))
}

func newTOB3Decoder(r *bufio.Reader, cfg config) (*TOB3Decoder, error) {
	hdr, err := ReadTOB3Header(r)
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

	dec := &TOB3Decoder{
		r:     r,
		cfg:   cfg,
		hdr:   hdr,
		lay:   lay,
		frame: make([]byte, hdr.Table.FrameSize),
		pos:   hdr.Size(),
	}
	dec.stats.Format = FormatTOB3
	dec.stats.Intended = hdr.Table.Intended
	return dec, nil
}

func (dec *TOB3Decoder) Header() *FileHeader { return dec.hdr }
func (dec *TOB3Decoder) Layout() *Layout     { return dec.lay }
func (dec *TOB3Decoder) Stats() Stats        { return dec.stats }

// Decode decodes the records of the next valid major frame.
// Decode returns io.EOF once a short frame has been read.
func (dec *TOB3Decoder) Decode(blk *Block) error {
	blk.Rows = blk.Rows[:0]
	for {
		if dec.err != nil {
			return dec.err
		}

		pos := dec.pos
		n, err := io.ReadFull(dec.r, dec.frame)
		dec.pos += int64(n)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
				dec.err = io.EOF
			default:
				dec.err = &Error{
					File: dec.cfg.origin, Offset: pos,
					Err: xerrors.Errorf("tob: could not read major frame: %w", err),
				}
			}
			return dec.err
		}

		rows, err := dec.DecodeFrame(blk.Rows, dec.frame)
		if err != nil {
			if !errors.Is(err, ErrInvalidFrame) {
				dec.err = &Error{File: dec.cfg.origin, Offset: pos, Err: err}
				return dec.err
			}
			dec.stats.InvalidFrames++
			dec.invalid++
			dec.cfg.msg.Printf("skipping invalid frame at offset %d (%d consecutive)", pos, dec.invalid)
			if dec.invalid > dec.cfg.maxInvalid {
				dec.err = &Error{
					File: dec.cfg.origin, Offset: pos,
					Err: xerrors.Errorf(
						"tob: %d consecutive invalid frames: %w",
						dec.invalid, ErrInvalidFrames,
					),
				}
				return dec.err
			}
			continue
		}

		dec.invalid = 0
		dec.stats.Frames++
		dec.stats.Records += len(rows)
		blk.Rows = rows
		return nil
	}
}

// DecodeFrame decodes the records of the major frame p and appends the
// resulting rows to dst.
// DecodeFrame returns ErrInvalidFrame if the frame footer does not
// validate against the header stamp.
func (dec *TOB3Decoder) DecodeFrame(dst [][]Value, p []byte) ([][]Value, error) {
	if len(p) < frameHeaderSize+frameFooterSize {
		return dst, xerrors.Errorf("tob: frame too short (%d bytes): %w", len(p), ErrShortValue)
	}

	ftr := ParseFooter(p[len(p)-frameFooterSize:], dec.hdr.Table.Validation)
	if !ftr.Valid {
		return dst, xerrors.Errorf(
			"tob: frame validation 0x%04x does not match stamp 0x%04x: %w",
			ftr.Validation, dec.hdr.Table.Validation, ErrInvalidFrame,
		)
	}

	if !ftr.Empty() && !ftr.Minor() {
		return dec.decodeRecords(dst, p[:len(p)-frameFooterSize])
	}

	spans := MinorFrames(p, ftr, dec.hdr.Table.Validation)
	for _, span := range spans {
		var err error
		dst, err = dec.decodeRecords(dst, span[:len(span)-frameFooterSize])
		if err != nil {
			return dst, err
		}
		dec.stats.MinorFrames++
	}
	return dst, nil
}

// MinorFrames splits the major frame p, whose footer is ftr, into its
// non-empty minor frames, oldest first.
//
// Minor frames are discovered from the end of the major frame: each footer
// gives the size of the minor frame it terminates. Only the flags and sizes
// of inner footers are consulted.
func MinorFrames(p []byte, ftr Footer, stamp uint16) [][]byte {
	var (
		spans [][]byte
		off   = 0 // offset from the end of the major frame
	)
	for {
		end := len(p) - off
		if ftr.Size <= 0 || ftr.Size > end {
			break
		}
		if !ftr.Empty() && ftr.Size >= frameHeaderSize+frameFooterSize {
			spans = append(spans, p[end-ftr.Size:end])
		}
		off += ftr.Size
		if off+frameFooterSize > len(p) {
			break
		}
		end = len(p) - off
		ftr = ParseFooter(p[end-frameFooterSize:end], stamp)
	}

	// spans were collected newest first.
	for i, j := 0, len(spans)-1; i < j; i, j = i+1, j-1 {
		spans[i], spans[j] = spans[j], spans[i]
	}
	return spans
}

// decodeRecords decodes a frame (minor or major) stripped of its footer:
// a 12-byte header followed by back-to-back records.
// Trailing bytes too short to hold a record are ignored.
func (dec *TOB3Decoder) decodeRecords(dst [][]Value, p []byte) ([][]Value, error) {
	var (
		sec  = binary.LittleEndian.Uint32(p[0:4])
		sub  = binary.LittleEndian.Uint32(p[4:8])
		rec  = int64(binary.LittleEndian.Uint32(p[8:12]))
		ts   = Epoch.Add(time.Duration(sec)*time.Second + time.Duration(sub)*dec.hdr.Table.Resolution)
		data = p[frameHeaderSize:]
		n    = len(data) / dec.lay.Stride
	)

	for i := 0; i < n; i++ {
		row := make([]Value, 2, 2+len(dec.lay.Fields))
		row[0] = TimeValue(ts)
		row[1] = IntValue(rec)
		beg := i * dec.lay.Stride
		row, err := dec.lay.decode(row, data[beg:beg+dec.lay.Stride])
		if err != nil {
			return dst, err
		}
		dst = append(dst, row)
		ts = ts.Add(dec.hdr.Table.Interval)
		rec++
	}
	return dst, nil
}

var _ Decoder = (*TOB3Decoder)(nil)
