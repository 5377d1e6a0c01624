// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"encoding/binary"
	"io"
	"math"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// WriteHeader writes the ASCII header rows of a binary table file,
// every cell quoted and every line terminated by CRLF, the way
// dataloggers do.
func WriteHeader(w io.Writer, rows ...[]string) error {
	var b strings.Builder
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(cell)
			b.WriteByte('"')
		}
		b.WriteString("\r\n")
	}
	_, err := io.WriteString(w, b.String())
	if err != nil {
		return xerrors.Errorf("tob: could not write header: %w", err)
	}
	return nil
}

// AppendValue appends the binary encoding of v as a value of field f.
func AppendValue(dst []byte, f Field, v Value) ([]byte, error) {
	var (
		le = binary.LittleEndian
		be = binary.BigEndian
	)
	switch f.Type {
	case Bool:
		if v.Int != 0 {
			return append(dst, 0xff), nil
		}
		return append(dst, 0), nil
	case Bool2:
		return be.AppendUint16(dst, boolBit(v)), nil
	case Bool4:
		return be.AppendUint32(dst, uint32(boolBit(v))), nil
	case Bool8:
		if len(v.Str) != 8 {
			return dst, xerrors.Errorf("tob: invalid BOOL8 flags %q", v.Str)
		}
		var o byte
		for i := 0; i < 8; i++ {
			if v.Str[i] == '1' {
				o |= 1 << i
			}
		}
		return append(dst, o), nil
	case UInt2:
		return be.AppendUint16(dst, uint16(v.Int)), nil
	case UInt4, Int4:
		return be.AppendUint32(dst, uint32(v.Int)), nil
	case ULong, Long:
		return le.AppendUint32(dst, uint32(v.Int)), nil
	case FP2:
		return be.AppendUint16(dst, encodeFP2(v)), nil
	case IEEE4, IEEE4L:
		return le.AppendUint32(dst, math.Float32bits(float32(v.float()))), nil
	case IEEE4B:
		return be.AppendUint32(dst, math.Float32bits(float32(v.float()))), nil
	case SecNano, NSec:
		sec, nsec := unstamp(v.Time)
		if f.Type == SecNano {
			dst = le.AppendUint32(dst, sec)
			return le.AppendUint32(dst, nsec), nil
		}
		dst = be.AppendUint32(dst, sec)
		return be.AppendUint32(dst, nsec), nil
	case ASCII:
		if f.Size < 1 {
			return dst, xerrors.Errorf("tob: invalid ASCII width %d", f.Size)
		}
		buf := make([]byte, f.Size)
		copy(buf[:f.Size-1], v.Str)
		return append(dst, buf...), nil
	}
	return dst, xerrors.Errorf("tob: could not encode %v: %w", f.Type, ErrUnknownType)
}

// AppendRecord appends the binary encoding of a record laid out as lay.
func AppendRecord(dst []byte, lay *Layout, vs []Value) ([]byte, error) {
	if len(vs) != len(lay.Fields) {
		return dst, xerrors.Errorf("tob: record has %d values, layout has %d fields", len(vs), len(lay.Fields))
	}
	for i, f := range lay.Fields {
		var err error
		dst, err = AppendValue(dst, f, vs[i])
		if err != nil {
			return dst, err
		}
	}
	return dst, nil
}

// AppendFrameHeader appends a 12-byte TOB3 frame header.
// sub counts sub-second units of the table resolution.
func AppendFrameHeader(dst []byte, sec, sub, rec uint32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, sec)
	dst = binary.LittleEndian.AppendUint32(dst, sub)
	return binary.LittleEndian.AppendUint32(dst, rec)
}

// AppendFooter appends the 4-byte encoding of a TOB3 frame footer.
func AppendFooter(dst []byte, ftr Footer) []byte {
	v := uint32(ftr.Validation)<<16 | uint32(ftr.Flags&0xf)<<12 | uint32(ftr.Size&0xfff)
	return binary.LittleEndian.AppendUint32(dst, v)
}

func boolBit(v Value) uint16 {
	if v.Int != 0 {
		return 1
	}
	return 0
}

func (v Value) float() float64 {
	switch v.Kind {
	case KindNaN:
		return math.NaN()
	case KindPosInf:
		return math.Inf(+1)
	case KindNegInf:
		return math.Inf(-1)
	case KindInt:
		return float64(v.Int)
	}
	return v.Float
}

// encodeFP2 encodes v with the largest decimal exponent that fits the
// 13-bit mantissa.
func encodeFP2(v Value) uint16 {
	switch v.Kind {
	case KindNaN:
		return 8190
	case KindPosInf:
		return 8191
	case KindNegInf:
		return 1<<15 | 8191
	}

	var (
		f    = v.float()
		sign uint16
	)
	if f < 0 {
		sign = 1 << 15
		f = -f
	}
	for exp := 3; exp > 0; exp-- {
		m := math.Round(f * math.Pow10(exp))
		if m <= 8191 {
			return sign | uint16(exp)<<13 | uint16(m)
		}
	}
	m := math.Min(math.Round(f), 8189)
	return sign | uint16(m)
}

func unstamp(t time.Time) (sec, nsec uint32) {
	d := t.Sub(Epoch)
	return uint32(d / time.Second), uint32(d % time.Second)
}
