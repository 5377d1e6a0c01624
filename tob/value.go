// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

// Kind is the kind of a decoded value.
type Kind uint8

const (
	KindInt    Kind = iota + 1 // integers and booleans
	KindFloat                  // finite floating point value
	KindNaN                    // not-a-number
	KindPosInf                 // +Inf
	KindNegInf                 // -Inf
	KindBits                   // string of '1'/'0' flags
	KindTime                   // timestamp
	KindString                 // text
)

// Value is a decoded scalar.
type Value struct {
	Kind   Kind
	Int    int64
	Float  float64
	Digits int // significant digits used to display Float
	Str    string
	Time   time.Time
}

// IntValue returns an integer value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// TimeValue returns a timestamp value.
func TimeValue(t time.Time) Value { return Value{Kind: KindTime, Time: t} }

// StringValue returns a text value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// FloatValue returns a floating point value displayed with the given
// number of significant digits.
// Special values are mapped to their own kinds.
func FloatValue(v float64, digits int) Value {
	switch {
	case math.IsNaN(v):
		return Value{Kind: KindNaN}
	case math.IsInf(v, +1):
		return Value{Kind: KindPosInf}
	case math.IsInf(v, -1):
		return Value{Kind: KindNegInf}
	}
	return Value{Kind: KindFloat, Float: v, Digits: digits}
}

// Decode decodes a value of the fixed-width type t from p.
// ASCII values need a Field to provide their width.
func Decode(t Type, p []byte) (Value, error) {
	if !t.valid() {
		return Value{}, xerrors.Errorf("tob: could not decode %v: %w", t, ErrUnknownType)
	}
	if t == ASCII {
		return decodeASCII(p), nil
	}
	if n := t.Size(); len(p) < n {
		return Value{}, xerrors.Errorf("tob: %v needs %d bytes, got %d: %w", t, n, len(p), ErrShortValue)
	}

	switch t {
	case Bool:
		if p[0] != 0 {
			return IntValue(-1), nil
		}
		return IntValue(0), nil
	case Bool2, Bool4:
		if nonzero(p[:t.Size()]) {
			return IntValue(1), nil
		}
		return IntValue(0), nil
	case Bool8:
		return Value{Kind: KindBits, Str: bits8(p[0])}, nil
	case UInt2:
		return IntValue(int64(binary.BigEndian.Uint16(p))), nil
	case UInt4:
		return IntValue(int64(binary.BigEndian.Uint32(p))), nil
	case Int4:
		return IntValue(int64(int32(binary.BigEndian.Uint32(p)))), nil
	case ULong:
		return IntValue(int64(binary.LittleEndian.Uint32(p))), nil
	case Long:
		return IntValue(int64(int32(binary.LittleEndian.Uint32(p)))), nil
	case FP2:
		return decodeFP2(binary.BigEndian.Uint16(p)), nil
	case IEEE4, IEEE4L:
		v := math.Float32frombits(binary.LittleEndian.Uint32(p))
		return FloatValue(float64(v), descriptors[t].digits), nil
	case IEEE4B:
		v := math.Float32frombits(binary.BigEndian.Uint32(p))
		return FloatValue(float64(v), descriptors[t].digits), nil
	case SecNano:
		return TimeValue(stamp(
			binary.LittleEndian.Uint32(p[0:4]),
			binary.LittleEndian.Uint32(p[4:8]),
		)), nil
	case NSec:
		return TimeValue(stamp(
			binary.BigEndian.Uint32(p[0:4]),
			binary.BigEndian.Uint32(p[4:8]),
		)), nil
	}
	return Value{}, xerrors.Errorf("tob: no decoder for %v: %w", t, ErrUnknownType)
}

// decodeFP2 decodes a Campbell 2-byte float:
// bit 15 is the sign, bits 13-14 the negative decimal exponent
// and bits 0-12 the mantissa.
func decodeFP2(v uint16) Value {
	var (
		mant = int(v & 0x1fff)
		exp  = int(v>>13) & 0x3
		neg  = v>>15 == 1
	)
	if exp == 0 {
		switch mant {
		case 8190:
			return Value{Kind: KindNaN}
		case 8191:
			if neg {
				return Value{Kind: KindNegInf}
			}
			return Value{Kind: KindPosInf}
		}
	}
	f := float64(mant) / math.Pow10(exp)
	if neg {
		f = -f
	}
	return Value{Kind: KindFloat, Float: f, Digits: descriptors[FP2].digits}
}

// decodeASCII decodes a text field. The last byte of the allocation is
// reserved for the NUL terminator; anything after an earlier NUL is dropped.
func decodeASCII(p []byte) Value {
	if len(p) > 0 {
		p = p[:len(p)-1]
	}
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return StringValue(string(p))
}

// stamp returns the instant sec seconds and nsec nanoseconds after Epoch,
// rounded to the microsecond.
func stamp(sec, nsec uint32) time.Time {
	usec := math.RoundToEven(float64(nsec) / 1e3)
	return Epoch.Add(time.Duration(sec)*time.Second + time.Duration(usec)*time.Microsecond)
}

func nonzero(p []byte) bool {
	for _, v := range p {
		if v != 0 {
			return true
		}
	}
	return false
}

// bits8 formats the flags of v, least significant bit first.
func bits8(v byte) string {
	var buf [8]byte
	for i := range buf {
		buf[i] = '0' + (v>>i)&1
	}
	return string(buf[:])
}

// AppendFormat appends the TOA5 representation of v to dst.
func (v Value) AppendFormat(dst []byte, tf TimeFormat) []byte {
	switch v.Kind {
	case KindInt:
		return strconv.AppendInt(dst, v.Int, 10)
	case KindFloat:
		digits := v.Digits
		if digits <= 0 {
			digits = -1
		}
		return strconv.AppendFloat(dst, v.Float, 'g', digits, 64)
	case KindNaN:
		return append(dst, `"NAN"`...)
	case KindPosInf:
		return append(dst, `"INF"`...)
	case KindNegInf:
		return append(dst, `"-INF"`...)
	case KindBits, KindString:
		dst = append(dst, '"')
		dst = append(dst, v.Str...)
		return append(dst, '"')
	case KindTime:
		dst = append(dst, '"')
		dst = tf.Append(dst, v.Time)
		return append(dst, '"')
	}
	return dst
}

// Format returns the TOA5 representation of v.
func (v Value) Format(tf TimeFormat) string {
	return string(v.AppendFormat(nil, tf))
}
