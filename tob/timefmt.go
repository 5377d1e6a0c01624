// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// TimeFormat selects how timestamps are displayed.
type TimeFormat uint8

const (
	// TimeMinimal drops trailing zeros of the fractional seconds,
	// and the decimal point when the fraction is zero.
	// This is how LoggerNet's CardConvert displays timestamps.
	TimeMinimal TimeFormat = iota
	TimeMillis             // truncated to the millisecond
	TimeSeconds            // truncated to the second
	TimeMicros             // full microsecond resolution
)

const (
	layoutSec   = "2006-01-02 15:04:05"
	layoutMilli = "2006-01-02 15:04:05.000"
	layoutMicro = "2006-01-02 15:04:05.000000"
)

// ParseTimeFormat returns the time format with the given name.
func ParseTimeFormat(name string) (TimeFormat, error) {
	switch strings.ToLower(name) {
	case "", "csi", "minimal":
		return TimeMinimal, nil
	case "millisec", "ms":
		return TimeMillis, nil
	case "sec", "s":
		return TimeSeconds, nil
	case "microsec", "us":
		return TimeMicros, nil
	}
	return 0, xerrors.Errorf("tob: unknown time format %q", name)
}

func (tf TimeFormat) String() string {
	switch tf {
	case TimeMinimal:
		return "csi"
	case TimeMillis:
		return "millisec"
	case TimeSeconds:
		return "sec"
	case TimeMicros:
		return "microsec"
	}
	return fmt.Sprintf("TimeFormat(%d)", uint8(tf))
}

// Append appends the formatted timestamp t to dst.
func (tf TimeFormat) Append(dst []byte, t time.Time) []byte {
	t = t.UTC()
	switch tf {
	case TimeMillis:
		return t.AppendFormat(dst, layoutMilli)
	case TimeSeconds:
		return t.AppendFormat(dst, layoutSec)
	case TimeMicros:
		return t.AppendFormat(dst, layoutMicro)
	}
	n := len(dst)
	dst = t.AppendFormat(dst, layoutMicro)
	out := bytes.TrimRight(dst[n:], "0")
	out = bytes.TrimRight(out, ".")
	return dst[:n+len(out)]
}

// Format returns the formatted timestamp t.
func (tf TimeFormat) Format(t time.Time) string {
	return string(tf.Append(nil, t))
}
