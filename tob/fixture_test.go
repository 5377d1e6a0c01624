// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bytes"
	"strconv"
	"testing"
)

const (
	sec2020 = 946684800 // 2020-01-01 00:00:00, in seconds since Epoch
	stamp3  = 0x1234    // validation stamp of the TOB3 fixtures
)

var sonicLayout = &Layout{
	Fields: []Field{
		{Name: "Ux", Type: IEEE4, Size: 4},
		{Name: "Diag", Type: Long, Size: 4},
	},
	Stride: 8,
}

// tob3File builds a TOB3 file holding the "sonic" table (Ux IEEE4, Diag LONG)
// with the given frame size, followed by the raw frames.
func tob3File(t *testing.T, frameSize int, frames ...[]byte) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	err := WriteHeader(buf,
		[]string{"TOB3", "sto", "CR3000", "1234", "CR3000.Std.26", "CPU:sto.CR3", "12345", "2020-06-01 00:00:00"},
		[]string{"sonic", "100 MSEC", strconv.Itoa(frameSize), "9", strconv.Itoa(stamp3), "Sec100Usec", "0.000", "0", "0"},
		[]string{"Ux", "Diag"},
		[]string{"m/s", ""},
		[]string{"Smp", "Smp"},
		[]string{"IEEE4", "LONG"},
	)
	if err != nil {
		t.Fatalf("could not write header: %+v", err)
	}
	for _, frame := range frames {
		buf.Write(frame)
	}
	return buf.Bytes()
}

type sonic struct {
	ux   float64
	diag int64
}

// minorFrame builds a frame holding the given records, terminated by ftr.
func minorFrame(t *testing.T, sec, sub, rec uint32, ftr Footer, recs ...sonic) []byte {
	t.Helper()
	p := AppendFrameHeader(nil, sec, sub, rec)
	for _, r := range recs {
		var err error
		p, err = AppendRecord(p, sonicLayout, []Value{FloatValue(r.ux, 7), IntValue(r.diag)})
		if err != nil {
			t.Fatalf("could not encode record: %+v", err)
		}
	}
	return AppendFooter(p, ftr)
}

// majorFrame builds a simple major frame of the given size.
func majorFrame(t *testing.T, size int, validation uint16, sec, sub, rec uint32, recs ...sonic) []byte {
	t.Helper()
	p := AppendFrameHeader(nil, sec, sub, rec)
	for _, r := range recs {
		var err error
		p, err = AppendRecord(p, sonicLayout, []Value{FloatValue(r.ux, 7), IntValue(r.diag)})
		if err != nil {
			t.Fatalf("could not encode record: %+v", err)
		}
	}
	if n := size - frameFooterSize - len(p); n > 0 {
		p = append(p, make([]byte, n)...)
	}
	p = AppendFooter(p, Footer{Validation: validation})
	if len(p) != size {
		t.Fatalf("invalid frame size: got=%d, want=%d", len(p), size)
	}
	return p
}

// padFront pads the minor frames p to size bytes with leading zeros.
func padFront(size int, p ...[]byte) []byte {
	var n int
	for _, v := range p {
		n += len(v)
	}
	o := make([]byte, size-n, size)
	for _, v := range p {
		o = append(o, v...)
	}
	return o
}
