// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"bufio"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReadTOB3Header(t *testing.T) {
	raw := strings.Join([]string{
		`"TOB3","sto","CR3000","1234","CR3000.Std.26","CPU:sto.CR3","12345","2020-06-01 00:00:00"`,
		`"sonic","100 MSEC","40","9","4660","Sec100Usec","0.000","0","0"`,
		`"Ux","Diag"`,
		`"m/s",""`,
		`"Smp","Smp"`,
		`"IEEE4","  LONG"`,
	}, "\r\n") + "\r\n"

	hdr, err := ReadTOB3Header(bufio.NewReader(strings.NewReader(raw + "\x01\x02")))
	if err != nil {
		t.Fatalf("could not read header: %+v", err)
	}

	if got, want := hdr.Format, FormatTOB3; got != want {
		t.Fatalf("invalid format: got=%v, want=%v", got, want)
	}
	if got, want := hdr.Size(), int64(len(raw)); got != want {
		t.Fatalf("invalid header size: got=%d, want=%d", got, want)
	}

	want := TableInfo{
		Name:       "sonic",
		Interval:   100 * time.Millisecond,
		FrameSize:  40,
		Intended:   9,
		Validation: 0x1234,
		Resolution: 100 * time.Microsecond,
	}
	if diff := cmp.Diff(want, hdr.Table); diff != "" {
		t.Fatalf("invalid table info (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"IEEE4", "LONG"}, hdr.Types); diff != "" {
		t.Fatalf("invalid types (-want +got):\n%s", diff)
	}

	lay, err := NewLayout(hdr)
	if err != nil {
		t.Fatalf("could not build layout: %+v", err)
	}
	if got, want := lay.Stride, 8; got != want {
		t.Fatalf("invalid stride: got=%d, want=%d", got, want)
	}
	if lay.Stamped {
		t.Fatalf("TOB3 layout should not be stamped")
	}

	toa := hdr.TOA5("sto_sonic.dat")
	wantTOA := [4][]string{
		{"TOA5", "sto", "CR3000", "1234", "CR3000.Std.26", "CPU:sto.CR3", "12345", "sonic", "sto_sonic.dat"},
		{"TIMESTAMP", "RECORD", "Ux", "Diag"},
		{"TS", "RN", "m/s", ""},
		{"", "", "Smp", "Smp"},
	}
	if diff := cmp.Diff(wantTOA, toa); diff != "" {
		t.Fatalf("invalid TOA5 header (-want +got):\n%s", diff)
	}
	if got, want := hdr.Env[0], "TOB3"; got != want {
		t.Fatalf("TOA5 header modified environment: got=%q, want=%q", got, want)
	}
}

func TestReadHeaderErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		tob3 bool
		raw  string
		want error
	}{
		{
			name: "tob1-short",
			raw:  "\"TOB1\"\r\n\"a\"\r\n",
			want: ErrHeader,
		},
		{
			name: "tob1-wrong-tag",
			raw:  "\"TOB2\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrFormat,
		},
		{
			name: "tob1-columns",
			raw:  "\"TOB1\"\n\"a\",\"b\"\n\"\",\"\"\n\"\"\n\"ULONG\",\"ULONG\"\n",
			want: ErrColumns,
		},
		{
			name: "tob1-no-types",
			raw:  "\"TOB1\"\n\"\"\n\"\"\n\"\"\n\n",
			want: ErrHeader,
		},
		{
			name: "tob3-as-tob1",
			tob3: true,
			raw:  "\"TOB1\"\n\"t\",\"1 SEC\",\"40\",\"1\",\"1\",\"SecUSec\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrFormat,
		},
		{
			name: "tob3-table-row",
			tob3: true,
			raw:  "\"TOB3\"\n\"t\",\"1 SEC\",\"40\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrHeader,
		},
		{
			name: "tob3-frame-size",
			tob3: true,
			raw:  "\"TOB3\"\n\"t\",\"1 SEC\",\"16\",\"1\",\"1\",\"SecUSec\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrHeader,
		},
		{
			name: "tob3-resolution",
			tob3: true,
			raw:  "\"TOB3\"\n\"t\",\"1 SEC\",\"40\",\"1\",\"1\",\"SecNSec\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrHeader,
		},
		{
			name: "tob3-interval",
			tob3: true,
			raw:  "\"TOB3\"\n\"t\",\"1 WEEK\",\"40\",\"1\",\"1\",\"SecUSec\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrHeader,
		},
		{
			name: "tob3-stamp",
			tob3: true,
			raw:  "\"TOB3\"\n\"t\",\"1 SEC\",\"40\",\"1\",\"70000\",\"SecUSec\"\n\"a\"\n\"\"\n\"\"\n\"ULONG\"\n",
			want: ErrHeader,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tc.raw))
			var err error
			switch {
			case tc.tob3:
				_, err = ReadTOB3Header(r)
			default:
				_, err = ReadTOB1Header(r)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%+v, want=%v", err, tc.want)
			}
		})
	}
}

func TestStampedTOA5(t *testing.T) {
	raw := strings.Join([]string{
		`"TOB1","sto","CR1000","1234","CR1000.Std","CPU:x","567","monitor"`,
		`"SECONDS","NANOSECONDS","RECORD","batt"`,
		`"SECONDS","NANOSECONDS","RN","V"`,
		`"","","","Smp"`,
		`"ULONG","ULONG","ULONG","FP2"`,
	}, "\n") + "\n"

	hdr, err := ReadTOB1Header(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("could not read header: %+v", err)
	}

	lay, err := NewLayout(hdr)
	if err != nil {
		t.Fatalf("could not build layout: %+v", err)
	}
	if !lay.Stamped {
		t.Fatalf("layout should be stamped")
	}
	if got, want := lay.Stride, 14; got != want {
		t.Fatalf("invalid stride: got=%d, want=%d", got, want)
	}

	want := [4][]string{
		{"TOA5", "sto", "CR1000", "1234", "CR1000.Std", "CPU:x", "567", "monitor", "sto_monitor.dat"},
		{"TIMESTAMP", "RECORD", "batt"},
		{"TS", "RN", "V"},
		{"", "", "Smp"},
	}
	if diff := cmp.Diff(want, hdr.TOA5("sto_monitor.dat")); diff != "" {
		t.Fatalf("invalid TOA5 header (-want +got):\n%s", diff)
	}
	if got, want := hdr.Names[0], "SECONDS"; got != want {
		t.Fatalf("TOA5 header modified names: got=%q, want=%q", got, want)
	}
}

func TestParseInterval(t *testing.T) {
	for _, tc := range []struct {
		s    string
		want time.Duration
		err  bool
	}{
		{s: "1 SEC", want: time.Second},
		{s: "100 MSEC", want: 100 * time.Millisecond},
		{s: "50 USEC", want: 50 * time.Microsecond},
		{s: "10 NSEC", want: 10 * time.Nanosecond},
		{s: "30 MIN", want: 30 * time.Minute},
		{s: "1 HR", want: time.Hour},
		{s: "1 DAY", want: 24 * time.Hour},
		{s: " 5 sec ", want: 5 * time.Second},
		{s: "SEC", err: true},
		{s: "x SEC", err: true},
		{s: "1 FORTNIGHT", err: true},
	} {
		got, err := ParseInterval(tc.s)
		switch {
		case tc.err:
			if !errors.Is(err, ErrHeader) {
				t.Fatalf("%q: invalid error: %+v", tc.s, err)
			}
			continue
		case err != nil:
			t.Fatalf("could not parse %q: %+v", tc.s, err)
		}
		if got != tc.want {
			t.Fatalf("invalid interval for %q: got=%v, want=%v", tc.s, got, tc.want)
		}
	}
}
