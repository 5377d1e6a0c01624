// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"testing"
)

func TestParseFooter(t *testing.T) {
	const stamp = 0x1234
	for _, tc := range []struct {
		name string
		raw  []byte
		want Footer
	}{
		{
			name: "valid",
			raw:  []byte{0x00, 0x00, 0x34, 0x12},
			want: Footer{Validation: 0x1234, Valid: true},
		},
		{
			name: "complement",
			raw:  []byte{0x00, 0x00, 0xcb, 0xed},
			want: Footer{Validation: 0xedcb, Valid: true},
		},
		{
			name: "invalid",
			raw:  []byte{0x00, 0x00, 0x35, 0x12},
			want: Footer{Validation: 0x1235},
		},
		{
			name: "minor",
			raw:  []byte{0x18, 0x80, 0x34, 0x12},
			want: Footer{Validation: 0x1234, Valid: true, Flags: FlagMinor, Size: 24},
		},
		{
			name: "empty-minor",
			raw:  []byte{0x00, 0xc4, 0x34, 0x12},
			want: Footer{Validation: 0x1234, Valid: true, Flags: FlagEmpty | FlagMinor, Size: 1024},
		},
		{
			name: "file-mark-removed",
			raw:  []byte{0xff, 0x3f, 0x34, 0x12},
			want: Footer{Validation: 0x1234, Valid: true, Flags: FlagFileMark | FlagRemoved, Size: 0xfff},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseFooter(tc.raw, stamp)
			if got != tc.want {
				t.Fatalf("invalid footer:\ngot= %v\nwant=%v", got, tc.want)
			}

			if tc.want.Valid {
				raw := AppendFooter(nil, got)
				if string(raw) != string(tc.raw) {
					t.Fatalf("invalid footer encoding:\ngot= %x\nwant=%x", raw, tc.raw)
				}
			}
		})
	}
}

func TestFlags(t *testing.T) {
	for _, tc := range []struct {
		flags Flags
		want  string
	}{
		{0, "----"},
		{FlagFileMark, "F---"},
		{FlagRemoved, "-R--"},
		{FlagEmpty | FlagMinor, "--EM"},
		{FlagFileMark | FlagRemoved | FlagEmpty | FlagMinor, "FREM"},
	} {
		if got := tc.flags.String(); got != tc.want {
			t.Errorf("invalid flags: got=%q, want=%q", got, tc.want)
		}
	}
}
