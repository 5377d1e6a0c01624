// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"encoding/binary"
	"fmt"
)

const (
	frameHeaderSize = 12 // TOB3 frame header: seconds, sub-seconds, record number
	frameFooterSize = 4
)

// Frame footer flags.
const (
	FlagFileMark Flags = 1 << iota // F: records before/after a file mark
	FlagRemoved                    // R: card removed after this frame
	FlagEmpty                      // E: empty frame
	FlagMinor                      // M: minor (dirty) frame
)

// Flags are the control flags of a frame footer.
type Flags uint8

func (f Flags) String() string {
	buf := []byte("----")
	for i, c := range "FREM" {
		if f&(1<<i) != 0 {
			buf[i] = byte(c)
		}
	}
	return string(buf)
}

// Footer is the trailing 4-byte word of a TOB3 frame.
//
// The word is read as a little-endian uint32 v:
//   - v>>16 is the validation value,
//   - (v>>12)&0xf holds the F/R/E/M flags,
//   - v&0xfff is the size of the minor frame ending with this footer.
type Footer struct {
	Validation uint16
	Valid      bool
	Flags      Flags
	Size       int // minor frame size, in bytes
}

// ParseFooter parses the 4 bytes of a frame footer.
// The footer is valid when its validation value matches stamp or its complement.
func ParseFooter(p []byte, stamp uint16) Footer {
	v := binary.LittleEndian.Uint32(p[:frameFooterSize])
	ftr := Footer{
		Validation: uint16(v >> 16),
		Flags:      Flags(v>>12) & 0xf,
		Size:       int(v & 0xfff),
	}
	ftr.Valid = ftr.Validation == stamp || ftr.Validation == ^stamp
	return ftr
}

// Empty reports whether the frame holds no record.
func (ftr Footer) Empty() bool { return ftr.Flags&FlagEmpty != 0 }

// Minor reports whether the frame is split into minor frames.
func (ftr Footer) Minor() bool { return ftr.Flags&FlagMinor != 0 }

func (ftr Footer) String() string {
	return fmt.Sprintf("footer{valid=%v, stamp=0x%04x, flags=%v, size=%d}",
		ftr.Valid, ftr.Validation, ftr.Flags, ftr.Size,
	)
}
