// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tob

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// Type is a scalar data type a datalogger may declare for a field.
type Type uint8

const (
	TypeInvalid Type = iota
	Bool             // 1 byte, -1/0
	Bool2            // 2 bytes, 1/0
	Bool4            // 4 bytes, 1/0
	Bool8            // 1 byte, 8 flags
	UInt2            // big-endian uint16
	UInt4            // big-endian uint32
	Int4             // big-endian int32
	ULong            // little-endian uint32
	Long             // little-endian int32
	FP2              // Campbell 2-byte float
	IEEE4            // little-endian float32
	IEEE4L           // little-endian float32
	IEEE4B           // big-endian float32
	SecNano          // little-endian seconds+nanoseconds
	NSec             // big-endian seconds+nanoseconds
	ASCII            // fixed-width, NUL terminated string

	numTypes
)

type descriptor struct {
	name   string
	size   int  // byte width, 0 for ASCII (declared per field)
	quoted bool // whether formatted values are quoted
	digits int  // significant digits of floating point values
}

var descriptors = [numTypes]descriptor{
	Bool:    {name: "BOOL", size: 1},
	Bool2:   {name: "BOOL2", size: 2},
	Bool4:   {name: "BOOL4", size: 4},
	Bool8:   {name: "BOOL8", size: 1, quoted: true},
	UInt2:   {name: "UINT2", size: 2},
	UInt4:   {name: "UINT4", size: 4},
	Int4:    {name: "INT4", size: 4},
	ULong:   {name: "ULONG", size: 4},
	Long:    {name: "LONG", size: 4},
	FP2:     {name: "FP2", size: 2, digits: 4},
	IEEE4:   {name: "IEEE4", size: 4, digits: 7},
	IEEE4L:  {name: "IEEE4L", size: 4, digits: 7},
	IEEE4B:  {name: "IEEE4B", size: 4, digits: 7},
	SecNano: {name: "SecNano", size: 8, quoted: true},
	NSec:    {name: "NSec", size: 8, quoted: true},
	ASCII:   {name: "ASCII", quoted: true},
}

var typesByName = map[string]Type{
	"BOOL":    Bool,
	"BOOL2":   Bool2,
	"BOOL4":   Bool4,
	"BOOL8":   Bool8,
	"UINT2":   UInt2,
	"UINT4":   UInt4,
	"INT4":    Int4,
	"ULONG":   ULong,
	"LONG":    Long,
	"FP2":     FP2,
	"IEEE4":   IEEE4,
	"IEEE4L":  IEEE4L,
	"IEEE4B":  IEEE4B,
	"SecNano": SecNano,
	"NSec":    NSec,
	"ASCII":   ASCII,
}

// TypeByName returns the type declared with the given name.
func TypeByName(name string) (Type, bool) {
	t, ok := typesByName[name]
	return t, ok
}

func (t Type) valid() bool { return TypeInvalid < t && t < numTypes }

func (t Type) String() string {
	if !t.valid() {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return descriptors[t].name
}

// Size returns the byte width of a value of type t.
// Size returns 0 for ASCII, whose width is declared per field.
func (t Type) Size() int {
	if !t.valid() {
		return 0
	}
	return descriptors[t].size
}

// Quoted reports whether formatted values of type t are quoted.
func (t Type) Quoted() bool {
	return t.valid() && descriptors[t].quoted
}

// Field is one column of a record.
type Field struct {
	Name string
	Type Type
	Size int // byte width of the field
}

// ParseField parses a type declaration of the form TYPENAME or ASCII(n).
// Embedded spaces, as used to pad TOB3 headers, are ignored.
func ParseField(name, decl string) (Field, error) {
	decl = strings.ReplaceAll(decl, " ", "")
	tname, arg, hasArg := strings.Cut(decl, "(")
	t, ok := TypeByName(tname)
	if !ok {
		return Field{}, xerrors.Errorf("tob: field %q declares %q: %w", name, decl, ErrUnknownType)
	}

	f := Field{Name: name, Type: t, Size: t.Size()}
	switch {
	case t == ASCII:
		if !hasArg || !strings.HasSuffix(arg, ")") {
			return Field{}, xerrors.Errorf("tob: field %q: missing ASCII width in %q: %w", name, decl, ErrHeader)
		}
		n, err := strconv.Atoi(strings.TrimSuffix(arg, ")"))
		if err != nil || n < 1 {
			return Field{}, xerrors.Errorf("tob: field %q: invalid ASCII width in %q: %w", name, decl, ErrHeader)
		}
		f.Size = n
	case hasArg:
		return Field{}, xerrors.Errorf("tob: field %q: width only allowed for ASCII fields (got %q): %w", name, decl, ErrHeader)
	}
	return f, nil
}

// Decode decodes the value of field f from p.
// Only the first f.Size bytes of p are read.
func (f Field) Decode(p []byte) (Value, error) {
	if len(p) < f.Size {
		return Value{}, xerrors.Errorf(
			"tob: field %q (%v) needs %d bytes, got %d: %w",
			f.Name, f.Type, f.Size, len(p), ErrShortValue,
		)
	}
	p = p[:f.Size]
	if f.Type == ASCII {
		return decodeASCII(p), nil
	}
	return Decode(f.Type, p)
}
