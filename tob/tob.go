// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tob decodes Campbell Scientific binary table files (TOB1 and TOB3)
// and writes them out as TOA5 ASCII tables.
package tob // import "github.com/go-lpc/csi/tob"

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"
)

// Epoch is the reference instant of all datalogger timestamps.
var Epoch = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrFormat        = errors.New("tob: unrecognized file format")
	ErrHeader        = errors.New("tob: malformed header")
	ErrUnknownType   = errors.New("tob: unknown data type")
	ErrColumns       = errors.New("tob: header column count mismatch")
	ErrShortValue    = errors.New("tob: value span too short")
	ErrInvalidFrame  = errors.New("tob: invalid frame")
	ErrInvalidFrames = errors.New("tob: too many consecutive invalid frames")
)

// Error describes a decoding failure of a given file.
type Error struct {
	File   string // name of the decoded file, if known
	Offset int64  // byte offset of the failing record or frame, -1 if unknown
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.File != "" && e.Offset >= 0:
		return fmt.Sprintf("%s (offset=%d): %v", e.File, e.Offset, e.Err)
	case e.File != "":
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	case e.Offset >= 0:
		return fmt.Sprintf("offset=%d: %v", e.Offset, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Format is the declared format tag of a datalogger file.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatTOB1
	FormatTOB2
	FormatTOB3
	FormatTOA5
)

func (f Format) String() string {
	switch f {
	case FormatTOB1:
		return "TOB1"
	case FormatTOB2:
		return "TOB2"
	case FormatTOB3:
		return "TOB3"
	case FormatTOA5:
		return "TOA5"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

func formatFrom(tag string) Format {
	switch tag {
	case "TOB1":
		return FormatTOB1
	case "TOB2":
		return FormatTOB2
	case "TOB3":
		return FormatTOB3
	case "TOA5":
		return FormatTOA5
	}
	return FormatUnknown
}

// DefaultMaxInvalidFrames is the number of consecutive invalid major
// frames tolerated before a TOB3 decoder gives up on a file.
const DefaultMaxInvalidFrames = 5

// Option configures decoders and converters.
type Option func(*config)

type config struct {
	tfmt       TimeFormat
	maxInvalid int
	origin     string
	msg        *log.Logger
	mmap       bool
}

func newConfig(opts []Option) config {
	cfg := config{
		tfmt:       TimeMinimal,
		maxInvalid: DefaultMaxInvalidFrames,
		msg:        log.New(io.Discard, "tob: ", 0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTimeFormat sets the display mode of all timestamps of a run.
func WithTimeFormat(tf TimeFormat) Option {
	return func(cfg *config) {
		cfg.tfmt = tf
	}
}

// WithMaxInvalidFrames sets the number of consecutive invalid frames
// after which a TOB3 file is abandoned.
func WithMaxInvalidFrames(n int) Option {
	return func(cfg *config) {
		cfg.maxInvalid = n
	}
}

// WithOrigin sets the file name recorded in the TOA5 header and in errors.
func WithOrigin(name string) Option {
	return func(cfg *config) {
		cfg.origin = name
	}
}

// WithLogger sets the logger used to report skipped frames.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		if msg != nil {
			cfg.msg = msg
		}
	}
}

// WithMmap makes ConvertFile memory-map its input file.
func WithMmap(v bool) Option {
	return func(cfg *config) {
		cfg.mmap = v
	}
}

// Block holds the rows produced by one decoding step: a single record
// for TOB1 files, all the records of a major frame for TOB3 files.
type Block struct {
	Rows [][]Value
}

// Decoder decodes the data records of a binary table file.
type Decoder interface {
	// Header returns the decoded file header.
	Header() *FileHeader
	// Layout returns the record layout derived from the header.
	Layout() *Layout
	// Decode decodes the next block of rows.
	// Decode returns io.EOF when no more rows are available.
	Decode(blk *Block) error
	// Stats returns the decoding counters accumulated so far.
	Stats() Stats
}

// Stats holds decoding counters.
type Stats struct {
	Format        Format
	Records       int // number of decoded rows
	Intended      int // intended number of records, as declared by TOB3 headers
	Frames        int // number of valid major frames
	MinorFrames   int // number of decoded minor frames
	InvalidFrames int // number of skipped major frames
}
