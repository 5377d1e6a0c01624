// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tob-dump decodes and displays the structure of TOB1 and TOB3 files.
//
// Usage: tob-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tob-dump ./hamSg8muk.bdat
//	=== hamSg8muk.bdat ===
//	format:     TOB3
//	station:    ham
//	table:      sonic
//	interval:   100ms
//	frame size: 1024
//	intended:   18000
//	stamp:      0x1234
//	resolution: 100µs
//	fields:     2 (stride: 8)
//	  [000] Ux                 IEEE4    m/s
//	  [001] Diag               LONG
//	frames:     600
//	  frame[0000] @0000000512 footer{valid=true, stamp=0x1234, flags=----, size=0}
//	[...]
//
// With -i, tob-dump starts an interactive shell to inspect frames.
package main

import (
	"bufio"
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-lpc/csi/internal/mmap"
	"github.com/go-lpc/csi/tob"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("tob-dump: ")
	log.SetFlags(0)

	var (
		interactive = flag.Bool("i", false, "enable interactive mode")
		tsfmt       = flag.String("ts", "minimal", "timestamp format (minimal, millisec, sec, microsec)")
	)

	flag.Usage = func() {
		fmt.Printf(`tob-dump decodes and displays the structure of TOB1 and TOB3 files.

Usage: tob-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> tob-dump ./hamSg8muk.bdat
 $> tob-dump -i ./hamSg8muk.bdat

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input file")
	}

	tf, err := tob.ParseTimeFormat(*tsfmt)
	if err != nil {
		log.Fatalf("invalid timestamp format: %+v", err)
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, tf, *interactive)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, tf tob.TimeFormat, interactive bool) error {
	d, err := newDumper(w, fname, tf)
	if err != nil {
		return err
	}
	defer d.Close()

	if interactive {
		return d.shell()
	}

	d.header()
	return d.frames()
}

type dumper struct {
	w     *bufio.Writer
	name  string
	h     *mmap.Handle
	hdr   *tob.FileHeader
	lay   *tob.Layout
	tob3  *tob.TOB3Decoder // nil for TOB1 files
	tf    tob.TimeFormat
	frame int // current frame of the interactive shell
}

func newDumper(w io.Writer, fname string, tf tob.TimeFormat) (*dumper, error) {
	h, err := mmap.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open %q: %w", fname, err)
	}

	dec, err := tob.NewDecoder(h.Reader(), tob.WithOrigin(filepath.Base(fname)))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("could not decode header: %w", err)
	}

	d := &dumper{
		w:    bufio.NewWriter(w),
		name: filepath.Base(fname),
		h:    h,
		hdr:  dec.Header(),
		lay:  dec.Layout(),
		tf:   tf,
	}
	if dec, ok := dec.(*tob.TOB3Decoder); ok {
		d.tob3 = dec
	}
	return d, nil
}

func (d *dumper) Close() error {
	err := d.w.Flush()
	if e := d.h.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

func (d *dumper) header() {
	var (
		hdr     = d.hdr
		station = ""
	)
	if len(hdr.Env) > 1 {
		station = hdr.Env[1]
	}
	fmt.Fprintf(d.w, "=== %s ===\n", d.name)
	fmt.Fprintf(d.w, "format:     %v\n", hdr.Format)
	fmt.Fprintf(d.w, "station:    %s\n", station)
	if d.tob3 != nil {
		tbl := hdr.Table
		fmt.Fprintf(d.w, "table:      %s\n", tbl.Name)
		fmt.Fprintf(d.w, "interval:   %v\n", tbl.Interval)
		fmt.Fprintf(d.w, "frame size: %d\n", tbl.FrameSize)
		fmt.Fprintf(d.w, "intended:   %d\n", tbl.Intended)
		fmt.Fprintf(d.w, "stamp:      0x%04x\n", tbl.Validation)
		fmt.Fprintf(d.w, "resolution: %v\n", tbl.Resolution)
	}
	d.layout()
}

func (d *dumper) layout() {
	fmt.Fprintf(d.w, "fields:     %d (stride: %d)\n", len(d.lay.Fields), d.lay.Stride)
	for i, f := range d.lay.Fields {
		unit := ""
		if i < len(d.hdr.Units) {
			unit = d.hdr.Units[i]
		}
		fmt.Fprintf(d.w, "  [%03d] %-18s %-8v %s\n", i, f.Name, f.Type, unit)
	}
}

// nframes returns the number of complete major frames, or records for
// TOB1 files.
func (d *dumper) nframes() int {
	n := int64(d.h.Len()) - d.hdr.Size()
	size := int64(d.lay.Stride)
	if d.tob3 != nil {
		size = int64(d.hdr.Table.FrameSize)
	}
	if n <= 0 || size <= 0 {
		return 0
	}
	return int(n / size)
}

func (d *dumper) frameSize() int {
	if d.tob3 != nil {
		return d.hdr.Table.FrameSize
	}
	return d.lay.Stride
}

func (d *dumper) read(i int) (int64, []byte, error) {
	if i < 0 || i >= d.nframes() {
		return 0, nil, fmt.Errorf("frame index %d out of range [0, %d)", i, d.nframes())
	}
	size := d.frameSize()
	off := d.hdr.Size() + int64(i)*int64(size)
	p := make([]byte, size)
	_, err := d.h.ReadAt(p, off)
	if err != nil {
		return off, nil, fmt.Errorf("could not read frame %d: %w", i, err)
	}
	return off, p, nil
}

func (d *dumper) frames() error {
	n := d.nframes()
	if d.tob3 == nil {
		fmt.Fprintf(d.w, "records:    %d\n", n)
		return nil
	}

	fmt.Fprintf(d.w, "frames:     %d\n", n)
	for i := 0; i < n; i++ {
		off, p, err := d.read(i)
		if err != nil {
			return err
		}
		ftr := tob.ParseFooter(p[len(p)-4:], d.hdr.Table.Validation)
		fmt.Fprintf(d.w, "  frame[%04d] @%010d %v\n", i, off, ftr)
		if ftr.Valid && (ftr.Empty() || ftr.Minor()) {
			for j, m := range tob.MinorFrames(p, ftr, d.hdr.Table.Validation) {
				mftr := tob.ParseFooter(m[len(m)-4:], d.hdr.Table.Validation)
				fmt.Fprintf(d.w, "    minor[%02d] %v\n", j, mftr)
			}
		}
	}
	return nil
}

// dump displays the decoded rows of frame i.
func (d *dumper) dump(i int) error {
	off, p, err := d.read(i)
	if err != nil {
		return err
	}

	var rows [][]tob.Value
	switch d.tob3 {
	case nil:
		dec, err := tob.NewTOB1Decoder(io.MultiReader(
			io.NewSectionReader(d.h, 0, d.hdr.Size()),
			bytes.NewReader(p),
		))
		if err != nil {
			return fmt.Errorf("could not decode record %d: %w", i, err)
		}
		var blk tob.Block
		err = dec.Decode(&blk)
		if err != nil {
			return fmt.Errorf("could not decode record %d: %w", i, err)
		}
		rows = blk.Rows
	default:
		ftr := tob.ParseFooter(p[len(p)-4:], d.hdr.Table.Validation)
		fmt.Fprintf(d.w, "frame[%04d] @%010d %v\n", i, off, ftr)
		rows, err = d.tob3.DecodeFrame(nil, p)
		if err != nil {
			return fmt.Errorf("could not decode frame %d: %w", i, err)
		}
	}

	for _, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = v.Format(d.tf)
		}
		fmt.Fprintf(d.w, "  %s\n", strings.Join(cells, ","))
	}
	return nil
}

const help = `commands:
  header        display the file header
  layout        display the record layout
  frames        display all frame footers
  frame [N]     display the decoded rows of frame N (default: current frame)
  next, n       display the decoded rows of the next frame
  help, h       display this help
  quit, q       quit
`

// exec runs one command of the interactive shell.
func (d *dumper) exec(line string) (quit bool, err error) {
	defer d.w.Flush()

	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}

	switch toks[0] {
	case "quit", "q", "exit":
		return true, nil
	case "help", "h", "?":
		fmt.Fprint(d.w, help)
	case "header", "hdr":
		d.header()
	case "layout":
		d.layout()
	case "frames":
		return false, d.frames()
	case "frame", "f":
		if len(toks) > 1 {
			i, err := strconv.Atoi(toks[1])
			if err != nil {
				return false, fmt.Errorf("invalid frame index %q: %w", toks[1], err)
			}
			d.frame = i
		}
		return false, d.dump(d.frame)
	case "next", "n":
		err := d.dump(d.frame)
		if err == nil {
			d.frame++
		}
		return false, err
	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", toks[0])
	}
	return false, nil
}

func (d *dumper) shell() error {
	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	prompt := d.name + "> "
	for {
		line, err := term.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		term.AppendHistory(line)

		quit, err := d.exec(line)
		if err != nil {
			fmt.Fprintf(d.w, "error: %+v\n", err)
			d.w.Flush()
		}
		if quit {
			return nil
		}
	}
}
