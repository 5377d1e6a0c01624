// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tob2toa converts TOB1 and TOB3 binary datalogger tables into
// TOA5 text tables.
//
// Usage: tob2toa [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tob2toa -o ./out -ts millisec ./hamSg8muk.bdat
//	tob2toa: hamSg8muk.bdat: TOB3, 18000 records (intended: 18000), 600 frames, 0 invalid
package main // import "github.com/go-lpc/csi/cmd/tob2toa"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-lpc/csi/archive"
	"github.com/go-lpc/csi/tob"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	msg = log.New(os.Stdout, "tob2toa: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("tob2toa", flag.ExitOnError)

		odir    = fset.String("o", "", "output directory (default: next to input files)")
		tsfmt   = fset.String("ts", "minimal", "timestamp format (minimal, millisec, sec, microsec)")
		njobs   = fset.Int("j", runtime.NumCPU(), "number of files converted concurrently")
		useMmap = fset.Bool("mmap", false, "read input files through a memory map")
		invalid = fset.Int("max-invalid", tob.DefaultMaxInvalidFrames, "consecutive invalid frames before giving up on a file")
		verbose = fset.Bool("v", false, "enable verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: tob2toa [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

ex:
 $> tob2toa -o ./out -ts millisec ./hamSg8muk.bdat

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		msg.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		msg.Fatalf("missing input file(s)")
	}

	tf, err := tob.ParseTimeFormat(*tsfmt)
	if err != nil {
		msg.Fatalf("invalid timestamp format: %+v", err)
	}

	opts := []tob.Option{
		tob.WithTimeFormat(tf),
		tob.WithMaxInvalidFrames(*invalid),
		tob.WithMmap(*useMmap),
	}
	if *verbose {
		opts = append(opts, tob.WithLogger(msg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, *odir, *njobs, fset.Args(), opts...)
	if err != nil {
		msg.Fatalf("could not convert %d file(s)", len(multierr.Errors(err)))
	}
}

func run(ctx context.Context, odir string, njobs int, fnames []string, opts ...tob.Option) error {
	if odir != "" {
		err := os.MkdirAll(odir, 0755)
		if err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}
	if njobs <= 0 {
		njobs = 1
	}

	var (
		grp  errgroup.Group
		mu   sync.Mutex
		errs error
	)
	grp.SetLimit(njobs)
	for _, fname := range fnames {
		fname := fname
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := process(ctx, outputName(odir, fname), fname, opts...)
			if err != nil {
				msg.Printf("%+v", err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func process(ctx context.Context, oname, fname string, opts ...tob.Option) error {
	stats, err := tob.ConvertFile(ctx, oname, fname, opts...)
	if err != nil {
		return fmt.Errorf("could not convert %q: %w", fname, err)
	}
	msg.Printf(
		"%s: %v, %d records (intended: %d), %d frames, %d invalid",
		filepath.Base(fname), stats.Format, stats.Records, stats.Intended,
		stats.Frames, stats.InvalidFrames,
	)
	return nil
}

// outputName returns the name of the TOA5 table converted from fname.
// Logger files are named after their site, table and date.
func outputName(odir, fname string) string {
	dir := filepath.Dir(fname)
	if odir != "" {
		dir = odir
	}

	stem := strings.TrimSuffix(filepath.Base(fname), filepath.Ext(fname))
	if n, err := archive.ParseName(fname, nil); err == nil {
		stem = n.Stem()
	}
	return filepath.Join(dir, stem+".dat")
}
