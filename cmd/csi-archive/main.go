// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command csi-archive rearranges the logger files found at the top of
// consumed directories into their dated YYYY/MM/DD trees.
package main // import "github.com/go-lpc/csi/cmd/csi-archive"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/csi/archive"
	"github.com/go-lpc/csi/internal/config"
)

var (
	msg = log.New(os.Stdout, "csi-archive: ", 0)
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("csi-archive", flag.ExitOnError)

		cfgName = fset.String("cfg", "", "path to TOML configuration file")
		verbose = fset.Bool("v", false, "enable verbose mode")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: csi-archive [OPTIONS] dir1 [dir2 [...]]

ex:
 $> csi-archive /data/consumed

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		msg.Fatalf("missing input directory")
	}

	cfg := config.Default()
	if *cfgName != "" {
		cfg, err = config.Load(*cfgName)
		if err != nil {
			msg.Fatalf("could not load configuration: %+v", err)
		}
	}

	var w io.Writer = io.Discard
	if *verbose {
		w = os.Stdout
	}

	for _, dir := range fset.Args() {
		n, err := process(w, dir, cfg.Tables)
		if err != nil {
			msg.Fatalf("could not tidy %q: %+v", dir, err)
		}
		msg.Printf("%s: moved %d file(s)", dir, n)
	}
}

func process(w io.Writer, dir string, tables map[byte]string) (int, error) {
	moved, err := archive.Tidy(dir, tables)
	for _, fname := range moved {
		fmt.Fprintf(w, "%s\n", fname)
	}
	return len(moved), err
}
