// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tob-srv starts a TDAQ server streaming the logger files of a
// directory, converted to TOA5, on its /toa5 output.
//
// Example:
//
//	$> tob-srv -lvl dbg -id tob-srv-01 /data/incoming
package main // import "github.com/go-lpc/csi/cmd/tob-srv"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/csi/relay"
)

func main() {
	cmd := flags.New()

	dir := "."
	if len(cmd.Args) > 0 {
		dir = cmd.Args[0]
	}

	dev := relay.NewServer(dir)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/toa5", dev.Output)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
