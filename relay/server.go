// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package relay serves the tables of a directory of logger files, converted
// to TOA5, as a TDAQ output stream.
package relay // import "github.com/go-lpc/csi/relay"

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/csi/archive"
	"github.com/go-lpc/csi/tob"
	"golang.org/x/xerrors"
)

// Table is a converted table, as sent on the output stream.
type Table struct {
	Name    string // base name of the logger file
	Records uint32
	TOA5    []byte
}

// Encode encodes the table into a frame body.
func (tbl Table) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteStr(tbl.Name)
	enc.WriteU32(tbl.Records)
	enc.WriteStr(string(tbl.TOA5))
	if err := enc.Err(); err != nil {
		return nil, xerrors.Errorf("relay: could not encode table %q: %w", tbl.Name, err)
	}
	return buf.Bytes(), nil
}

// Decode decodes a table from a frame body.
func Decode(p []byte) (Table, error) {
	dec := tdaq.NewDecoder(bytes.NewReader(p))
	tbl := Table{
		Name:    dec.ReadStr(),
		Records: dec.ReadU32(),
		TOA5:    []byte(dec.ReadStr()),
	}
	if err := dec.Err(); err != nil {
		return tbl, xerrors.Errorf("relay: could not decode table: %w", err)
	}
	return tbl, nil
}

// Server converts the logger files of a directory and sends them out.
type Server struct {
	dir  string
	opts []tob.Option

	files []string
	data  chan []byte

	n     int // number of sent tables
	fails int
}

// NewServer returns a server converting the logger files of dir.
func NewServer(dir string, opts ...tob.Option) *Server {
	return &Server{
		dir:  dir,
		opts: opts,
		data: make(chan []byte, 16),
	}
}

func (srv *Server) scanFiles(ctx tdaq.Context) error {
	files, err := archive.List(srv.dir)
	if err != nil {
		return xerrors.Errorf("could not list logger files of %q: %w", srv.dir, err)
	}
	for _, fname := range files {
		ctx.Msg.Infof("found logger file %q", fname)
	}
	srv.files = files
	return nil
}

func (srv *Server) reset() {
	srv.data = make(chan []byte, 16)
	srv.n = 0
	srv.fails = 0
}

// OnConfig configures the server. The request body may hold the
// directory to serve.
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		dir := dec.ReadStr()
		if err := dec.Err(); err != nil {
			ctx.Msg.Errorf("could not decode /config request: %+v", err)
			return xerrors.Errorf("could not decode /config request: %w", err)
		}
		srv.dir = dir
	}
	ctx.Msg.Infof("serving %q", srv.dir)
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	srv.reset()
	err := srv.scanFiles(ctx)
	if err != nil {
		ctx.Msg.Errorf("could not scan files: %+v", err)
		return xerrors.Errorf("could not scan files: %w", err)
	}
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.reset()
	srv.files = nil
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> n=%d, failures=%d", srv.n, srv.fails)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return nil
}

// Output sends the next converted table.
func (srv *Server) Output(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Run converts the logger files found at /init, until they are all sent
// or the run is stopped.
func (srv *Server) Run(ctx tdaq.Context) error {
	for _, fname := range srv.files {
		tbl, err := srv.convert(ctx, fname)
		if err != nil {
			srv.fails++
			ctx.Msg.Errorf("could not convert %q: %+v", fname, err)
			continue
		}
		raw, err := tbl.Encode()
		if err != nil {
			return err
		}
		select {
		case <-ctx.Ctx.Done():
			return nil
		case srv.data <- raw:
			srv.n++
		}
	}
	<-ctx.Ctx.Done()
	return nil
}

func (srv *Server) convert(ctx tdaq.Context, fname string) (Table, error) {
	var (
		buf  = new(bytes.Buffer)
		opts = append(srv.opts[:len(srv.opts):len(srv.opts)], tob.WithOrigin(fname))
	)

	src, err := os.Open(filepath.Join(srv.dir, fname))
	if err != nil {
		return Table{}, err
	}
	defer src.Close()

	stats, err := tob.Convert(ctx.Ctx, buf, src, opts...)
	switch {
	case err == nil:
	case errors.Is(err, tob.ErrInvalidFrames) && stats.Records > 0:
		ctx.Msg.Infof("warning: %s: %+v", fname, err)
	default:
		return Table{}, fmt.Errorf("could not convert table (records=%d): %w", stats.Records, err)
	}
	ctx.Msg.Infof("file: %s; records: %d; frames: %d", fname, stats.Records, stats.Frames)

	return Table{
		Name:    fname,
		Records: uint32(stats.Records),
		TOA5:    buf.Bytes(),
	}, nil
}
