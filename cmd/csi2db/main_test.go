// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/csi/internal/config"
	"github.com/go-lpc/csi/internal/fakedb"
	"github.com/go-lpc/csi/internal/ingest"
	"github.com/go-lpc/csi/store"
	json "github.com/goccy/go-json"
)

func TestParseDates(t *testing.T) {
	for _, tc := range []struct {
		v        string
		beg, end time.Time
		err      bool
	}{
		{
			v:   "2016-08-01,2016-08-31",
			beg: time.Date(2016, time.August, 1, 0, 0, 0, 0, time.UTC),
			end: time.Date(2016, time.August, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			v:   "2016-08-01, 2016-08-01",
			beg: time.Date(2016, time.August, 1, 0, 0, 0, 0, time.UTC),
			end: time.Date(2016, time.August, 1, 0, 0, 0, 0, time.UTC),
		},
		{v: "2016-08-01", err: true},
		{v: "2016-08-31,2016-08-01", err: true},
		{v: "2016-08-01,yesterday", err: true},
		{v: "today,2016-08-01", err: true},
	} {
		t.Run(tc.v, func(t *testing.T) {
			beg, end, err := parseDates(tc.v)
			switch {
			case err != nil && !tc.err:
				t.Fatalf("could not parse dates: %+v", err)
			case err == nil && tc.err:
				t.Fatalf("expected an error")
			case err != nil:
				return
			}
			if !beg.Equal(tc.beg) || !end.Equal(tc.end) {
				t.Fatalf("invalid range: got=[%v, %v], want=[%v, %v]", beg, end, tc.beg, tc.end)
			}
		})
	}
}

const toa5 = `"TOA5","ham","CR3000","1234","CR3000.Std.31","CPU:ham.CR3","3133","sonic","hamSg8muk.bdat"
"TIMESTAMP","RECORD","Ux","Diag_sonic"
"TS","RN","m/s",""
"","","Smp","Smp"
"2016-08-22 19:20:00",0,0.5,0
"2016-08-22 19:20:00.1",1,"NAN",99999
`

func TestRunReimport(t *testing.T) {
	root := t.TempDir()
	fname := filepath.Join(root, "2016", "08", "22", "ham_sonic_160822-1920.dat")
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		t.Fatalf("could not create directory: %+v", err)
	}
	err = os.WriteFile(fname, []byte(toa5), 0644)
	if err != nil {
		t.Fatalf("could not write TOA5 file: %+v", err)
	}

	db, err := store.Open("fakedb", "")
	if err != nil {
		t.Fatalf("could not open db: %+v", err)
	}
	defer db.Close()

	cfg := config.Default()
	cfg.DataRoot = root
	cfg.Workers = 1

	var (
		msg    = log.New(io.Discard, "csi2db: ", 0)
		pipe   = ingest.New(cfg, db, nil, msg)
		report = filepath.Join(root, "logs", "report.json")
	)

	execs, err := fakedb.Record(context.Background(), nil, func(ctx context.Context) error {
		return run(ctx, pipe, mode{dates: "2016-08-22,2016-08-22", report: report}, msg)
	})
	if err != nil {
		t.Fatalf("could not reimport: %+v", err)
	}

	var inserts int
	for _, exec := range execs {
		if strings.HasPrefix(exec.Query, "INSERT INTO `data_sonic`") {
			inserts++
		}
	}
	if got, want := inserts, 2; got != want {
		t.Fatalf("invalid number of inserted rows: got=%d, want=%d", got, want)
	}

	raw, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("could not read report: %+v", err)
	}
	var rep ingest.Report
	err = json.Unmarshal(raw, &rep)
	if err != nil {
		t.Fatalf("could not decode report: %+v", err)
	}
	if got, want := rep.Loaded, 2; got != want {
		t.Fatalf("invalid number of loaded rows: got=%d, want=%d", got, want)
	}
}

func TestRunEmpty(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.DataRoot = root

	db, err := store.Open("fakedb", "")
	if err != nil {
		t.Fatalf("could not open db: %+v", err)
	}
	defer db.Close()

	msg := log.New(io.Discard, "csi2db: ", 0)
	err = run(context.Background(), ingest.New(cfg, db, nil, msg), mode{}, msg)
	if err != nil {
		t.Fatalf("could not run on empty data root: %+v", err)
	}

	err = run(context.Background(), ingest.New(cfg, db, nil, msg), mode{dates: "bad"}, msg)
	if err == nil {
		t.Fatalf("expected an error on invalid date range")
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	msg, f, err := newLogger(dir)
	if err != nil {
		t.Fatalf("could not create logger: %+v", err)
	}
	msg.Printf("hello")
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close log file: %+v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "csi2db.log"))
	if err != nil {
		t.Fatalf("could not read log file: %+v", err)
	}
	if !strings.Contains(string(raw), "csi2db: ") || !strings.Contains(string(raw), "hello") {
		t.Fatalf("invalid log file content: %q", raw)
	}
}
