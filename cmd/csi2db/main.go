// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command csi2db converts the binary tables retrieved from the dataloggers
// and loads them into the database.
//
// Usage: csi2db [OPTIONS] [FILE1 [FILE2 ...]]
//
// Without file arguments, all the logger files of the data root are
// processed. Processed files are moved under <dataroot>/consumed,
// failed ones under <dataroot>/quarantine.
//
// Example:
//
//	$> csi2db -cfg /etc/csi2db.toml
//	$> csi2db -cfg /etc/csi2db.toml -dates 2016-08-01,2016-08-31
//	$> csi2db -cfg /etc/csi2db.toml -watch -pmon
package main // import "github.com/go-lpc/csi/cmd/csi2db"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-lpc/csi"
	"github.com/go-lpc/csi/alert"
	"github.com/go-lpc/csi/internal/config"
	"github.com/go-lpc/csi/internal/ingest"
	"github.com/go-lpc/csi/store"
	"github.com/sbinet/pmon"
)

func main() {
	xmain(os.Args[1:])
}

func xmain(args []string) {
	var (
		fset = flag.NewFlagSet("csi2db", flag.ExitOnError)

		cfgName  = fset.String("cfg", "", "path to TOML configuration file")
		dataroot = fset.String("dataroot", "", "root directory of the data files (overrides configuration)")
		dbname   = fset.String("db", "", "name of the database (overrides configuration)")
		dates    = fset.String("dates", "", "re-import the tables of an inclusive date range (YYYY-MM-DD,YYYY-MM-DD)")
		watch    = fset.Bool("watch", false, "watch the data root for new files")
		settle   = fset.Duration("settle", 5*time.Second, "time a new file must stay unmodified before processing (with -watch)")
		doMon    = fset.Bool("pmon", false, "enable pmon monitoring")
		freq     = fset.Duration("freq", 1*time.Second, "pmon frequency")
	)

	fset.Usage = func() {
		fmt.Printf(`Usage: csi2db [OPTIONS] [FILE1 [FILE2 ...]]

ex:
 $> csi2db -cfg /etc/csi2db.toml
 $> csi2db -cfg /etc/csi2db.toml -dates 2016-08-01,2016-08-31
 $> csi2db -cfg /etc/csi2db.toml -watch

options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	cfg := config.Default()
	if *cfgName != "" {
		cfg, err = config.Load(*cfgName)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
	}
	if *dataroot != "" {
		cfg.DataRoot = *dataroot
	}
	if *dbname != "" {
		cfg.DB.Name = *dbname
	}

	logs := filepath.Join(cfg.DataRoot, "logs")
	msg, flog, err := newLogger(logs)
	if err != nil {
		log.Fatalf("could not create logger: %+v", err)
	}
	defer flog.Close()

	if *doMon {
		err = monitor(logs, *freq, msg)
		if err != nil {
			msg.Fatalf("could not start monitoring: %+v", err)
		}
	}

	db, err := store.OpenConfig(cfg.DB)
	if err != nil {
		msg.Fatalf("could not open database: %+v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mail := alert.New(cfg.Mail.Merge(alert.FromEnv()), msg)
	pipe := ingest.New(cfg, db, mail, msg)

	msg.Printf("%s  STARTING  %s", strings.Repeat("*", 20), strings.Repeat("*", 20))
	if v, _ := csi.Version(); v != "" {
		msg.Printf("version: %s", v)
	}
	err = run(ctx, pipe, mode{
		dates:  *dates,
		watch:  *watch,
		settle: *settle,
		report: filepath.Join(logs, "csi2db-report.json"),
		fnames: fset.Args(),
	}, msg)
	if err != nil {
		msg.Fatalf("%+v", err)
	}
}

func newLogger(dir string) (*log.Logger, io.Closer, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "csi2db.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open log file: %w", err)
	}
	msg := log.New(io.MultiWriter(os.Stdout, f), "csi2db: ", log.LstdFlags|log.LUTC)
	return msg, f, nil
}

// monitor records the resource usage of the current process into dir.
// Monitoring stops with the process.
func monitor(dir string, freq time.Duration, msg *log.Logger) error {
	pid := os.Getpid()
	p, err := pmon.Monitor(pid)
	if err != nil {
		return fmt.Errorf("could not monitor pid=%d: %w", pid, err)
	}
	f, err := os.Create(filepath.Join(dir, "csi2db-pmon.log"))
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		defer f.Close()
		msg.Printf("run pmon (pid=%d)...", pid)
		err := p.Run()
		if err != nil {
			msg.Printf("could not run monitoring: %+v", err)
		}
	}()
	return nil
}

type mode struct {
	dates  string
	watch  bool
	settle time.Duration
	report string
	fnames []string
}

func run(ctx context.Context, pipe *ingest.Pipeline, m mode, msg *log.Logger) error {
	done := func(report ingest.Report, err error) {
		msg.Printf(
			"processed %d file(s): %d row(s) loaded, %d failure(s)",
			len(report.Files), report.Loaded, report.Failures,
		)
		if m.report != "" {
			if err := report.WriteFile(m.report); err != nil {
				msg.Printf("could not write report: %+v", err)
			}
		}
		if err != nil {
			msg.Printf("run failed: %+v", err)
		}
	}

	switch {
	case m.dates != "":
		beg, end, err := parseDates(m.dates)
		if err != nil {
			return err
		}
		report, err := pipe.Reimport(ctx, beg, end)
		done(report, err)
		return err

	case m.watch:
		return pipe.Watch(ctx, m.settle, done)

	default:
		report, err := pipe.Run(ctx, m.fnames...)
		done(report, err)
		return err
	}
}

// parseDates parses an inclusive date range of the form
// YYYY-MM-DD,YYYY-MM-DD.
func parseDates(v string) (beg, end time.Time, err error) {
	lhs, rhs, ok := strings.Cut(v, ",")
	if !ok {
		return beg, end, fmt.Errorf("invalid date range %q: missing comma", v)
	}
	beg, err = time.ParseInLocation("2006-01-02", strings.TrimSpace(lhs), time.UTC)
	if err != nil {
		return beg, end, fmt.Errorf("invalid start date: %w", err)
	}
	end, err = time.ParseInLocation("2006-01-02", strings.TrimSpace(rhs), time.UTC)
	if err != nil {
		return beg, end, fmt.Errorf("invalid end date: %w", err)
	}
	if end.Before(beg) {
		return beg, end, errors.New("invalid date range: end before start")
	}
	return beg, end, nil
}
