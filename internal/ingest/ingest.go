// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ingest converts the binary tables retrieved from dataloggers and
// loads them into the database.
package ingest // import "github.com/go-lpc/csi/internal/ingest"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-lpc/csi/archive"
	"github.com/go-lpc/csi/internal/config"
	"github.com/go-lpc/csi/store"
	"github.com/go-lpc/csi/tob"
	json "github.com/goccy/go-json"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Loader loads a TOA5 table into a database.
type Loader interface {
	Load(ctx context.Context, tbl *store.Table, opt store.LoadOptions) (int, error)
}

// Notifier reports the failures of a run.
type Notifier interface {
	Failures(subject string, errs []error) error
}

// Pipeline processes logger files found under its data root.
type Pipeline struct {
	cfg   config.Config
	db    Loader
	alert Notifier
	msg   *log.Logger
	now   func() time.Time
}

// New returns a new pipeline.
// A nil notifier disables alerts, a nil logger discards messages.
func New(cfg config.Config, db Loader, alert Notifier, msg *log.Logger) *Pipeline {
	if msg == nil {
		msg = log.New(io.Discard, "ingest: ", 0)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		cfg:   cfg,
		db:    db,
		alert: alert,
		msg:   msg,
		now:   time.Now,
	}
}

// File describes the processing of one file.
type File struct {
	Name     string `json:"name"`
	Table    string `json:"table,omitempty"`
	Output   string `json:"output,omitempty"`
	Dest     string `json:"dest,omitempty"`
	Records  int    `json:"records"`
	Invalid  int    `json:"invalid_frames"`
	Loaded   int    `json:"loaded"`
	Warning  string `json:"warning,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// Report summarizes a run of the pipeline.
type Report struct {
	Start    time.Time `json:"start"`
	Stop     time.Time `json:"stop"`
	Files    []File    `json:"files"`
	Loaded   int       `json:"loaded"`
	Failures int       `json:"failures"`
}

// WriteJSON writes the report as indented JSON.
func (r Report) WriteJSON(w io.Writer) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("ingest: could not marshal report: %w", err)
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	if err != nil {
		return fmt.Errorf("ingest: could not write report: %w", err)
	}
	return nil
}

// WriteFile writes the report as JSON into fname.
func (r Report) WriteFile(fname string) error {
	err := os.MkdirAll(filepath.Dir(fname), 0755)
	if err != nil {
		return fmt.Errorf("ingest: could not create report directory: %w", err)
	}
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("ingest: could not create report file: %w", err)
	}
	defer f.Close()

	err = r.WriteJSON(f)
	if err != nil {
		return err
	}
	return f.Close()
}

// Run processes the named logger files of the data root, or all of them
// when fnames is empty.
// Run returns the failures of the run, except the ones of quiet tables.
func (p *Pipeline) Run(ctx context.Context, fnames ...string) (Report, error) {
	if len(fnames) == 0 {
		var err error
		fnames, err = archive.List(p.cfg.DataRoot)
		if err != nil {
			return Report{}, fmt.Errorf("ingest: could not list logger files: %w", err)
		}
	}
	return p.run(ctx, fnames, p.process)
}

// Reimport loads again the TOA5 tables stored in the dated directories
// of the data root between beg and end, inclusive.
func (p *Pipeline) Reimport(ctx context.Context, beg, end time.Time) (Report, error) {
	dirs, err := archive.Dirs(p.cfg.DataRoot, beg, end)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: could not list directories: %w", err)
	}

	var fnames []string
	for _, dir := range dirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.dat"))
		if err != nil {
			return Report{}, fmt.Errorf("ingest: could not list tables of %q: %w", dir, err)
		}
		fnames = append(fnames, matches...)
	}
	sort.Strings(fnames)

	return p.run(ctx, fnames, p.reload)
}

type processFunc func(ctx context.Context, fname string) (File, bool, error)

func (p *Pipeline) run(ctx context.Context, fnames []string, process processFunc) (Report, error) {
	var (
		report = Report{
			Start: p.now().UTC(),
			Files: make([]File, len(fnames)),
		}
		mu   sync.Mutex
		errs error
	)

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(p.cfg.Workers)
	for i, fname := range fnames {
		i, fname := i, fname
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			f, quiet, err := process(ctx, fname)
			f.Duration = time.Since(start).Round(time.Millisecond).String()
			report.Files[i] = f

			if err == nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			report.Failures++
			if !quiet {
				errs = multierr.Append(errs, err)
			}
			return nil
		})
	}
	err := grp.Wait()
	report.Stop = p.now().UTC()
	for _, f := range report.Files {
		report.Loaded += f.Loaded
	}

	if err != nil {
		errs = multierr.Append(errs, err)
	}

	if p.alert != nil && errs != nil {
		aerr := p.alert.Failures(p.cfg.Subject, multierr.Errors(errs))
		if aerr != nil {
			p.msg.Printf("could not send alert: %+v", aerr)
		}
	}

	return report, errs
}

// process converts a logger file, loads the resulting table and archives
// the logger file. Failed files are moved to quarantine.
func (p *Pipeline) process(ctx context.Context, fname string) (File, bool, error) {
	var (
		root  = p.cfg.DataRoot
		path  = fname
		f     = File{Name: filepath.Base(fname)}
		quiet = false
	)
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join(root, fname)
	}

	err := func() error {
		n, err := archive.ParseName(path, p.cfg.Tables)
		if err != nil {
			return err
		}
		f.Table = n.Table
		quiet = p.cfg.IsQuiet(n.Table)

		tower, ok := p.cfg.Tower(n.Site)
		if !ok {
			return fmt.Errorf("ingest: unknown site %q", n.Site)
		}

		oname := n.OutputPath(root)
		err = os.MkdirAll(filepath.Dir(oname), 0755)
		if err != nil {
			return fmt.Errorf("ingest: could not create output directory: %w", err)
		}

		stats, err := tob.ConvertFile(
			ctx, oname, path,
			tob.WithTimeFormat(p.cfg.TimeFormat),
			tob.WithMaxInvalidFrames(p.cfg.MaxInvalid),
			tob.WithLogger(p.msg),
		)
		f.Records = stats.Records
		f.Invalid = stats.InvalidFrames
		switch {
		case err == nil:
		case errors.Is(err, tob.ErrInvalidFrames) && stats.Records > 0:
			f.Warning = err.Error()
			p.msg.Printf("warning: %s: %+v", f.Name, err)
		default:
			if rerr := os.Remove(oname); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				p.msg.Printf("could not remove partial table %q: %+v", oname, rerr)
			}
			return err
		}
		p.msg.Printf("file: %s; records written: %d; header expected: %d", f.Name, stats.Records, stats.Intended)

		f.Output = oname + ".dat"
		err = os.Rename(oname, f.Output)
		if err != nil {
			return fmt.Errorf("ingest: could not rename converted table: %w", err)
		}

		f.Loaded, err = p.load(ctx, f.Output, n.Table, tower)
		if err != nil {
			return err
		}

		f.Dest, err = archive.Consume(root, path, n)
		if err != nil {
			return err
		}
		return nil
	}()
	if err == nil {
		return f, quiet, nil
	}

	err = fmt.Errorf("%s: %w", f.Name, err)
	f.Error = err.Error()
	dst, qerr := archive.Quarantine(root, path)
	if qerr != nil {
		err = multierr.Append(err, qerr)
	}
	f.Dest = dst

	switch {
	case quiet:
		p.msg.Printf("warning: %s failed, moved to %q: %v", f.Name, dst, err)
	default:
		p.msg.Printf("error: %s failed, moved to %q: %+v", f.Name, dst, err)
	}
	return f, quiet, err
}

// reload loads again an already converted table.
func (p *Pipeline) reload(ctx context.Context, fname string) (File, bool, error) {
	f := File{Name: filepath.Base(fname), Output: fname}
	n, err := archive.ParseStem(fname, p.cfg.Tables)
	if err != nil {
		f.Error = err.Error()
		return f, false, err
	}
	f.Table = n.Table
	quiet := p.cfg.IsQuiet(n.Table)

	tower, ok := p.cfg.Tower(n.Site)
	if !ok {
		err = fmt.Errorf("%s: ingest: unknown site %q", f.Name, n.Site)
		f.Error = err.Error()
		return f, quiet, err
	}

	f.Loaded, err = p.load(ctx, fname, n.Table, tower)
	if err != nil {
		err = fmt.Errorf("%s: %w", f.Name, err)
		f.Error = err.Error()
		p.msg.Printf("error: could not reimport %s: %+v", f.Name, err)
		return f, quiet, err
	}
	return f, quiet, nil
}

func (p *Pipeline) load(ctx context.Context, fname, table string, tower int) (int, error) {
	tbl, err := store.ReadTOA5(fname)
	if err != nil {
		return 0, err
	}
	n, err := p.db.Load(ctx, tbl, store.LoadOptions{
		Table: table,
		Tower: tower,
		Ints:  p.cfg.Ints,
	})
	if err != nil {
		return 0, err
	}
	p.msg.Printf("file: %s; rows loaded into %s: %d", filepath.Base(fname), store.TableName(table), n)
	return n, nil
}
