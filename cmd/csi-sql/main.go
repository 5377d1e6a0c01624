// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command csi-sql inspects the datalogger tables loaded into the database.
//
// Example:
//
//	$> csi-sql -cfg /etc/csi2db.toml -table sonic -site sto
//	$> csi-sql -cfg /etc/csi2db.toml -table sonic -site sto -beg 2016-08-01 -end 2016-09-01
package main // import "github.com/go-lpc/csi/cmd/csi-sql"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-lpc/csi/internal/config"
	"github.com/go-lpc/csi/store"
)

func main() {
	log.SetPrefix("csi-sql: ")
	log.SetFlags(0)

	var (
		cfgName = flag.String("cfg", "", "path to TOML configuration file")
		table   = flag.String("table", "sonic", "datalogger table to inspect")
		site    = flag.String("site", "sto", "site to inspect")
		beg     = flag.String("beg", "", "start date (YYYY-MM-DD) of the rows to count")
		end     = flag.String("end", "", "end date (YYYY-MM-DD, exclusive) of the rows to count")
	)

	flag.Parse()

	cfg := config.Default()
	if *cfgName != "" {
		var err error
		cfg, err = config.Load(*cfgName)
		if err != nil {
			log.Fatalf("could not load configuration: %+v", err)
		}
	}

	tower, ok := cfg.Tower(*site)
	if !ok {
		log.Fatalf("unknown site %q", *site)
	}

	log.Printf("table: %q", *table)
	log.Printf("site:  %q (tower=%d)", *site, tower)

	db, err := store.OpenConfig(cfg.DB)
	if err != nil {
		log.Fatalf("could not open db: %+v", err)
	}
	defer db.Close()

	err = doQuery(context.Background(), db, *table, tower, *beg, *end)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(ctx context.Context, db *store.DB, table string, tower int, beg, end string) error {
	last, err := db.LastValid(ctx, table, tower)
	if err != nil {
		return fmt.Errorf("could not get last valid time: %w", err)
	}
	if last.IsZero() {
		log.Printf("last valid: none")
		return nil
	}
	log.Printf("last valid: %s", last.Format(time.RFC3339Nano))

	if beg == "" && end == "" {
		return nil
	}

	lo, hi, err := dateRange(last, beg, end)
	if err != nil {
		return err
	}

	n, err := db.Count(ctx, table, tower, lo, hi)
	if err != nil {
		return fmt.Errorf("could not count rows: %w", err)
	}
	log.Printf("rows in [%s, %s): %d", lo.Format("2006-01-02"), hi.Format("2006-01-02"), n)
	return nil
}

// dateRange returns the [lo, hi) range to count.
// A missing start is the day of last, a missing end the day after start.
func dateRange(last time.Time, beg, end string) (lo, hi time.Time, err error) {
	const layout = "2006-01-02"
	switch beg {
	case "":
		lo = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	default:
		lo, err = time.ParseInLocation(layout, beg, time.UTC)
		if err != nil {
			return lo, hi, fmt.Errorf("invalid start date: %w", err)
		}
	}
	switch end {
	case "":
		hi = lo.AddDate(0, 0, 1)
	default:
		hi, err = time.ParseInLocation(layout, end, time.UTC)
		if err != nil {
			return lo, hi, fmt.Errorf("invalid end date: %w", err)
		}
	}
	if !lo.Before(hi) {
		return lo, hi, fmt.Errorf("invalid date range [%s, %s)", beg, end)
	}
	return lo, hi, nil
}
