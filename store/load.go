// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

const timeLayout = "2006-01-02 15:04:05.999999999"

// LoadOptions describes how a TOA5 table is loaded.
type LoadOptions struct {
	Table string   // datalogger table name, rows go to data_<Table>
	Tower int      // site number stored in the tower column
	Ints  []string // glob patterns of the columns stored as integers
}

// columns returns the database columns a table is loaded into:
// the data columns, then tower and valid.
func (opt LoadOptions) columns(tbl *Table) []string {
	cols := make([]string, 0, len(tbl.Names)+1)
	for _, name := range tbl.Names {
		switch name {
		case "TIMESTAMP", "RECORD":
			continue
		}
		cols = append(cols, name)
	}
	return append(cols, "tower", "valid")
}

// Values converts the data rows of tbl into database values.
//
// RECORD is dropped, TIMESTAMP becomes the valid column (UTC), special
// float tokens and empty cells become NULL. Integer columns outside the
// (-32768, 32767) range are stored as NULL.
func (opt LoadOptions) Values(tbl *Table) ([]string, [][]interface{}, error) {
	its := tbl.Column("TIMESTAMP")
	if its < 0 {
		return nil, nil, fmt.Errorf("store: table %q has no TIMESTAMP column", opt.Table)
	}

	var (
		cols = opt.columns(tbl)
		rows = make([][]interface{}, 0, len(tbl.Rows))
	)
	for i, cells := range tbl.Rows {
		row := make([]interface{}, 0, len(cols))
		for j, cell := range cells {
			switch tbl.Names[j] {
			case "TIMESTAMP", "RECORD":
				continue
			}
			row = append(row, opt.value(tbl.Names[j], cell))
		}
		valid, err := time.ParseInLocation(timeLayout, cells[its], time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("store: row %d: invalid timestamp %q: %w", i, cells[its], err)
		}
		row = append(row, opt.Tower, valid)
		rows = append(rows, row)
	}
	return cols, rows, nil
}

func (opt LoadOptions) value(name, cell string) interface{} {
	switch strings.ToUpper(cell) {
	case "", "NAN", "INF", "-INF":
		return nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return cell
	}
	if matchAny(opt.Ints, name) {
		if f <= -32768 || f >= 32767 {
			return nil
		}
		return int64(math.RoundToEven(f))
	}
	return f
}

// Load inserts the rows of tbl into the data_<table> table, in a single
// transaction. PostgreSQL databases are loaded with COPY.
// Load returns the number of loaded rows.
func (db *DB) Load(ctx context.Context, tbl *Table, opt LoadOptions) (int, error) {
	cols, rows, err := opt.Values(tbl)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("store: table %q: %w", opt.Table, ErrEmpty)
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: could not start transaction: %w", err)
	}
	defer tx.Rollback()

	switch db.driver {
	case "postgres":
		err = db.copyIn(ctx, tx, TableName(opt.Table), cols, rows)
	default:
		err = db.insert(ctx, tx, TableName(opt.Table), cols, rows)
	}
	if err != nil {
		return 0, err
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("store: could not commit %d rows to %q: %w", len(rows), opt.Table, err)
	}
	return len(rows), nil
}

func (db *DB) copyIn(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]interface{}) error {
	_, err := tx.ExecContext(ctx, "SET LOCAL TIME ZONE 'UTC'")
	if err != nil {
		return fmt.Errorf("store: could not set time zone: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, cols...))
	if err != nil {
		return fmt.Errorf("store: could not prepare COPY to %q: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		_, err = stmt.ExecContext(ctx, row...)
		if err != nil {
			return fmt.Errorf("store: could not copy row %d to %q: %w", i, table, err)
		}
	}

	_, err = stmt.ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("store: could not flush COPY to %q: %w", table, err)
	}

	return stmt.Close()
}

func (db *DB) insert(ctx context.Context, tx *sql.Tx, table string, cols []string, rows [][]interface{}) error {
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = db.quote(col)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		db.quote(table), strings.Join(names, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)

	stmt, err := tx.PrepareContext(ctx, db.bind(query))
	if err != nil {
		return fmt.Errorf("store: could not prepare insertion into %q: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		_, err = stmt.ExecContext(ctx, row...)
		if err != nil {
			return fmt.Errorf("store: could not insert row %d into %q: %w", i, table, err)
		}
	}

	return stmt.Close()
}
