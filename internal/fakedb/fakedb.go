// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb holds types to fake an in-memory DB.
//
// Queries return the rows installed with Run.
// Statements executed within Record are logged and handed back to the caller.
package fakedb // import "github.com/go-lpc/csi/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"strings"
	"sync"
)

var query struct {
	mu   sync.Mutex
	rows Rows
}

var execs struct {
	mu   sync.Mutex
	log  []Exec
	fail map[string]error
}

// Run runs f with the database answering queries with rows.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) error {
	query.mu.Lock()
	defer query.mu.Unlock()
	query.rows = rows

	return f(ctx)
}

// Exec is a statement executed against the fake database.
// Transaction boundaries are logged as "BEGIN", "COMMIT" and "ROLLBACK".
type Exec struct {
	Query string
	Args  []driver.Value
}

// Record runs f and returns the statements it executed.
// Statements starting with one of the prefixes of fail return the
// associated error.
func Record(ctx context.Context, fail map[string]error, f func(ctx context.Context) error) ([]Exec, error) {
	execs.mu.Lock()
	execs.log = nil
	execs.fail = fail
	execs.mu.Unlock()

	err := f(ctx)

	execs.mu.Lock()
	defer execs.mu.Unlock()
	log := execs.log
	execs.log = nil
	execs.fail = nil
	return log, err
}

func record(q string, args []driver.Value) error {
	execs.mu.Lock()
	defer execs.mu.Unlock()
	for prefix, err := range execs.fail {
		if strings.HasPrefix(q, prefix) {
			return err
		}
	}
	var vs []driver.Value
	if len(args) > 0 {
		vs = make([]driver.Value, len(args))
		copy(vs, args)
	}
	execs.log = append(execs.log, Exec{Query: q, Args: vs})
	return nil
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

// Open returns a new connection to the database.
// The name is a string in a driver-specific format.
func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

// Prepare returns a prepared statement, bound to this connection.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

// Close invalidates and potentially stops any current
// prepared statements and transactions, marking this
// connection as no longer in use.
func (c *Conn) Close() error {
	return nil
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	err := record("BEGIN", nil)
	if err != nil {
		return nil, err
	}
	return &Tx{}, nil
}

type Tx struct{}

func (tx *Tx) Commit() error   { return record("COMMIT", nil) }
func (tx *Tx) Rollback() error { return record("ROLLBACK", nil) }

type Stmt struct {
	query string
}

// Close closes the statement.
func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns the number of placeholder parameters.
//
// NumInput returns -1: the sql package will not sanity check
// argument counts.
func (stmt *Stmt) NumInput() int {
	return -1
}

// Exec executes a query that doesn't return rows, such
// as an INSERT or UPDATE.
func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	err := record(stmt.query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

// Query executes a query that may return rows, such as a
// SELECT.
func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return &query.rows, nil
}

type Rows struct {
	Names  []string
	Values [][]driver.Value
}

// Columns returns the names of the columns.
func (rows *Rows) Columns() []string {
	return rows.Names
}

// Close closes the rows iterator.
func (rows *Rows) Close() error {
	return nil
}

// Next is called to populate the next row of data into
// the provided slice. The provided slice will be the same
// size as the Columns() are wide.
//
// Next returns io.EOF when there are no more rows.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Tx     = (*Tx)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
