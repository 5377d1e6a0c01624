// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store loads converted datalogger tables into a relational
// database and queries what has been loaded.
package store // import "github.com/go-lpc/csi/store"

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Config describes how to connect to the database.
type Config struct {
	Driver   string // "postgres" or "mysql"
	Host     string
	Port     int
	Name     string // database name
	User     string
	Password string
	SSLMode  string // PostgreSQL only
}

// DSN returns the data source name for cfg, in the format of its driver.
func DSN(cfg Config) (string, error) {
	switch cfg.Driver {
	case "postgres":
		kvs := []string{
			"host=" + quoteDSN(cfg.Host),
			"dbname=" + quoteDSN(cfg.Name),
			"user=" + quoteDSN(cfg.User),
		}
		if cfg.Port != 0 {
			kvs = append(kvs, "port="+strconv.Itoa(cfg.Port))
		}
		if cfg.Password != "" {
			kvs = append(kvs, "password="+quoteDSN(cfg.Password))
		}
		if cfg.SSLMode != "" {
			kvs = append(kvs, "sslmode="+quoteDSN(cfg.SSLMode))
		}
		return strings.Join(kvs, " "), nil

	case "mysql":
		addr := cfg.Host
		if cfg.Port != 0 {
			addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		}
		mcfg := mysql.NewConfig()
		mcfg.User = cfg.User
		mcfg.Passwd = cfg.Password
		mcfg.Net = "tcp"
		mcfg.Addr = addr
		mcfg.DBName = cfg.Name
		mcfg.ParseTime = true
		mcfg.Loc = time.UTC
		return mcfg.FormatDSN(), nil
	}
	return "", fmt.Errorf("store: unknown database driver %q", cfg.Driver)
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// DB exposes convenience methods to load datalogger tables into a
// database and to query them.
type DB struct {
	db     *sql.DB
	driver string
}

// Open opens a connection to the database described by dsn.
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: could not open %s db: %w", driver, err)
	}

	err = ping(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: could not ping %s db: %w", driver, err)
	}

	return &DB{db: db, driver: driver}, nil
}

// OpenConfig opens a connection to the database described by cfg.
func OpenConfig(cfg Config) (*DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	return Open(cfg.Driver, dsn)
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.db.Close()
}

// Driver returns the name of the database driver.
func (db *DB) Driver() string { return db.driver }

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, db.bind(query), args...)
}

// bind rewrites '?' placeholders into the '$n' form PostgreSQL expects.
func (db *DB) bind(query string) string {
	if db.driver != "postgres" || !strings.Contains(query, "?") {
		return query
	}
	var (
		b strings.Builder
		n = 0
	)
	for _, c := range query {
		if c != '?' {
			b.WriteRune(c)
			continue
		}
		n++
		b.WriteString("$" + strconv.Itoa(n))
	}
	return b.String()
}

// quote quotes an identifier for the database dialect.
func (db *DB) quote(name string) string {
	switch db.driver {
	case "postgres":
		return pq.QuoteIdentifier(name)
	default:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
}

// TableName returns the name of the database table holding the data of
// the datalogger table name.
func TableName(name string) string {
	return "data_" + name
}

// LastValid returns the most recent timestamp loaded for the given
// datalogger table and tower.
// LastValid returns the zero time if nothing was loaded yet.
func (db *DB) LastValid(ctx context.Context, table string, tower int) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var valid sql.NullTime
	rows, err := db.QueryContext(
		ctx,
		"SELECT MAX(valid) FROM "+db.quote(TableName(table))+" WHERE tower=?",
		tower,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: could not query last valid time of %q: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&valid)
		if err != nil {
			return time.Time{}, fmt.Errorf("store: could not get last valid time of %q: %w", table, err)
		}
	}

	if err := rows.Err(); err != nil {
		return time.Time{}, fmt.Errorf("store: could not scan db for last valid time of %q: %w", table, err)
	}

	if err := ctx.Err(); err != nil {
		return time.Time{}, fmt.Errorf("store: context error while retrieving last valid time of %q: %w", table, err)
	}

	if !valid.Valid {
		return time.Time{}, nil
	}
	return valid.Time.UTC(), nil
}

// Count returns the number of rows loaded for the given datalogger table
// and tower, with a timestamp within [beg, end).
func (db *DB) Count(ctx context.Context, table string, tower int, beg, end time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var n int64
	rows, err := db.QueryContext(
		ctx,
		"SELECT COUNT(*) FROM "+db.quote(TableName(table))+" WHERE tower=? AND valid>=? AND valid<?",
		tower, beg.UTC(), end.UTC(),
	)
	if err != nil {
		return n, fmt.Errorf("store: could not query rows count of %q: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&n)
		if err != nil {
			return n, fmt.Errorf("store: could not get rows count of %q: %w", table, err)
		}
	}

	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("store: could not scan db for rows count of %q: %w", table, err)
	}

	if err := ctx.Err(); err != nil {
		return n, fmt.Errorf("store: context error while retrieving rows count of %q: %w", table, err)
	}

	return n, nil
}
