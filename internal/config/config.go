// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the configuration of the datalogger ingestion
// pipeline from a TOML file.
package config // import "github.com/go-lpc/csi/internal/config"

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-lpc/csi/alert"
	"github.com/go-lpc/csi/archive"
	"github.com/go-lpc/csi/store"
	"github.com/go-lpc/csi/tob"
)

// Config is the configuration of the ingestion pipeline.
type Config struct {
	DataRoot   string          // directory holding the incoming .bdat files
	DB         store.Config    // database connection
	Sites      map[string]int  // tower number of each site
	Tables     map[byte]string // datalogger table of each file name code
	Ints       []string        // glob patterns of integer columns
	Quiet      []string        // tables whose failures are only warnings
	Workers    int             // number of files processed concurrently
	MaxInvalid int             // consecutive invalid frames before giving up
	TimeFormat tob.TimeFormat  // timestamp rendering of the TOA5 tables
	Mail       alert.Config    // failure alerts
	Subject    string          // subject of the failure alerts
}

// Default returns the default configuration.
func Default() Config {
	tables := make(map[byte]string, len(archive.DefaultTables))
	for k, v := range archive.DefaultTables {
		tables[k] = v
	}
	return Config{
		DataRoot: ".",
		DB: store.Config{
			Driver: "postgres",
			Host:   "localhost",
			Name:   "talltowers",
			User:   "tt_script",
		},
		Sites:      map[string]int{"ham": 0, "sto": 1},
		Tables:     tables,
		Ints:       []string{"Diag_*"},
		Quiet:      []string{"monitor"},
		Workers:    runtime.NumCPU(),
		MaxInvalid: tob.DefaultMaxInvalidFrames,
		TimeFormat: tob.TimeMinimal,
		Subject:    "Talltowers - FAILURE",
	}
}

type fileConfig struct {
	DataRoot   string            `toml:"dataroot"`
	DB         dbConfig          `toml:"db"`
	Sites      map[string]int    `toml:"sites"`
	Tables     map[string]string `toml:"tables"`
	Ints       []string          `toml:"ints"`
	Quiet      []string          `toml:"quiet_tables"`
	Workers    int               `toml:"workers"`
	MaxInvalid int               `toml:"max_invalid"`
	TimeFormat string            `toml:"time_format"`
	Mail       alert.Config      `toml:"mail"`
	Subject    string            `toml:"subject"`
}

type dbConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
}

// Load reads the configuration file fname.
// Values missing from the file keep their default value, relative
// data roots are resolved against the directory of fname.
func Load(fname string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(fname, &raw)
	if err != nil {
		return cfg, fmt.Errorf("config: could not decode %q: %w", fname, err)
	}

	if keys := meta.Undecoded(); len(keys) != 0 {
		return cfg, fmt.Errorf("config: unknown keys in %q: %v", fname, keys)
	}

	if meta.IsDefined("dataroot") {
		cfg.DataRoot = strings.TrimSpace(raw.DataRoot)
		if !filepath.IsAbs(cfg.DataRoot) {
			cfg.DataRoot = filepath.Join(filepath.Dir(fname), cfg.DataRoot)
		}
	}

	for _, kv := range []struct {
		key string
		dst *string
		src string
	}{
		{"db.driver", &cfg.DB.Driver, raw.DB.Driver},
		{"db.host", &cfg.DB.Host, raw.DB.Host},
		{"db.name", &cfg.DB.Name, raw.DB.Name},
		{"db.user", &cfg.DB.User, raw.DB.User},
		{"db.password", &cfg.DB.Password, raw.DB.Password},
		{"db.sslmode", &cfg.DB.SSLMode, raw.DB.SSLMode},
		{"subject", &cfg.Subject, raw.Subject},
	} {
		if meta.IsDefined(strings.Split(kv.key, ".")...) {
			*kv.dst = strings.TrimSpace(kv.src)
		}
	}

	if meta.IsDefined("db", "port") {
		cfg.DB.Port = raw.DB.Port
	}

	if meta.IsDefined("sites") {
		cfg.Sites = raw.Sites
	}

	if meta.IsDefined("tables") {
		cfg.Tables = make(map[byte]string, len(raw.Tables))
		for k, v := range raw.Tables {
			if len(k) != 1 || k[0] < 'A' || 'Z' < k[0] {
				return cfg, fmt.Errorf("config: invalid table code %q in %q", k, fname)
			}
			cfg.Tables[k[0]] = strings.TrimSpace(v)
		}
	}

	if meta.IsDefined("ints") {
		cfg.Ints = raw.Ints
	}

	if meta.IsDefined("quiet_tables") {
		cfg.Quiet = raw.Quiet
	}

	if meta.IsDefined("workers") {
		if raw.Workers <= 0 {
			return cfg, fmt.Errorf("config: invalid number of workers (%d)", raw.Workers)
		}
		cfg.Workers = raw.Workers
	}

	if meta.IsDefined("max_invalid") {
		if raw.MaxInvalid < 0 {
			return cfg, fmt.Errorf("config: invalid max_invalid (%d)", raw.MaxInvalid)
		}
		cfg.MaxInvalid = raw.MaxInvalid
	}

	if meta.IsDefined("time_format") {
		cfg.TimeFormat, err = tob.ParseTimeFormat(strings.TrimSpace(raw.TimeFormat))
		if err != nil {
			return cfg, fmt.Errorf("config: invalid time format: %w", err)
		}
	}

	if meta.IsDefined("mail") {
		cfg.Mail = raw.Mail
	}

	return cfg, nil
}

// Tower returns the tower number of a site.
func (cfg Config) Tower(site string) (int, bool) {
	v, ok := cfg.Sites[site]
	return v, ok
}

// IsQuiet reports whether failures of the named table are only warnings.
func (cfg Config) IsQuiet(table string) bool {
	for _, v := range cfg.Quiet {
		if v == table {
			return true
		}
	}
	return false
}
