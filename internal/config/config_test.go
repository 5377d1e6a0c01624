// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/csi/alert"
	"github.com/go-lpc/csi/store"
	"github.com/go-lpc/csi/tob"
	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "csi2db.toml")
	err := os.WriteFile(fname, []byte(`
dataroot = "data"
workers = 2
max_invalid = 3
time_format = "millisec"
ints = ["Diag_*", "Status"]

[db]
driver = "mysql"
host = "db.example.org"
port = 3306
user = "loader"

[sites]
ham = 0
sto = 1
nwt = 2

[tables]
S = "sonic"
A = "analog"
M = "monitor"
P = "power"

[mail]
server = "smtp.example.org"
port = 587
username = "bot@example.org"
password = "s3cr3t"
to = ["ops@example.org"]
`), 0644)
	if err != nil {
		t.Fatalf("could not write config file: %+v", err)
	}

	got, err := Load(fname)
	if err != nil {
		t.Fatalf("could not load config: %+v", err)
	}

	want := Default()
	want.DataRoot = filepath.Join(dir, "data")
	want.Workers = 2
	want.MaxInvalid = 3
	want.TimeFormat = tob.TimeMillis
	want.Ints = []string{"Diag_*", "Status"}
	want.DB = store.Config{
		Driver: "mysql",
		Host:   "db.example.org",
		Port:   3306,
		Name:   "talltowers",
		User:   "loader",
	}
	want.Sites["nwt"] = 2
	want.Tables['P'] = "power"
	want.Mail = alert.Config{
		Server:   "smtp.example.org",
		Port:     587,
		User:     "bot@example.org",
		Password: "s3cr3t",
		To:       []string{"ops@example.org"},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("invalid config (-want +got):\n%s", diff)
	}

	if tower, ok := got.Tower("nwt"); !ok || tower != 2 {
		t.Fatalf("invalid tower: got=(%d, %v), want=(2, true)", tower, ok)
	}
	if _, ok := got.Tower("xxx"); ok {
		t.Fatalf("unknown site has a tower")
	}
	if !got.IsQuiet("monitor") || got.IsQuiet("sonic") {
		t.Fatalf("invalid quiet tables: %q", got.Quiet)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name string
		data string
	}{
		{name: "syntax", data: `dataroot = `},
		{name: "unknown-key", data: `datarooot = "/data"`},
		{name: "workers", data: `workers = 0`},
		{name: "max-invalid", data: `max_invalid = -1`},
		{name: "time-format", data: `time_format = "hours"`},
		{name: "table-code", data: "[tables]\nsonic = \"S\"\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fname := filepath.Join(dir, tc.name+".toml")
			err := os.WriteFile(fname, []byte(tc.data), 0644)
			if err != nil {
				t.Fatalf("could not write config file: %+v", err)
			}
			_, err = Load(fname)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}

	_, err := Load(filepath.Join(dir, "missing.toml"))
	if err == nil {
		t.Fatalf("expected an error on missing file")
	}
}
