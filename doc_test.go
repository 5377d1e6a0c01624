// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csi

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	for _, tc := range []struct {
		name    string
		b       *debug.BuildInfo
		version string
		sum     string
	}{
		{name: "nil"},
		{
			name: "no-dep",
			b:    &debug.BuildInfo{Deps: []*debug.Module{{Path: "github.com/lib/pq", Version: "v1.10.9"}}},
		},
		{
			name:    "dep",
			b:       &debug.BuildInfo{Deps: []*debug.Module{{Path: "github.com/go-lpc/csi", Version: "v0.3.0", Sum: "h1:xxx"}}},
			version: "v0.3.0",
			sum:     "h1:xxx",
		},
		{
			name: "replace-path",
			b: &debug.BuildInfo{Deps: []*debug.Module{{
				Path: "github.com/go-lpc/csi", Version: "v0.3.0",
				Replace: &debug.Module{Path: "../csi"},
			}}},
			version: "../csi",
		},
		{
			name: "replace-version",
			b: &debug.BuildInfo{Deps: []*debug.Module{{
				Path: "github.com/go-lpc/csi", Version: "v0.3.0",
				Replace: &debug.Module{Version: "v0.3.1", Sum: "h1:yyy"},
			}}},
			version: "v0.3.1",
			sum:     "h1:yyy",
		},
		{
			name: "replace-both",
			b: &debug.BuildInfo{Deps: []*debug.Module{{
				Path: "github.com/go-lpc/csi", Version: "v0.3.0",
				Replace: &debug.Module{Path: "example.org/csi", Version: "v0.3.1"},
			}}},
			version: "example.org/csi v0.3.1",
		},
		{
			name: "replace-empty",
			b: &debug.BuildInfo{Deps: []*debug.Module{{
				Path: "github.com/go-lpc/csi", Version: "v0.3.0",
				Replace: &debug.Module{},
			}}},
			version: "v0.3.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			version, sum := versionOf(tc.b)
			if version != tc.version || sum != tc.sum {
				t.Fatalf("invalid version: got=(%q, %q), want=(%q, %q)", version, sum, tc.version, tc.sum)
			}
		})
	}
}
