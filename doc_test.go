// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssi

import (
	"runtime/debug"
	"testing"
)

func TestVersionOf(t *testing.T) {
	const root = "github.com/go-lpc/ssi"
	for _, tc := range []struct {
		name string
		deps []*debug.Module
		vers string
		sum  string
	}{
		{
			name: "no-dep",
		},
		{
			name: "dep",
			deps: []*debug.Module{
				{Path: "golang.org/x/sys", Version: "v0.7.0"},
				{Path: root, Version: "v0.1.0", Sum: "h1:xxx"},
			},
			vers: "v0.1.0",
			sum:  "h1:xxx",
		},
		{
			name: "replace-path-version",
			deps: []*debug.Module{
				{Path: root, Version: "v0.1.0", Replace: &debug.Module{Path: "example.org/ssi", Version: "v0.2.0", Sum: "h1:yyy"}},
			},
			vers: "example.org/ssi v0.2.0",
			sum:  "h1:yyy",
		},
		{
			name: "replace-version",
			deps: []*debug.Module{
				{Path: root, Version: "v0.1.0", Replace: &debug.Module{Version: "v0.2.0"}},
			},
			vers: "v0.2.0",
		},
		{
			name: "replace-path",
			deps: []*debug.Module{
				{Path: root, Version: "v0.1.0", Replace: &debug.Module{Path: "../ssi"}},
			},
			vers: "../ssi",
		},
		{
			name: "replace-empty",
			deps: []*debug.Module{
				{Path: root, Version: "v0.1.0", Replace: &debug.Module{}},
			},
			vers: "v0.1.0*",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(&debug.BuildInfo{Deps: tc.deps})
			if vers != tc.vers {
				t.Fatalf("invalid version: got=%q, want=%q", vers, tc.vers)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}

	vers, sum := versionOf(nil)
	if vers != "" || sum != "" {
		t.Fatalf("invalid nil build info: vers=%q, sum=%q", vers, sum)
	}
}
