//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for playerdb using Mage.
//
// Usage:
//
//	mage build          Compile playerdb to bin/
//	mage test:all       Run every package's tests
//	mage test:race      Run tests with the race detector
//	mage test:cover     Write coverage.out and print the summary
//	mage lint           Run golangci-lint
//	mage vet            Run go vet
//	mage clean          Remove build artifacts
//	mage install        Install playerdb to GOPATH/bin
//	mage stats          Print Go line counts per package
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "playerdb"
	binaryDir  = "bin"
	cmdDir     = "./cmd/playerdb"
	versionVar = "github.com/mesh-intelligence/playerdb/internal/cli.Version"
)

// ldflags stamps the version from PLAYERDB_VERSION or the latest git tag.
func ldflags() string {
	version := os.Getenv("PLAYERDB_VERSION")
	if version == "" {
		tag, err := sh.Output("git", "describe", "--tags", "--always")
		if err != nil || tag == "" {
			return ""
		}
		version = strings.TrimPrefix(tag, "v")
	}
	return "-X " + versionVar + "=" + version
}

// Build compiles the playerdb binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v", "-o", filepath.Join(binaryDir, binaryName)}
	if flags := ldflags(); flags != "" {
		args = append(args, "-ldflags", flags)
	}
	return sh.RunV(binGo, append(args, cmdDir)...)
}

// Clean removes build artifacts.
func Clean() error {
	for _, path := range []string{binaryDir, coverProfile} {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
