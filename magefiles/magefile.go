//go:build mage

// Package main contains Mage build targets for pagemd.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir  = "bin"
	binName = "pagemd"
)

// Default target when mage runs without arguments.
var Default = Build

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-ldflags", "-X main.version="+version(), "-o", out, "."); err != nil {
		return err
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Vet runs go vet on every package.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the unit tests. Browser tests run only when
// PAGEMD_BROWSER_TESTS is set.
func Test() error {
	mg.Deps(Vet)
	return sh.RunV("go", "test", "-race", "./...")
}

// BrowserTest runs the full suite including tests that launch Chromium.
func BrowserTest() error {
	return sh.RunWithV(map[string]string{"PAGEMD_BROWSER_TESTS": "1"}, "go", "test", "./...")
}

// Clean removes build output and the default output directory.
func Clean() error {
	for _, dir := range []string{binDir, "markdown_out"} {
		if err := sh.Rm(dir); err != nil {
			return err
		}
	}
	return nil
}

// version returns the current git describe string, or "dev".
func version() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || v == "" {
		return "dev"
	}
	return v
}
