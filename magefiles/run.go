//go:build mage

// Package main: developer targets for exercising the orchestrator locally.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// All initializes the project layout and builds the binary.
func All() {
	mg.SerialDeps(Init, Build)
}

// Demo builds the binary and runs a sample research query against it,
// persisting the ledger under runs/.
func Demo() error {
	mg.Deps(Build)

	bin := filepath.Join(binDir, binName)
	cmd := exec.Command(bin, "run",
		"--query", "sparse attention mechanisms for long-context transformers",
		"--ledger-dir", "runs")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("demo run: %w", err)
	}
	return nil
}
