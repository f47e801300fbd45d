package config

import (
	"fmt"
	"os"
	"testing"
)

// TestMain refuses to run the package tests outside GO_ENV=test so a
// misconfigured shell never points them at a real database.
func TestMain(m *testing.M) {
	env := os.Getenv("GO_ENV")
	if env != "test" {
		fmt.Fprintf(os.Stderr, "\nSAFETY CHECK FAILED: tests must run with GO_ENV=test (current GO_ENV: %q)\n"+
			"Run: GO_ENV=test go test ./...\n\n", env)
		os.Exit(1)
	}

	os.Exit(m.Run())
}
