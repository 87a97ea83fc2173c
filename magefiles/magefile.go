//go:build mage

// Package main contains Mage build targets for research-assistant developer tooling.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the CLI writes to by default.
var projectDirs = []string{
	"data",
	"reports",
	".secrets",
}

// Init creates the working directories and an empty .env if none exists.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		if err := os.WriteFile(".env", []byte("GEMINI_API_KEY=\n"), 0o600); err != nil {
			return fmt.Errorf("creating .env: %w", err)
		}
		fmt.Println("   .env")
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "research-assistant"
	cmdPkg  = "./cmd/research-assistant"
)

func binPath() string { return filepath.Join(binDir, binName) }

// Build compiles the CLI binary into bin/, stamping the version from git
// when available.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	ldflags := "-X main.version=" + version
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", binPath(), cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s (%s)\n", binPath(), version)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Research builds the CLI and runs one session for topic.
func Research(topic string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "run", "--output-dir", "reports", topic)
}

// Serve builds the CLI and starts the HTTP API.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "serve")
}

// Stats prints project metrics: Go production/test LOC and documentation word count.
func Stats() error {
	var prod, tests, words int
	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".go":
			n, err := countLines(path)
			if err != nil {
				return err
			}
			if strings.HasSuffix(path, "_test.go") {
				tests += n
			} else {
				prod += n
			}
		case ".md":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			words += len(strings.Fields(string(data)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", tests)
	fmt.Printf("Words (documentation):           %d\n", words)
	return nil
}

// countLines counts non-blank lines in a file.
func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n, nil
}
