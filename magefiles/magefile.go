//go:build mage

// Package main contains Mage build targets for vault-sync developer tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir     = "bin"
	binName    = "vault-sync"
	cmdPkg     = "./cmd/vault-sync"
	stagingDir = "downloads"
)

// Init creates the staging directory and the user config directory.
func Init() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	for _, dir := range []string{stagingDir, filepath.Join(home, ".config", "vault-sync")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Directories initialized.")
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests. Set VAULT_SYNC_RACE=1 to enable the race detector.
func Test() error {
	args := []string{"test", "./..."}
	if os.Getenv("VAULT_SYNC_RACE") == "1" {
		args = append(args, "-race")
	}
	return sh.RunV("go", args...)
}

// Sync builds the binary and runs a full sync with the local configuration.
func Sync() error {
	mg.Deps(Init, Build)
	return sh.RunV(filepath.Join(binDir, binName), "sync")
}

// Clean removes build output. The staging directory is left alone.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints non-blank Go line counts per top-level directory, split into
// production and test code, and the word count of the Markdown and YAML docs.
func Stats() error {
	counts := map[string]*lineCount{}
	words := 0
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != "." && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".go":
			n, err := nonBlankLines(path)
			if err != nil {
				return err
			}
			top := strings.SplitN(filepath.ToSlash(path), "/", 2)[0]
			c, ok := counts[top]
			if !ok {
				c = &lineCount{}
				counts[top] = c
			}
			if strings.HasSuffix(path, "_test.go") {
				c.test += n
			} else {
				c.prod += n
			}
		case ".md", ".yaml", ".yml":
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

	dirs := make([]string, 0, len(counts))
	for dir := range counts {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var total lineCount
	fmt.Printf("%-12s %8s %8s\n", "DIR", "PROD", "TEST")
	for _, dir := range dirs {
		c := counts[dir]
		fmt.Printf("%-12s %8d %8d\n", dir, c.prod, c.test)
		total.prod += c.prod
		total.test += c.test
	}
	fmt.Printf("%-12s %8d %8d\n", "total", total.prod, total.test)
	fmt.Printf("\nWords (documentation): %d\n", words)
	return nil
}

type lineCount struct {
	prod, test int
}

// skipDir reports whether a directory is outside the project's own sources.
func skipDir(name string) bool {
	return name == binDir || name == stagingDir || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

func nonBlankLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
