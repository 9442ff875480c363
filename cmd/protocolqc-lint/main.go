// Package main reports protocol templates that fail to build. It walks the
// given directory, the working directory by default, skipping hidden
// directories.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/protocolqc/protocolqc/internal/config"
	"github.com/protocolqc/protocolqc/internal/template"
)

type issue struct {
	file    string
	message string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("protocolqc-lint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	issues, checked, err := checkDirectory(dir, *verbose, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(stdout, "%s: %s\n", issue.file, issue.message)
		}
		return 1
	}

	if *verbose {
		fmt.Fprintf(stdout, "%d template(s) checked, no issues found\n", checked)
	}
	return 0
}

func checkDirectory(root string, verbose bool, out io.Writer) ([]issue, int, error) {
	var (
		issues  []issue
		checked int
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := template.FormatFromPath(path); !ok {
			return nil
		}

		checked++
		if msg := checkFile(path); msg != "" {
			issues = append(issues, issue{file: path, message: msg})
		} else if verbose {
			fmt.Fprintf(out, "ok %s\n", path)
		}
		return nil
	})

	return issues, checked, err
}

// checkFile builds the template and returns the configuration error, if any.
func checkFile(path string) string {
	src, err := template.ReadSource(path)
	if err != nil {
		return err.Error()
	}
	if _, err := template.NewBuilder(config.DefaultMinMatchScore, nil).BuildSource(src); err != nil {
		return err.Error()
	}
	return ""
}
