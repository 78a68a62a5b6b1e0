// Package sqlio reads newline-separated SQL statements for batch submission.
package sqlio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Reader collects statements from files matched by glob patterns, or from
// stdin when no pattern is given.
type Reader struct {
	patterns []string
	stdin    io.Reader
}

// Flag returns the --file flag bound to this reader.
func (r *Reader) Flag() *cli.StringSliceFlag {
	return &cli.StringSliceFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "SQL file or glob (e.g. migrations/**/*.sql); reads stdin if not provided",
		Destination: &r.patterns,
	}
}

// Read returns every statement in input order. Files matched by one pattern
// are read in lexical order.
func (r *Reader) Read() ([]string, error) {
	if len(r.patterns) == 0 {
		in := r.stdin
		if in == nil {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				return nil, fmt.Errorf("no input provided (stdin is a terminal); use -f flag or pipe statements")
			}
			in = os.Stdin
		}
		return Parse(in)
	}

	var stmts []string
	for _, pattern := range r.patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		sort.Strings(matches)

		for _, path := range matches {
			got, err := readFile(path)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, got...)
		}
	}

	return stmts, nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	stmts, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stmts, nil
}

// Parse splits r into one statement per line. Blank lines and lines starting
// with "--" are skipped and a trailing semicolon is removed.
func Parse(r io.Reader) ([]string, error) {
	var stmts []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		line = strings.TrimSpace(strings.TrimSuffix(line, ";"))
		if line == "" {
			continue
		}
		stmts = append(stmts, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	return stmts, nil
}
