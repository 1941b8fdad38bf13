package flatten

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aescanero/mythgate/internal/domain"
)

var (
	spdxRe   = regexp.MustCompile(`(?m)^[ \t]*//\s*SPDX-License-Identifier:.*$\n?`)
	pragmaRe = regexp.MustCompile(`(?m)^[ \t]*pragma\s+[^;]+;[ \t]*\n?`)
	blankRe  = regexp.MustCompile(`\n{3,}`)

	solidityPragmaRe = regexp.MustCompile(`^pragma solidity\b`)
)

// ConcatFlattener flattens by resolving imports depth first. Every file is
// emitted once, after its dependencies. Import statements are dropped and
// directives are hoisted to the top: the first license line, the entry
// file's solidity pragma and one copy of every other pragma.
type ConcatFlattener struct{}

// NewConcatFlattener creates a new built-in flattener
func NewConcatFlattener() *ConcatFlattener {
	return &ConcatFlattener{}
}

// Flatten implements ports.Flattener
func (f *ConcatFlattener) Flatten(ctx context.Context, root, entry string) ([]byte, error) {
	st := &concatState{
		root:    root,
		visited: make(map[string]bool),
		seen:    make(map[string]bool),
	}
	if err := st.visit(ctx, entry); err != nil {
		return nil, err
	}

	var out strings.Builder
	if st.license != "" {
		out.WriteString(st.license + "\n")
	}
	if st.solidity != "" {
		out.WriteString(st.solidity + "\n")
	}
	for _, p := range st.pragmas {
		out.WriteString(p + "\n")
	}
	out.WriteString("\n")
	out.WriteString(blankRe.ReplaceAllString(strings.TrimSpace(st.body.String()), "\n\n"))
	out.WriteString("\n")

	return []byte(out.String()), nil
}

type concatState struct {
	root     string
	visited  map[string]bool
	seen     map[string]bool
	license  string
	solidity string
	pragmas  []string
	body     strings.Builder
}

func (st *concatState) visit(ctx context.Context, unit string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !filepath.IsLocal(filepath.FromSlash(unit)) {
		return fmt.Errorf("%w: %s resolves outside the workspace", domain.ErrImportNotFound, unit)
	}
	if st.visited[unit] {
		return nil
	}
	st.visited[unit] = true

	data, err := os.ReadFile(filepath.Join(st.root, filepath.FromSlash(unit)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", domain.ErrImportNotFound, unit)
		}
		return fmt.Errorf("failed to read %s: %w", unit, err)
	}
	src := string(data)

	for _, imp := range importPaths(src) {
		if err := st.visit(ctx, resolveImport(unit, imp)); err != nil {
			return err
		}
	}

	src = importStmtRe.ReplaceAllString(src, "")
	src = spdxRe.ReplaceAllStringFunc(src, func(line string) string {
		if st.license == "" {
			st.license = strings.TrimSpace(line)
		}
		return ""
	})
	src = pragmaRe.ReplaceAllStringFunc(src, func(line string) string {
		p := strings.Join(strings.Fields(line), " ")
		if solidityPragmaRe.MatchString(p) {
			// post-order: the entry file is processed last and wins
			st.solidity = p
			return ""
		}
		if !st.seen[p] {
			st.seen[p] = true
			st.pragmas = append(st.pragmas, p)
		}
		return ""
	})

	fmt.Fprintf(&st.body, "// File: %s\n\n%s\n\n", unit, strings.TrimSpace(src))
	return nil
}
