package flatten

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

var (
	// import "a.sol"; import {X} from "a.sol"; import * as Y from 'a.sol';
	importStmtRe = regexp.MustCompile(`(?m)^[ \t]*import\s+[^;]+;`)
	importPathRe = regexp.MustCompile(`["']([^"']+)["']`)
)

// Remapping substitutes an import path prefix, solc-style (context:prefix=target)
type Remapping struct {
	Prefix string
	Target string
}

// ParseRemappings parses solc remapping strings, dropping the optional context
// and malformed entries. Longer prefixes sort first so the most specific wins.
func ParseRemappings(rules []string) []Remapping {
	var out []Remapping
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		eq := strings.Index(rule, "=")
		if eq <= 0 {
			continue
		}
		prefix := rule[:eq]
		if colon := strings.Index(prefix, ":"); colon >= 0 {
			prefix = prefix[colon+1:]
		}
		if prefix == "" {
			continue
		}
		out = append(out, Remapping{Prefix: prefix, Target: rule[eq+1:]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Prefix) > len(out[j].Prefix)
	})
	return out
}

// Apply rewrites p with the first matching remapping
func apply(remappings []Remapping, p string) string {
	for _, r := range remappings {
		if strings.HasPrefix(p, r.Prefix) {
			return r.Target + strings.TrimPrefix(p, r.Prefix)
		}
	}
	return p
}

// RewriteImports applies remappings to every import path in src
func RewriteImports(src string, remappings []Remapping) string {
	if len(remappings) == 0 {
		return src
	}
	return importStmtRe.ReplaceAllStringFunc(src, func(stmt string) string {
		return importPathRe.ReplaceAllStringFunc(stmt, func(quoted string) string {
			q := quoted[:1]
			inner := quoted[1 : len(quoted)-1]
			return q + apply(remappings, inner) + q
		})
	})
}

// importPaths lists the import paths of src in order
func importPaths(src string) []string {
	var out []string
	for _, stmt := range importStmtRe.FindAllString(src, -1) {
		if m := importPathRe.FindStringSubmatch(stmt); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}

// resolveImport maps an import path to a workspace-relative unit name
func resolveImport(from, imp string) string {
	if strings.HasPrefix(imp, "./") || strings.HasPrefix(imp, "../") {
		return path.Join(path.Dir(from), imp)
	}
	return path.Clean(imp)
}
