// Package pragma extracts compiler versions from Solidity version pragmas.
package pragma

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/aescanero/mythgate/internal/domain"
)

var (
	pragmaRe  = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
	versionRe = regexp.MustCompile(`([<>=^~]*)\s*(\d+\.\d+(?:\.\d+)?)`)
	// v0.8.19+commit.7dd6d404, 0.4.24-nightly.2018.5.16+commit...
	compilerRe = regexp.MustCompile(`^v?(\d+\.\d+\.\d+)`)
)

// Versions returns the version literals found in solidity pragmas, in source
// order. Exclusive upper bounds (<0.9.0) are skipped since they name a version
// the source does not compile with.
func Versions(src string) []string {
	var out []string
	for _, m := range pragmaRe.FindAllStringSubmatch(src, -1) {
		for _, v := range versionRe.FindAllStringSubmatch(m[1], -1) {
			if v[1] == "<" {
				continue
			}
			out = append(out, v[2])
		}
	}
	return out
}

// Highest returns the highest version among all pragma matches
func Highest(src string) (string, error) {
	var best *semver.Version
	for _, v := range Versions(src) {
		parsed, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if best == nil || parsed.GreaterThan(best) {
			best = parsed
		}
	}
	if best == nil {
		return "", domain.ErrNoPragma
	}
	return best.String(), nil
}

// CompilerVersion extracts the plain release version from an explorer compiler string
func CompilerVersion(s string) (string, bool) {
	m := compilerRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Resolve picks the compiler version to install for src. The version the
// explorer reports the contract was verified with wins over the pragma.
func Resolve(explorerVersion, src string) (string, error) {
	if v, ok := CompilerVersion(explorerVersion); ok {
		return v, nil
	}
	v, err := Highest(src)
	if err != nil {
		return "", fmt.Errorf("resolve compiler version: %w", err)
	}
	return v, nil
}
