package flatten

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/aescanero/mythgate/internal/domain"
)

// FlattenedFile is the name the flattened unit is written under
const FlattenedFile = "flattened.sol"

// Workspace is a private per-request directory holding a source tree
type Workspace struct {
	root string
}

// NewWorkspace creates a fresh directory under baseDir (os.TempDir() when empty)
func NewWorkspace(baseDir string) (*Workspace, error) {
	root, err := os.MkdirTemp(baseDir, "mythgate-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace directory
func (w *Workspace) Root() string {
	return w.root
}

// Path returns the absolute path of a workspace-relative name
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.root, filepath.FromSlash(name))
}

// Close removes the workspace and everything in it
func (w *Workspace) Close() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}

// Write materializes src and returns the workspace-relative entry file
func (w *Workspace) Write(src *domain.ContractSource) (string, error) {
	if len(src.Files) == 0 {
		return "", domain.ErrSourceNotVerified
	}

	remappings := ParseRemappings(src.Remappings)
	names := make([]string, 0, len(src.Files))
	for _, f := range src.Files {
		name, err := unitName(f.Path)
		if err != nil {
			return "", err
		}
		if err := w.WriteFile(name, []byte(RewriteImports(f.Content, remappings))); err != nil {
			return "", err
		}
		names = append(names, name)
	}

	return entryFile(src, names), nil
}

// WriteFile writes data under a workspace-relative name, creating parents
func (w *Workspace) WriteFile(name string, data []byte) error {
	p := w.Path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// unitName cleans a source path and rejects anything escaping the workspace
func unitName(p string) (string, error) {
	clean := path.Clean(filepath.ToSlash(p))
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", fmt.Errorf("source path %q escapes the workspace", p)
	}
	return clean, nil
}

// entryFile picks the file declaring the verified contract, else the last file
func entryFile(src *domain.ContractSource, names []string) string {
	if src.ContractName != "" {
		decl := regexp.MustCompile(`(?m)^\s*(?:abstract\s+)?contract\s+` + regexp.QuoteMeta(src.ContractName) + `\b`)
		for i, f := range src.Files {
			if decl.MatchString(f.Content) {
				return names[i]
			}
		}
	}
	return names[len(names)-1]
}
