package explorer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aescanero/mythgate/internal/domain"
)

type sourceEntry struct {
	Content string `json:"content"`
}

type standardJSON struct {
	Sources  map[string]sourceEntry `json:"sources"`
	Settings struct {
		Remappings []string `json:"remappings"`
	} `json:"settings"`
}

// ParseSourceCode decodes the three SourceCode shapes explorers return:
// a plain single file, a JSON object of files, and standard-JSON compiler
// input wrapped in an extra pair of braces.
func ParseSourceCode(code, contractName string) ([]domain.SourceFile, []string, error) {
	trimmed := strings.TrimSpace(code)

	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		var input standardJSON
		if err := json.Unmarshal([]byte(trimmed[1:len(trimmed)-1]), &input); err != nil {
			return nil, nil, fmt.Errorf("%w: decode standard-json source: %v", domain.ErrExplorer, err)
		}
		if len(input.Sources) == 0 {
			return nil, nil, fmt.Errorf("%w: standard-json source has no files", domain.ErrSourceNotVerified)
		}
		return sortedFiles(input.Sources), input.Settings.Remappings, nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var input standardJSON
		if err := json.Unmarshal([]byte(trimmed), &input); err == nil && len(input.Sources) > 0 {
			return sortedFiles(input.Sources), input.Settings.Remappings, nil
		}
		var files map[string]sourceEntry
		if err := json.Unmarshal([]byte(trimmed), &files); err == nil && len(files) > 0 {
			return sortedFiles(files), nil, nil
		}
	}

	name := contractName
	if name == "" {
		name = "Contract"
	}
	return []domain.SourceFile{{Path: name + ".sol", Content: code}}, nil, nil
}

func sortedFiles(sources map[string]sourceEntry) []domain.SourceFile {
	files := make([]domain.SourceFile, 0, len(sources))
	for path, entry := range sources {
		files = append(files, domain.SourceFile{Path: path, Content: entry.Content})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}
