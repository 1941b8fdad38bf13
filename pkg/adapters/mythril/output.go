package mythril

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aescanero/mythgate/internal/domain"
)

// ExtractJSON returns the first line of out that looks like a JSON document.
// Mythril prints solc and progress chatter around its report.
func ExtractJSON(out []byte) ([]byte, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) > 0 && (line[0] == '{' || line[0] == '[') {
			return append([]byte(nil), line...), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
	}
	return nil, domain.ErrNoJSONOutput
}

// rawIssue accepts both the "json" and "jsonv2" issue shapes
type rawIssue struct {
	SWCID       string          `json:"swc-id"`
	SWCIDv2     string          `json:"swcID"`
	Title       string          `json:"title"`
	SWCTitle    string          `json:"swcTitle"`
	Description json.RawMessage `json:"description"`
	Severity    string          `json:"severity"`
	Function    string          `json:"function"`
	Contract    string          `json:"contract"`
}

type rawReport struct {
	Success *bool      `json:"success"`
	Error   *string    `json:"error"`
	Issues  []rawIssue `json:"issues"`
}

// ParseIssues decodes analyzer JSON output and reshapes it into issues
func ParseIssues(raw []byte) ([]domain.Issue, error) {
	raw = bytes.TrimSpace(raw)
	var reports []rawReport
	switch {
	case len(raw) > 0 && raw[0] == '[':
		if err := json.Unmarshal(raw, &reports); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
		}
	default:
		var r rawReport
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOutput, err)
		}
		reports = []rawReport{r}
	}

	issues := make([]domain.Issue, 0)
	for _, r := range reports {
		if r.Success != nil && !*r.Success {
			msg := "analysis unsuccessful"
			if r.Error != nil && *r.Error != "" {
				msg = *r.Error
			}
			return nil, fmt.Errorf("%w: myth: %s", domain.ErrToolFailed, msg)
		}
		for _, ri := range r.Issues {
			issues = append(issues, ri.toIssue())
		}
	}
	return issues, nil
}

func (ri rawIssue) toIssue() domain.Issue {
	swcID := ri.SWCID
	if swcID == "" {
		swcID = ri.SWCIDv2
	}
	swcID = strings.TrimPrefix(swcID, "SWC-")

	title := ri.Title
	if title == "" {
		title = ri.SWCTitle
	}

	return domain.NewIssue(swcID, title, decodeDescription(ri.Description), ri.Severity, ri.Function, ri.Contract)
}

// decodeDescription handles both a plain string and the {"head","tail"} object
func decodeDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts struct {
		Head string `json:"head"`
		Tail string `json:"tail"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.TrimSpace(parts.Head + "\n" + parts.Tail)
	}
	return string(raw)
}
