package domain

import (
	"fmt"
	"time"
)

// SWCRegistryURL is the base URL of the Smart Contract Weakness Classification registry
const SWCRegistryURL = "https://swcregistry.io/docs/SWC-"

// AnalysisMode selects how a contract is analyzed
type AnalysisMode string

const (
	// AnalysisModeAddress runs the analyzer against deployed bytecode
	AnalysisModeAddress AnalysisMode = "address"
	// AnalysisModeSource fetches verified source, flattens it and analyzes the result
	AnalysisModeSource AnalysisMode = "source"
)

// ParseAnalysisMode parses a mode name. Empty input returns fallback.
func ParseAnalysisMode(s string, fallback AnalysisMode) (AnalysisMode, error) {
	switch AnalysisMode(s) {
	case "":
		return fallback, nil
	case AnalysisModeAddress, AnalysisModeSource:
		return AnalysisMode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// AnalysisRequest is a request to analyze one contract
type AnalysisRequest struct {
	Address string       `json:"address"`
	Mode    AnalysisMode `json:"mode,omitempty"`
}

// Key identifies equivalent requests
func (r AnalysisRequest) Key() string {
	return string(r.Mode) + ":" + r.Address
}

// Issue is a single analyzer finding
type Issue struct {
	SWCID       string `json:"swc-id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Function    string `json:"function"`
	Contract    string `json:"contract"`
	SWCURL      string `json:"swc-url"`
}

// NewIssue builds an issue and derives its registry link
func NewIssue(swcID, title, description, severity, function, contract string) Issue {
	issue := Issue{
		SWCID:       swcID,
		Title:       title,
		Description: description,
		Severity:    severity,
		Function:    function,
		Contract:    contract,
	}
	if swcID != "" {
		issue.SWCURL = SWCRegistryURL + swcID
	}
	return issue
}

// Report is the outcome of one analysis
type Report struct {
	Address         string        `json:"address"`
	Mode            AnalysisMode  `json:"mode"`
	ContractName    string        `json:"contract_name,omitempty"`
	Implementation  string        `json:"implementation,omitempty"`
	CompilerVersion string        `json:"compiler_version,omitempty"`
	Issues          []Issue       `json:"issues"`
	Summary         string        `json:"summary,omitempty"`
	AnalyzedAt      time.Time     `json:"analyzed_at"`
	Duration        time.Duration `json:"duration"`
}

// Message returns the human readable outcome line
func (r *Report) Message() string {
	if len(r.Issues) == 0 {
		return "No issues found"
	}
	return "Analysis complete"
}

// SeverityCounts counts issues per severity
func (r *Report) SeverityCounts() map[string]int {
	counts := make(map[string]int)
	for _, issue := range r.Issues {
		sev := issue.Severity
		if sev == "" {
			sev = "Unknown"
		}
		counts[sev]++
	}
	return counts
}
