package anthropic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

type fakeMessages struct {
	msg    *anthropic.Message
	err    error
	params anthropic.MessageNewParams
}

func (f *fakeMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	f.params = body
	return f.msg, f.err
}

func testReport() *domain.Report {
	return &domain.Report{
		Address:      "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		Mode:         domain.AnalysisModeSource,
		ContractName: "Vault",
		Issues: []domain.Issue{
			domain.NewIssue("107", "State access after external call", "Reentrancy possible.", "High", "withdraw()", "Vault"),
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt(testReport())
	for _, want := range []string{"0x5FbDB2315678afecb367f032d93F642f64180aa3", "(Vault)", "source mode", "1 issues", "[High] SWC-107", "Vault.withdraw()"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}

	empty := buildPrompt(&domain.Report{Address: "0x1", Mode: domain.AnalysisModeAddress})
	if !strings.Contains(empty, "No issues were reported.") {
		t.Errorf("prompt = %q", empty)
	}
}

func TestSummarize(t *testing.T) {
	fake := &fakeMessages{msg: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: "  Reentrancy in withdraw. Use checks-effects-interactions. "}},
	}}
	s := &Summarizer{messages: fake, model: "claude-test", maxTokens: 128, logger: zap.NewNop()}

	got, err := s.Summarize(context.Background(), testReport())
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "Reentrancy in withdraw. Use checks-effects-interactions." {
		t.Errorf("Summarize() = %q", got)
	}
	if string(fake.params.Model) != "claude-test" || fake.params.MaxTokens != 128 {
		t.Errorf("params = %+v", fake.params)
	}
}

func TestSummarizeError(t *testing.T) {
	s := &Summarizer{messages: &fakeMessages{err: errors.New("overloaded")}, model: "m", logger: zap.NewNop()}
	if _, err := s.Summarize(context.Background(), testReport()); err == nil {
		t.Fatal("Summarize() succeeded, want error")
	}
}

func TestNewSummarizerRequiresKey(t *testing.T) {
	if _, err := NewSummarizer(&Config{Logger: zap.NewNop()}); err == nil {
		t.Fatal("NewSummarizer() succeeded without an API key")
	}
}
