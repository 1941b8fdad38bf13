package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
)

func TestReportCacheExpiry(t *testing.T) {
	s := NewInMemoryStateStorage(time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	report := &domain.Report{Address: "0xabc", Mode: domain.AnalysisModeAddress, Issues: []domain.Issue{{SWCID: "107"}}}
	if err := s.SaveReport(ctx, "address:0xabc", report, time.Minute); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	got, err := s.GetReport(ctx, "address:0xabc")
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Address != "0xabc" || len(got.Issues) != 1 {
		t.Errorf("GetReport() = %+v", got)
	}

	got.Issues[0].SWCID = "mutated"
	again, _ := s.GetReport(ctx, "address:0xabc")
	if again.Issues[0].SWCID != "107" {
		t.Error("stored report was mutated through a returned copy")
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.GetReport(ctx, "address:0xabc"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetReport() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestJobs(t *testing.T) {
	s := NewInMemoryStateStorage(0)
	ctx := context.Background()

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetJob() error = %v, want ErrNotFound", err)
	}

	job := &domain.Job{ID: "j1", Status: domain.JobStatusQueued, SubmittedAt: time.Now()}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.Status = domain.JobStatusRunning
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.JobStatusRunning {
		t.Errorf("Status = %s, want running", got.Status)
	}
}
