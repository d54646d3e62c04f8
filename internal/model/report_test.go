package model

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// TestNewExportReport tests report construction.
func TestNewExportReport(t *testing.T) {
	t.Parallel()

	report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")

	if report.SpaceKey != "DOCS" {
		t.Errorf("got space key %q, expected DOCS", report.SpaceKey)
	}
	if report.BaseURL != "https://example.atlassian.net" {
		t.Errorf("got base URL %q", report.BaseURL)
	}
	if report.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}
	if !report.FinishedAt.IsZero() {
		t.Error("expected FinishedAt to be zero before Finish")
	}
}

// TestExportReportConcurrentCounters tests that counter methods are safe
// under concurrent use, as happens during attachment downloads.
func TestExportReportConcurrentCounters(t *testing.T) {
	t.Parallel()

	report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report.AttachmentDownloaded()
			report.AddAttachmentFailure(AttachmentFailure{Filename: "f"})
		}()
	}
	wg.Wait()

	if report.AttachmentsDownloaded != 50 {
		t.Errorf("got %d downloads, expected 50", report.AttachmentsDownloaded)
	}
	if len(report.AttachmentFailures) != 50 {
		t.Errorf("got %d failures, expected 50", len(report.AttachmentFailures))
	}
}

// TestExportReportStatus tests run status classification.
func TestExportReportStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		mutate   func(*ExportReport)
		expected string
	}{
		{
			name:     "clean run",
			mutate:   func(r *ExportReport) { r.PageExported() },
			expected: StatusCompleted,
		},
		{
			name: "skipped attachments",
			mutate: func(r *ExportReport) {
				r.AddAttachmentFailure(AttachmentFailure{Filename: "missing.png", Reason: "404"})
			},
			expected: StatusPartial,
		},
		{
			name:     "fatal error",
			mutate:   func(r *ExportReport) { r.Finish(errors.New("auth failed")) },
			expected: StatusFailed,
		},
		{
			name: "fatal error wins over skipped attachments",
			mutate: func(r *ExportReport) {
				r.AddAttachmentFailure(AttachmentFailure{Filename: "missing.png"})
				r.Finish(errors.New("interrupted"))
			},
			expected: StatusFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")
			tc.mutate(report)
			if got := report.Status(); got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}
}

// TestExportReportFinish tests end-of-run stamping.
func TestExportReportFinish(t *testing.T) {
	t.Parallel()

	t.Run("successful run", func(t *testing.T) {
		t.Parallel()

		report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")
		report.Finish(nil)

		if report.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
		if report.ErrorMessage != "" {
			t.Errorf("expected empty error message, got %q", report.ErrorMessage)
		}
	})

	t.Run("failed run records message", func(t *testing.T) {
		t.Parallel()

		report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")
		report.Finish(errors.New("space not found"))

		if report.ErrorMessage != "space not found" {
			t.Errorf("got %q, expected 'space not found'", report.ErrorMessage)
		}
	})
}

// TestExportReportDuration tests wall-clock duration reporting.
func TestExportReportDuration(t *testing.T) {
	t.Parallel()

	report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")
	if report.Duration() != 0 {
		t.Error("expected zero duration before Finish")
	}

	report.StartedAt = time.Now().Add(-2 * time.Second)
	report.Finish(nil)
	if report.Duration() < time.Second {
		t.Errorf("got %v, expected at least 1s", report.Duration())
	}
}

// TestExportReportWarningCount tests warning aggregation.
func TestExportReportWarningCount(t *testing.T) {
	t.Parallel()

	report := NewExportReport("https://example.atlassian.net", "DOCS", "/tmp/out")
	report.AddCollision(CollisionNote{Kind: CollisionDirectory, Requested: "Report", Assigned: "Report_2"})
	report.AddUnresolvedLink(UnresolvedLink{PageID: "1", Target: "Missing Page"})
	report.AddConversionNote(ConversionNote{PageID: "2", Note: "fell back to plain text"})

	if got := report.WarningCount(); got != 3 {
		t.Errorf("got %d warnings, expected 3", got)
	}
}
