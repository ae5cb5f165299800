package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

type stubAuditRepo struct {
	rows []*models.ChatAudit
	err  error
}

func (r *stubAuditRepo) Create(_ context.Context, a *models.ChatAudit) error {
	if r.err != nil {
		return r.err
	}
	a.ID = uuid.New()
	r.rows = append(r.rows, a)
	return nil
}

func testEntry() models.AuditEntry {
	return models.AuditEntry{
		SessionID:   "abc-123",
		UserRequest: "Do you train teams?",
		BotResponse: "Yes, through hands-on labs.",
		RecordedAt:  time.Date(2025, 6, 1, 9, 30, 15, 250_000_000, time.UTC),
	}
}

func TestAuditFileName(t *testing.T) {
	got := AuditFileName("abc-123", testEntry().RecordedAt)
	want := "abc-123_2025-06-01T09-30-15-250Z.txt"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	if name := AuditFileName("../etc", testEntry().RecordedAt); strings.Contains(name, "/") {
		t.Errorf("Expected path separators to be replaced, got %q", name)
	}
}

func TestAuditFileName_DistinctWithinOneSecond(t *testing.T) {
	first := AuditFileName("s1", time.Date(2025, 6, 1, 9, 30, 15, 100_000_000, time.UTC))
	second := AuditFileName("s1", time.Date(2025, 6, 1, 9, 30, 15, 800_000_000, time.UTC))

	if first == second {
		t.Fatalf("Expected distinct names, both were %q", first)
	}
	if first != "s1_2025-06-01T09-30-15-100Z.txt" {
		t.Errorf("Unexpected name %q", first)
	}

	local := time.Date(2025, 6, 1, 15, 0, 15, 5_000_000, time.FixedZone("IST", 5*3600+1800))
	if got := AuditFileName("s1", local); got != "s1_2025-06-01T09-30-15-005Z.txt" {
		t.Errorf("Expected UTC stamp with padded millis, got %q", got)
	}
}

func TestFormatAuditFile(t *testing.T) {
	want := "Session ID: abc-123\n" +
		"Date Time: 6/1/2025, 9:30:15 AM\n" +
		"------------------------------------------\n" +
		"USER REQUEST:\n" +
		"Do you train teams?\n\n" +
		"------------------------------------------\n" +
		"BOT RESPONSE:\n" +
		"Yes, through hands-on labs.\n" +
		"------------------------------------------"

	if got := FormatAuditFile(testEntry()); got != want {
		t.Errorf("Unexpected file content:\n%s", got)
	}
}

func TestAuditRecorder_WritesRowThenFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chat_history_logs")
	repo := &stubAuditRepo{}
	rec, err := NewAuditRecorder(repo, dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAuditRecorder: %v", err)
	}

	name, err := rec.Record(context.Background(), testEntry())
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if len(repo.rows) != 1 || repo.rows[0].SessionID != "abc-123" {
		t.Fatalf("Expected one audit row, got %+v", repo.rows)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Expected audit file: %v", err)
	}
	if !strings.Contains(string(data), "BOT RESPONSE:\nYes, through hands-on labs.") {
		t.Errorf("Unexpected file content: %s", data)
	}
}

func TestAuditRecorder_SameSecondKeepsBothFiles(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewAuditRecorder(&stubAuditRepo{}, dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAuditRecorder: %v", err)
	}

	first := testEntry()
	second := testEntry()
	second.BotResponse = "Second answer."
	second.RecordedAt = first.RecordedAt.Add(300 * time.Millisecond)

	for _, e := range []models.AuditEntry{first, second} {
		if _, err := rec.Record(context.Background(), e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 audit files, got %d", len(files))
	}
}

func TestAuditRecorder_RowFailureSkipsFile(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewAuditRecorder(&stubAuditRepo{err: errors.New("db down")}, dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAuditRecorder: %v", err)
	}

	if _, err := rec.Record(context.Background(), testEntry()); err == nil {
		t.Fatal("Expected error")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected no audit file, found %d", len(entries))
	}
}
