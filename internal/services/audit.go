package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"belgaum-backend/internal/models"
)

// AuditQueueKey is the Redis list the audit workers consume.
const AuditQueueKey = "queue:chat-audit"

// AuditQueue enqueues audit entries for the worker pool. Record returns as
// soon as the entry is on the list.
type AuditQueue struct {
	redis *redis.Client
	now   func() time.Time
}

func NewAuditQueue(redisClient *redis.Client) *AuditQueue {
	return &AuditQueue{redis: redisClient, now: time.Now}
}

func (q *AuditQueue) Record(ctx context.Context, sessionID, userRequest, botResponse string) error {
	data, err := json.Marshal(models.AuditEntry{
		SessionID:   sessionID,
		UserRequest: userRequest,
		BotResponse: botResponse,
		RecordedAt:  q.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if err := q.redis.RPush(ctx, AuditQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue audit entry: %w", err)
	}
	return nil
}

type auditStore interface {
	Create(ctx context.Context, a *models.ChatAudit) error
}

// AuditRecorder writes one chat_audits row and one text file per entry.
type AuditRecorder struct {
	repo   auditStore
	logDir string
	logger *zap.Logger
}

func NewAuditRecorder(repo auditStore, logDir string, logger *zap.Logger) (*AuditRecorder, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	return &AuditRecorder{repo: repo, logDir: logDir, logger: logger}, nil
}

// Record stores the row first; the file is only written once the row exists.
func (r *AuditRecorder) Record(ctx context.Context, entry models.AuditEntry) (string, error) {
	row := &models.ChatAudit{
		SessionID:   entry.SessionID,
		UserRequest: entry.UserRequest,
		BotResponse: entry.BotResponse,
		CreatedAt:   entry.RecordedAt,
	}
	if err := r.repo.Create(ctx, row); err != nil {
		return "", fmt.Errorf("failed to insert chat audit: %w", err)
	}

	name := AuditFileName(entry.SessionID, entry.RecordedAt)
	if err := os.WriteFile(filepath.Join(r.logDir, name), []byte(FormatAuditFile(entry)), 0644); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	r.logger.Debug("chat audit recorded",
		zap.String("session_id", entry.SessionID),
		zap.String("audit_id", row.ID.String()),
		zap.String("file", name),
	)
	return name, nil
}

var stampReplacer = strings.NewReplacer(":", "-", ".", "-")

// AuditFileName builds "<session>_<ISO timestamp with ':' and '.' as '-'>.txt".
// Milliseconds are kept so entries recorded within one second get distinct files.
func AuditFileName(sessionID string, at time.Time) string {
	stamp := stampReplacer.Replace(at.UTC().Format("2006-01-02T15:04:05.000Z"))
	return fmt.Sprintf("%s_%s.txt", safeFileComponent(sessionID), stamp)
}

func safeFileComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, s)
}

func FormatAuditFile(entry models.AuditEntry) string {
	sep := "------------------------------------------"
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session ID: %s\n", entry.SessionID)
	fmt.Fprintf(&sb, "Date Time: %s\n", entry.RecordedAt.Format("1/2/2006, 3:04:05 PM"))
	sb.WriteString(sep + "\n")
	sb.WriteString("USER REQUEST:\n")
	sb.WriteString(entry.UserRequest + "\n\n")
	sb.WriteString(sep + "\n")
	sb.WriteString("BOT RESPONSE:\n")
	sb.WriteString(entry.BotResponse + "\n")
	sb.WriteString(sep)
	return sb.String()
}
