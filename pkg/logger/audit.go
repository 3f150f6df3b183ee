package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Security audit event types
const (
	EventTwoFactorSetup    = "two_factor_setup"
	EventTwoFactorEnable   = "two_factor_enable"
	EventTwoFactorVerify   = "two_factor_verify"
	EventRecoveryCodeUsed  = "recovery_code_used"
	EventCSRFRejected      = "csrf_rejected"
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventAccessDenied      = "access_denied"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogSecurityEvent emits one audit record; failures are logged at warn level
func (al *AuditLogger) LogSecurityEvent(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "security"),
		slog.String("event_id", uuid.NewString()),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogTwoFactorChange logs setup and enable transitions for a user
func (al *AuditLogger) LogTwoFactorChange(ctx context.Context, eventType, userID string, success bool, reason string) {
	al.LogSecurityEvent(ctx, AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		Success:       success,
		FailureReason: reason,
	})
}

// LogRejection logs a request rejected by a security middleware
func (al *AuditLogger) LogRejection(ctx context.Context, eventType, userID, ipAddress, reason string) {
	al.LogSecurityEvent(ctx, AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		IPAddress:     ipAddress,
		Success:       false,
		FailureReason: reason,
	})
}
