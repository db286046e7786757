package bootstrap

import (
	"context"

	"go.uber.org/zap"
)

// StdoutAuditLogger is the default audit sink: events go through the
// process logger under the audit namespace. Deployments with a durable
// trail requirement swap in their own AuditLogger.
type StdoutAuditLogger struct {
	logger *zap.Logger
}

func NewStdoutAuditLogger() *StdoutAuditLogger {
	return &StdoutAuditLogger{logger: zap.L().Named("audit")}
}

func (l *StdoutAuditLogger) Log(ctx context.Context, entry AuditLog) {
	l.logger.Info(entry.Message,
		zap.String("action", entry.Action),
		zap.Any("meta", entry.Meta),
	)
}
