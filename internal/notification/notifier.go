package notification

import (
	"context"
	"encoding/json"
	"time"

	"go-leave-ledger/internal/events"
	"go-leave-ledger/internal/messaging/kafka"
	"go-leave-ledger/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier informs downstream systems of balance-affecting events. Callers
// invoke it after their transaction commits and must never treat a failure
// here as a reason to fail the operation.
type Notifier interface {
	BalanceChanged(ctx context.Context, ev events.LeaveBalanceChangedEvent)
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) BalanceChanged(context.Context, events.LeaveBalanceChangedEvent) {}

type outboxNotifier struct {
	outbox kafka.OutboxRepository
	logger *zap.Logger
}

// NewOutboxNotifier records events in the notification outbox; the worker
// ships them to kafka with retries. Errors are logged and dropped.
func NewOutboxNotifier(outbox kafka.OutboxRepository, logger ...*zap.Logger) Notifier {
	l := zap.L().Named("notification.outbox")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.outbox")
	}
	return &outboxNotifier{outbox: outbox, logger: l}
}

func (n *outboxNotifier) BalanceChanged(ctx context.Context, ev events.LeaveBalanceChangedEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("marshal balance changed event failed", zap.Error(err))
		return
	}

	event := kafka.OutboxEvent{
		ID:            uuid.New().String(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: "leave_balance",
		AggregateID:   ev.EmployeeID,
		EventType:     "leave.balance.changed",
		Topic:         events.LeaveBalanceChangedTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}

	if err := kafka.ValidateOutboxEvent(event); err != nil {
		n.logger.Error("invalid balance changed event", zap.Error(err))
		return
	}

	// WithoutCancel: the caller's request may already be finishing; a
	// dropped notification must stay a logging problem only.
	if err := n.outbox.Create(context.WithoutCancel(ctx), event); err != nil {
		n.logger.Error("record balance changed event failed",
			zap.String("company_id", ev.CompanyID),
			zap.String("employee_id", ev.EmployeeID),
			zap.String("reason", ev.Reason),
			zap.Error(err),
		)
	}
}
