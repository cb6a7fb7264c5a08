package compliance

import (
	"context"
	"time"

	"github.com/kilianp07/powerhub/core/logger"
	"github.com/kilianp07/powerhub/core/model"
)

// Notification is sent to a tenant when a violation is escalated.
type Notification struct {
	TenantID   string                `json:"tenant_id"`
	HubID      string                `json:"hub_id"`
	Violations int                   `json:"violations"`
	Level      model.WarningLevel    `json:"warning_level"`
	Action     model.ViolationAction `json:"action"`
	Message    string                `json:"message"`
	Time       time.Time             `json:"time"`
}

// Notifier delivers tenant notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Log logger.Logger
}

func (n LogNotifier) Notify(_ context.Context, note Notification) error {
	logger.OrNop(n.Log).Infow("tenant notification", map[string]any{
		"tenant_id":     note.TenantID,
		"hub_id":        note.HubID,
		"violations":    note.Violations,
		"warning_level": string(note.Level),
		"action":        string(note.Action),
		"message":       note.Message,
	})
	return nil
}
