package mqtt

import (
	"context"
	"encoding/json"

	"github.com/kilianp07/powerhub/core/audit"
	"github.com/kilianp07/powerhub/core/compliance"
	"github.com/kilianp07/powerhub/core/factory"
)

// AuditSink publishes each history record to
// <prefix>/hubs/<hub>/history/<type>.
type AuditSink struct {
	client *PahoClient
	owned  bool
}

// NewAuditSink wraps an existing client. Close leaves the client connected.
func NewAuditSink(c *PahoClient) *AuditSink { return &AuditSink{client: c} }

func (s *AuditSink) Append(ctx context.Context, rec audit.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.client.Topic("hubs", rec.HubID, "history", string(rec.Type)), QoSHistory, payload)
}

func (s *AuditSink) Close() error {
	if s.owned {
		s.client.Disconnect()
	}
	return nil
}

// Notifier publishes tenant notifications to
// <prefix>/tenants/<tenant>/notifications.
type Notifier struct {
	client *PahoClient
}

func NewNotifier(c *PahoClient) *Notifier { return &Notifier{client: c} }

func (n *Notifier) Notify(ctx context.Context, note compliance.Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.client.Topic("tenants", note.TenantID, "notifications"), QoSNotification, payload)
}

func init() {
	_ = audit.RegisterSink("mqtt", func(conf map[string]any) (audit.Sink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		cli, err := NewPahoClient(c)
		if err != nil {
			return nil, err
		}
		return &AuditSink{client: cli, owned: true}, nil
	})
}
