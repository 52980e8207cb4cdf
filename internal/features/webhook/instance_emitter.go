package webhook

import (
	"context"
	"time"

	"go-estimate/internal/common/models"
	"go-estimate/internal/features/instance"
)

// InstanceEmitter publishes instance lifecycle events to webhook
// subscriptions. It satisfies the engine's EventEmitter port.
type InstanceEmitter struct {
	Service WebhookService
}

func NewInstanceEmitter(service WebhookService) *InstanceEmitter {
	return &InstanceEmitter{Service: service}
}

func (e *InstanceEmitter) EmitInstanceEvent(ctx context.Context, event string, inst *instance.WorkflowInstance) {
	e.Service.Trigger(ctx, event, models.WebhookPayload{
		Event:     event,
		Module:    inst.RecordType,
		RecordID:  inst.RecordID,
		Data:      inst,
		Timestamp: time.Now(),
		Extra: map[string]any{
			"status":    string(inst.Status),
			"step_name": inst.StepName,
			"stalled":   inst.Stalled,
		},
	})
}
