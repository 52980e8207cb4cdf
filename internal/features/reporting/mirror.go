package reporting

import (
	"context"

	"go-estimate/internal/features/instance"

	"go.uber.org/zap"
)

// InstanceMirror copies concluded instances into the reporting store.
// It satisfies the engine's EventEmitter port alongside the webhook
// emitter; in-flight events are ignored.
type InstanceMirror struct {
	Store  *ReportingStore
	Logger *zap.Logger
}

func NewInstanceMirror(store *ReportingStore, logger *zap.Logger) *InstanceMirror {
	return &InstanceMirror{Store: store, Logger: logger}
}

func (m *InstanceMirror) EmitInstanceEvent(ctx context.Context, event string, inst *instance.WorkflowInstance) {
	if event != "instance.concluded" || !m.Store.Enabled() {
		return
	}

	report := InstanceReport{
		InstanceID:    inst.ID.Hex(),
		TenantID:      inst.TenantID.Hex(),
		WorkflowID:    inst.WorkflowID.Hex(),
		Family:        string(inst.Family),
		RecordType:    inst.RecordType,
		RecordID:      inst.RecordID,
		Status:        string(inst.Status),
		Outcome:       string(inst.Outcome),
		DecisionCount: len(inst.Decisions),
		StartedAt:     inst.CreatedAt,
		ConcludedAt:   inst.ConcludedAt,
	}
	if inst.ConcludedAt != nil {
		report.DurationSeconds = int64(inst.ConcludedAt.Sub(inst.CreatedAt).Seconds())
	}

	if err := m.Store.Upsert(ctx, report); err != nil {
		m.Logger.Error("instance report mirror failed",
			zap.String("instance_id", report.InstanceID),
			zap.Error(err),
		)
	}
}
