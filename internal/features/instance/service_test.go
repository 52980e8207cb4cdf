package instance

import (
	"context"
	"testing"

	common_models "go-estimate/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeInstanceRepo serves and stores a single instance.
type fakeInstanceRepo struct {
	InstanceRepository
	inst *WorkflowInstance
}

func (f *fakeInstanceRepo) GetByID(ctx context.Context, id string) (*WorkflowInstance, error) {
	return f.inst, nil
}

func (f *fakeInstanceRepo) Update(ctx context.Context, inst *WorkflowInstance) error {
	f.inst = inst
	return nil
}

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return nil
}

func (nopAudit) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

func TestCancelRecordsReasonSeparatelyFromFault(t *testing.T) {
	repo := &fakeInstanceRepo{inst: &WorkflowInstance{
		ID:     primitive.NewObjectID(),
		Status: StatusRunning,
	}}
	svc := &InstanceServiceImpl{Repo: repo, AuditService: nopAudit{}}

	if err := svc.Cancel(context.Background(), repo.inst.ID.Hex(), "withdrawn by submitter"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if repo.inst.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", repo.inst.Status)
	}
	if repo.inst.CancelReason != "withdrawn by submitter" {
		t.Fatalf("cancel reason = %q", repo.inst.CancelReason)
	}
	if repo.inst.FaultReason != "" {
		t.Fatalf("fault reason = %q, want empty on a plain cancellation", repo.inst.FaultReason)
	}
}

func TestCancelFaultedKeepsFaultDiagnostic(t *testing.T) {
	repo := &fakeInstanceRepo{inst: &WorkflowInstance{
		ID:          primitive.NewObjectID(),
		Status:      StatusFaulted,
		FaultReason: "condition references unknown field",
	}}
	svc := &InstanceServiceImpl{Repo: repo, AuditService: nopAudit{}}

	if err := svc.Cancel(context.Background(), repo.inst.ID.Hex(), "abandoned after fault"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if repo.inst.FaultReason != "condition references unknown field" {
		t.Fatalf("fault reason = %q, want the original diagnostic", repo.inst.FaultReason)
	}
	if repo.inst.CancelReason != "abandoned after fault" {
		t.Fatalf("cancel reason = %q", repo.inst.CancelReason)
	}
}
