package estimate

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"
	"go-estimate/pkg/rulechain"
	"go-estimate/pkg/utils"
)

// editableStatuses are the states in which an estimate may still change.
// In-review estimates are frozen: the instance evaluated a snapshot and the
// record must keep matching what the approvers saw.
var editableStatuses = map[EstimateStatus]bool{
	StatusDraft:    true,
	StatusRevision: true,
}

// WorkflowStarter is the slice of the instance feature submissions need.
// The family is fixed to estimate approval by the caller.
type WorkflowStarter interface {
	StartApproval(ctx context.Context, recordID string, rec rulechain.Snapshot) error
	CancelForRecord(ctx context.Context, recordType, recordID string, reason string) error
}

type EstimateService interface {
	CreateEstimate(ctx context.Context, est *Estimate) error
	GetEstimate(ctx context.Context, id string) (*Estimate, error)
	ListEstimates(ctx context.Context, status EstimateStatus, page, limit int64) ([]Estimate, int64, error)
	UpdateEstimate(ctx context.Context, id string, est *Estimate) error
	DeleteEstimate(ctx context.Context, id string) error

	// Submit freezes the estimate and runs it through the applicable
	// approval workflow.
	Submit(ctx context.Context, id string) (*Estimate, error)

	// Withdraw pulls a submitted estimate back to draft and cancels its
	// running instance.
	Withdraw(ctx context.Context, id string) error

	// ApplyWorkflowStatus is called back by the engine when an instance
	// transitions; it maps instance states onto estimate states.
	ApplyWorkflowStatus(ctx context.Context, id string, status string) error
}

type EstimateServiceImpl struct {
	Repo         EstimateRepository
	Workflow     WorkflowStarter
	AuditService audit.AuditService
}

func NewEstimateService(repo EstimateRepository, wf WorkflowStarter, auditService audit.AuditService) EstimateService {
	return &EstimateServiceImpl{
		Repo:         repo,
		Workflow:     wf,
		AuditService: auditService,
	}
}

func (s *EstimateServiceImpl) CreateEstimate(ctx context.Context, est *Estimate) error {
	if est.ProjectName == "" {
		return errors.New("project name is required")
	}

	est.Status = StatusDraft
	est.Recalculate()
	now := time.Now()
	est.CreatedAt = now
	est.UpdatedAt = now

	if err := s.Repo.Create(ctx, est); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "estimates", est.ID.Hex(), map[string]common_models.Change{
		"estimate": {New: est.ProjectName},
	})
	return nil
}

func (s *EstimateServiceImpl) GetEstimate(ctx context.Context, id string) (*Estimate, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *EstimateServiceImpl) ListEstimates(ctx context.Context, status EstimateStatus, page, limit int64) ([]Estimate, int64, error) {
	return s.Repo.List(ctx, status, page, limit)
}

func (s *EstimateServiceImpl) UpdateEstimate(ctx context.Context, id string, est *Estimate) error {
	existing, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("estimate not found")
	}
	if !editableStatuses[existing.Status] {
		return fmt.Errorf("estimate in status %s cannot be edited", existing.Status)
	}

	est.Recalculate()
	est.UpdatedAt = time.Now()
	if err := s.Repo.Update(ctx, id, est); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "estimates", id, map[string]common_models.Change{
		"calculated_value": {Old: existing.CalculatedValue, New: est.CalculatedValue},
	})
	return nil
}

func (s *EstimateServiceImpl) DeleteEstimate(ctx context.Context, id string) error {
	existing, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("estimate not found")
	}
	if existing.Status == StatusInReview {
		return errors.New("estimate is in review; withdraw it first")
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "estimates", id, map[string]common_models.Change{
		"estimate": {Old: existing.ProjectName, New: "DELETED"},
	})
	return nil
}

func (s *EstimateServiceImpl) Submit(ctx context.Context, id string) (*Estimate, error) {
	est, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if est == nil {
		return nil, errors.New("estimate not found")
	}
	if !editableStatuses[est.Status] {
		return nil, fmt.Errorf("estimate in status %s cannot be submitted", est.Status)
	}

	if claims, ok := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims); ok {
		est.SubmittedBy = claims.UserID
		if err := s.Repo.MarkSubmitted(ctx, id, claims.UserID); err != nil {
			return nil, err
		}
	}

	if err := s.Workflow.StartApproval(ctx, id, est.Snapshot()); err != nil {
		return nil, err
	}

	// The instance may already have concluded (straight-to-end graphs) and
	// synced a terminal status; only move to in_review if it is still draft.
	fresh, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if editableStatuses[fresh.Status] {
		if err := s.Repo.SetStatus(ctx, id, StatusInReview); err != nil {
			return nil, err
		}
		fresh.Status = StatusInReview
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "estimates", id, map[string]common_models.Change{
		"status": {Old: string(est.Status), New: string(fresh.Status)},
	})
	return fresh, nil
}

func (s *EstimateServiceImpl) Withdraw(ctx context.Context, id string) error {
	est, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if est == nil {
		return errors.New("estimate not found")
	}
	if est.Status != StatusInReview {
		return errors.New("only an in-review estimate can be withdrawn")
	}

	if err := s.Workflow.CancelForRecord(ctx, "estimate", id, "withdrawn by submitter"); err != nil {
		return err
	}
	if err := s.Repo.SetStatus(ctx, id, StatusDraft); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "estimates", id, map[string]common_models.Change{
		"status": {Old: string(StatusInReview), New: string(StatusDraft)},
	})
	return nil
}

// ApplyWorkflowStatus translates instance lifecycle states into estimate
// statuses. Cancellation via Withdraw already reset the estimate, so the
// cancelled state is a no-op here.
func (s *EstimateServiceImpl) ApplyWorkflowStatus(ctx context.Context, id string, status string) error {
	var mapped EstimateStatus
	switch status {
	case "running":
		mapped = StatusInReview
	case "approved":
		mapped = StatusApproved
	case "rejected":
		mapped = StatusRejected
	case "revision":
		mapped = StatusRevision
	case "cancelled", "faulted":
		return nil
	default:
		return fmt.Errorf("unknown workflow status %q", status)
	}
	return s.Repo.SetStatus(ctx, id, mapped)
}
