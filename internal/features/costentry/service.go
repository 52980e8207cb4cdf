package costentry

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

// ReviewStarter starts a cost-review instance for an entry. ErrNoReview
// means no trigger matched and the entry does not need review.
type ReviewStarter interface {
	StartCostReview(ctx context.Context, recordID string, rec rulechain.Snapshot) error
}

// ErrNoReview is returned by ReviewStarter when no cost-review workflow
// applies to the entry.
var ErrNoReview = errors.New("no cost-review workflow applies")

type CostEntryService interface {
	// SubmitEntry books a cost. Entries matching a review trigger go
	// in_review; everything below threshold is approved immediately.
	SubmitEntry(ctx context.Context, ce *CostEntry) error

	GetEntry(ctx context.Context, id string) (*CostEntry, error)
	ListEntries(ctx context.Context, estimateID string, status CostEntryStatus, page, limit int64) ([]CostEntry, int64, error)
	DeleteEntry(ctx context.Context, id string) error

	// ApplyWorkflowStatus maps instance lifecycle states onto entry states.
	ApplyWorkflowStatus(ctx context.Context, id string, status string) error
}

type CostEntryServiceImpl struct {
	Repo         CostEntryRepository
	Review       ReviewStarter
	AuditService audit.AuditService
}

func NewCostEntryService(repo CostEntryRepository, review ReviewStarter, auditService audit.AuditService) CostEntryService {
	return &CostEntryServiceImpl{
		Repo:         repo,
		Review:       review,
		AuditService: auditService,
	}
}

func (s *CostEntryServiceImpl) SubmitEntry(ctx context.Context, ce *CostEntry) error {
	if ce.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if ce.CostType == "" {
		return errors.New("cost type is required")
	}

	if claims, ok := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims); ok {
		ce.EnteredBy = claims.UserID
	}
	if ce.IncurredAt.IsZero() {
		ce.IncurredAt = time.Now()
	}
	now := time.Now()
	ce.CreatedAt = now
	ce.UpdatedAt = now
	ce.Status = StatusPending

	if err := s.Repo.Create(ctx, ce); err != nil {
		return err
	}

	err := s.Review.StartCostReview(ctx, ce.ID.Hex(), ce.Snapshot())
	switch {
	case errors.Is(err, ErrNoReview):
		ce.Status = StatusApproved
	case err != nil:
		return err
	default:
		// The review may already have concluded (straight-to-end graphs)
		// and synced a terminal status; only pending entries move to review.
		fresh, err := s.Repo.GetByID(ctx, ce.ID.Hex())
		if err != nil {
			return err
		}
		if fresh.Status != StatusPending {
			ce.Status = fresh.Status
		} else {
			ce.Status = StatusInReview
		}
	}
	if err := s.Repo.SetStatus(ctx, ce.ID.Hex(), ce.Status); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "cost_entries", ce.ID.Hex(), map[string]common_models.Change{
		"cost_entry": {New: fmt.Sprintf("%s %.2f (%s)", ce.CostType, ce.Amount, ce.Status)},
	})
	return nil
}

func (s *CostEntryServiceImpl) GetEntry(ctx context.Context, id string) (*CostEntry, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *CostEntryServiceImpl) ListEntries(ctx context.Context, estimateID string, status CostEntryStatus, page, limit int64) ([]CostEntry, int64, error) {
	return s.Repo.List(ctx, estimateID, status, page, limit)
}

func (s *CostEntryServiceImpl) DeleteEntry(ctx context.Context, id string) error {
	existing, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("cost entry not found")
	}
	if existing.Status == StatusInReview {
		return errors.New("cost entry is in review")
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "cost_entries", id, map[string]common_models.Change{
		"cost_entry": {Old: existing.Description, New: "DELETED"},
	})
	return nil
}

func (s *CostEntryServiceImpl) ApplyWorkflowStatus(ctx context.Context, id string, status string) error {
	var mapped CostEntryStatus
	switch status {
	case "running":
		mapped = StatusInReview
	case "approved":
		mapped = StatusApproved
	case "revision":
		// Reviewers sent the cost back; it returns to pending for
		// correction and resubmission, never to approved.
		mapped = StatusPending
	case "rejected":
		mapped = StatusRejected
	case "cancelled", "faulted":
		return nil
	default:
		return fmt.Errorf("unknown workflow status %q", status)
	}
	return s.Repo.SetStatus(ctx, id, mapped)
}
