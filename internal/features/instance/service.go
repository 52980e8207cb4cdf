package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"
	"go-estimate/internal/features/workflow"
	"go-estimate/pkg/rulechain"
	"go-estimate/pkg/utils"

	"go.uber.org/zap"
)

// maxCASRetries bounds the reload-and-reapply loop when two approvers race
// on the same instance.
const maxCASRetries = 3

var ErrAlreadyRunning = errors.New("record already has a running instance")

// Notifier tells approvers a step is waiting on them and watchers that an
// instance concluded. Failures are logged, never propagated: a missed
// notification must not roll back a decision.
type Notifier interface {
	NotifyApprovers(ctx context.Context, inst *WorkflowInstance, approverIDs []string)
	NotifyConcluded(ctx context.Context, inst *WorkflowInstance)
}

// RecordSyncer pushes the instance lifecycle back onto the record under
// review (estimate or cost entry). Wired through an adapter in the
// composition root to avoid a dependency cycle.
type RecordSyncer interface {
	SyncRecordStatus(ctx context.Context, recordType, recordID string, status InstanceStatus) error
}

// EventEmitter publishes instance lifecycle events to outbound integrations.
type EventEmitter interface {
	EmitInstanceEvent(ctx context.Context, event string, inst *WorkflowInstance)
}

type InstanceService interface {
	// StartForRecord selects the applicable workflow for the record and
	// instantiates it. One running instance per record at a time.
	StartForRecord(ctx context.Context, family workflow.Family, recordType, recordID string, rec rulechain.Snapshot) (*WorkflowInstance, error)

	GetInstance(ctx context.Context, id string) (*WorkflowInstance, error)
	ListInstances(ctx context.Context, filter ListFilter) ([]WorkflowInstance, int64, error)

	// SubmitDecision applies the calling user's verdict on the current
	// approval step.
	SubmitDecision(ctx context.Context, id string, decision Decision, comment string) (*WorkflowInstance, error)

	Cancel(ctx context.Context, id string, reason string) error

	// CancelForRecord cancels every running instance attached to a record,
	// e.g. when the submitter withdraws it.
	CancelForRecord(ctx context.Context, recordType, recordID, reason string) error

	// SweepStalled retries approver resolution on every stalled instance.
	// Returns how many instances unstalled.
	SweepStalled(ctx context.Context) (int, error)

	CountRunning(ctx context.Context, workflowID string) (int64, error)
}

type InstanceServiceImpl struct {
	Repo         InstanceRepository
	Engine       *Engine
	Selector     workflow.WorkflowSelector
	Notifier     Notifier
	Syncer       RecordSyncer
	Emitter      EventEmitter
	AuditService audit.AuditService
	Logger       *zap.Logger
}

func NewInstanceService(
	repo InstanceRepository,
	engine *Engine,
	selector workflow.WorkflowSelector,
	notifier Notifier,
	syncer RecordSyncer,
	emitter EventEmitter,
	auditService audit.AuditService,
	logger *zap.Logger,
) InstanceService {
	return &InstanceServiceImpl{
		Repo:         repo,
		Engine:       engine,
		Selector:     selector,
		Notifier:     notifier,
		Syncer:       syncer,
		Emitter:      emitter,
		AuditService: auditService,
		Logger:       logger,
	}
}

func (s *InstanceServiceImpl) StartForRecord(ctx context.Context, family workflow.Family, recordType, recordID string, rec rulechain.Snapshot) (*WorkflowInstance, error) {
	running, err := s.Repo.ListRunningByRecord(ctx, recordType, recordID)
	if err != nil {
		return nil, err
	}
	if len(running) > 0 {
		return nil, ErrAlreadyRunning
	}

	wf, err := s.Selector.SelectWorkflow(ctx, family, rec)
	if err != nil {
		return nil, err
	}

	inst, err := s.Engine.Instantiate(ctx, wf, recordType, recordID, rec)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.Create(ctx, inst); err != nil {
		return nil, err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionInstance, "instances", inst.ID.Hex(), map[string]common_models.Change{
		"instance": {New: fmt.Sprintf("%s %s via workflow %s", recordType, recordID, wf.Name)},
	})

	s.afterTransition(ctx, inst)
	if inst.Status == StatusRunning {
		s.syncRecord(ctx, inst)
	}
	return inst, nil
}

func (s *InstanceServiceImpl) GetInstance(ctx context.Context, id string) (*WorkflowInstance, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *InstanceServiceImpl) ListInstances(ctx context.Context, filter ListFilter) ([]WorkflowInstance, int64, error) {
	return s.Repo.List(ctx, filter)
}

func (s *InstanceServiceImpl) SubmitDecision(ctx context.Context, id string, decision Decision, comment string) (*WorkflowInstance, error) {
	claims, ok := ctx.Value(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return nil, errors.New("no authenticated user in context")
	}

	var inst *WorkflowInstance
	for attempt := 0; ; attempt++ {
		loaded, err := s.Repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, errors.New("instance not found")
		}

		if err := s.Engine.ApplyDecision(ctx, loaded, claims.UserID, decision, comment); err != nil {
			return nil, err
		}

		err = s.Repo.Update(ctx, loaded)
		if err == nil {
			inst = loaded
			break
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if attempt+1 >= maxCASRetries {
			return nil, fmt.Errorf("decision on instance %s: %w", id, err)
		}
		s.Logger.Debug("instance version conflict, retrying",
			zap.String("instance_id", id),
			zap.Int("attempt", attempt+1))
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionApproval, "instances", id, map[string]common_models.Change{
		"decision": {New: string(decision)},
		"step":     {New: inst.StepName},
	})

	s.afterTransition(ctx, inst)
	return inst, nil
}

func (s *InstanceServiceImpl) Cancel(ctx context.Context, id string, reason string) error {
	for attempt := 0; ; attempt++ {
		inst, err := s.Repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if inst == nil {
			return errors.New("instance not found")
		}
		if inst.Status != StatusRunning && inst.Status != StatusFaulted {
			return ErrNotRunning
		}

		previous := inst.Status
		now := time.Now()
		inst.Status = StatusCancelled
		inst.CancelReason = reason
		inst.CurrentNodeID = ""
		inst.StepName = ""
		inst.EligibleApprovers = nil
		inst.ApprovedBy = nil
		inst.Stalled = false
		inst.UpdatedAt = now
		inst.ConcludedAt = &now

		err = s.Repo.Update(ctx, inst)
		if err == nil {
			s.AuditService.LogChange(ctx, common_models.AuditActionInstance, "instances", id, map[string]common_models.Change{
				"status": {Old: string(previous), New: string(StatusCancelled)},
			})
			s.afterTransition(ctx, inst)
			return nil
		}
		if !errors.Is(err, ErrConflict) || attempt+1 >= maxCASRetries {
			return err
		}
	}
}

func (s *InstanceServiceImpl) CancelForRecord(ctx context.Context, recordType, recordID, reason string) error {
	running, err := s.Repo.ListRunningByRecord(ctx, recordType, recordID)
	if err != nil {
		return err
	}
	for i := range running {
		if err := s.Cancel(ctx, running[i].ID.Hex(), reason); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
	}
	return nil
}

func (s *InstanceServiceImpl) SweepStalled(ctx context.Context) (int, error) {
	stalled, err := s.Repo.ListStalled(ctx)
	if err != nil {
		return 0, err
	}

	unstalled := 0
	for i := range stalled {
		inst := &stalled[i]

		// Tenant scoping for repo calls made on behalf of this instance
		tctx := context.WithValue(ctx, common_models.TenantIDKey, inst.TenantID.Hex())

		ok, err := s.Engine.RetryStalled(tctx, inst)
		if err != nil {
			s.Logger.Warn("stalled sweep: retry failed",
				zap.String("instance_id", inst.ID.Hex()),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		if err := s.Repo.Update(tctx, inst); err != nil {
			if !errors.Is(err, ErrConflict) {
				s.Logger.Warn("stalled sweep: save failed",
					zap.String("instance_id", inst.ID.Hex()),
					zap.Error(err))
			}
			continue
		}

		unstalled++
		s.afterTransition(tctx, inst)
	}
	return unstalled, nil
}

func (s *InstanceServiceImpl) CountRunning(ctx context.Context, workflowID string) (int64, error) {
	return s.Repo.CountRunning(ctx, workflowID)
}

// afterTransition fires the side effects a persisted transition owes the
// rest of the system. All of them are best-effort.
func (s *InstanceServiceImpl) afterTransition(ctx context.Context, inst *WorkflowInstance) {
	if inst.Status.Concluded() {
		s.syncRecord(ctx, inst)
		if s.Notifier != nil {
			s.Notifier.NotifyConcluded(ctx, inst)
		}
		if s.Emitter != nil {
			s.Emitter.EmitInstanceEvent(ctx, "instance.concluded", inst)
		}
		return
	}

	if s.Notifier != nil && len(inst.EligibleApprovers) > 0 {
		s.Notifier.NotifyApprovers(ctx, inst, inst.EligibleApprovers)
	}
	if s.Emitter != nil {
		s.Emitter.EmitInstanceEvent(ctx, "instance.advanced", inst)
	}
}

func (s *InstanceServiceImpl) syncRecord(ctx context.Context, inst *WorkflowInstance) {
	if s.Syncer == nil {
		return
	}
	if err := s.Syncer.SyncRecordStatus(ctx, inst.RecordType, inst.RecordID, inst.Status); err != nil {
		s.Logger.Warn("record status sync failed",
			zap.String("record_type", inst.RecordType),
			zap.String("record_id", inst.RecordID),
			zap.Error(err))
	}
}
