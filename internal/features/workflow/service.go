package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	common_models "go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"
)

// ErrNotActivatable carries the validation errors that block activation.
type ErrNotActivatable struct {
	Errors []ValidationError
}

func (e *ErrNotActivatable) Error() string {
	return fmt.Sprintf("workflow fails validation with %d error(s)", len(e.Errors))
}

// InstanceCounter is the slice of the instance feature the workflow service
// needs to guard deletes. Wired through an adapter in the composition root.
type InstanceCounter interface {
	CountRunning(ctx context.Context, workflowID string) (int64, error)
}

// GraphOp is one visual-editor mutation, applied through the Builder.
type GraphOp struct {
	Op     string `json:"op"` // add_node, remove_node, connect, disconnect
	Node   *Node  `json:"node,omitempty"`
	NodeID string `json:"node_id,omitempty"`
	Source string `json:"source,omitempty"`
	Port   string `json:"port,omitempty"`
	Target string `json:"target,omitempty"`
}

type WorkflowService interface {
	CreateWorkflow(ctx context.Context, w *Workflow) ([]ValidationError, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)
	ListWorkflows(ctx context.Context, family Family) ([]Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, w *Workflow) ([]ValidationError, error)
	ApplyGraphOps(ctx context.Context, id string, ops []GraphOp) (*Workflow, []ValidationError, error)
	ValidateWorkflow(ctx context.Context, id string) ([]ValidationError, error)
	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	SetDefault(ctx context.Context, id string) error
	DeleteWorkflow(ctx context.Context, id string) error
}

type WorkflowServiceImpl struct {
	Repo         WorkflowRepository
	Instances    InstanceCounter
	AuditService audit.AuditService
}

func NewWorkflowService(repo WorkflowRepository, instances InstanceCounter, auditService audit.AuditService) WorkflowService {
	return &WorkflowServiceImpl{
		Repo:         repo,
		Instances:    instances,
		AuditService: auditService,
	}
}

// CreateWorkflow saves the draft regardless of validation state; the errors
// come back so the editor can surface them.
func (s *WorkflowServiceImpl) CreateWorkflow(ctx context.Context, w *Workflow) ([]ValidationError, error) {
	if w.Name == "" {
		return nil, errors.New("workflow name is required")
	}
	if w.Family == "" {
		w.Family = FamilyApproval
	}
	if len(w.Nodes) == 0 {
		w.Nodes = []Node{{ID: "start", Kind: NodeStart}}
	}

	// Drafts are never born active or default
	w.Active = false
	w.IsDefault = false
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now

	if err := s.Repo.Create(ctx, w); err != nil {
		return nil, err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", w.ID.Hex(), map[string]common_models.Change{
		"workflow": {New: w.Name},
	})

	return Validate(w), nil
}

func (s *WorkflowServiceImpl) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	return s.Repo.GetByID(ctx, id)
}

func (s *WorkflowServiceImpl) ListWorkflows(ctx context.Context, family Family) ([]Workflow, error) {
	return s.Repo.List(ctx, family)
}

func (s *WorkflowServiceImpl) UpdateWorkflow(ctx context.Context, id string, w *Workflow) ([]ValidationError, error) {
	existing, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.New("workflow not found")
	}

	errs := Validate(w)
	if existing.Active && len(errs) > 0 {
		// An active workflow may not be broken in place; deactivate first
		return errs, &ErrNotActivatable{Errors: errs}
	}

	// Family and lifecycle flags do not travel through graph updates
	w.Family = existing.Family
	w.Active = existing.Active
	w.IsDefault = existing.IsDefault

	if err := s.Repo.Update(ctx, id, w); err != nil {
		return nil, err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", id, map[string]common_models.Change{
		"workflow": {Old: existing.Name, New: w.Name},
	})

	return errs, nil
}

func (s *WorkflowServiceImpl) ApplyGraphOps(ctx context.Context, id string, ops []GraphOp) (*Workflow, []ValidationError, error) {
	existing, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return nil, nil, errors.New("workflow not found")
	}

	b := NewBuilder(existing)
	for _, op := range ops {
		switch op.Op {
		case "add_node":
			if op.Node == nil {
				return nil, nil, errors.New("add_node requires a node")
			}
			b.AddNode(*op.Node)
		case "remove_node":
			b.RemoveNode(op.NodeID)
		case "connect":
			b.Connect(op.Source, op.Port, op.Target)
		case "disconnect":
			b.Disconnect(op.Source, op.Port)
		default:
			return nil, nil, fmt.Errorf("unknown graph op %q", op.Op)
		}
	}

	edited, errs, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	if existing.Active && len(errs) > 0 {
		return nil, errs, &ErrNotActivatable{Errors: errs}
	}

	if err := s.Repo.Update(ctx, id, edited); err != nil {
		return nil, nil, err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", id, map[string]common_models.Change{
		"graph": {Old: len(existing.Nodes), New: len(edited.Nodes)},
	})

	return edited, errs, nil
}

func (s *WorkflowServiceImpl) ValidateWorkflow(ctx context.Context, id string) ([]ValidationError, error) {
	w, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errors.New("workflow not found")
	}
	return Validate(w), nil
}

func (s *WorkflowServiceImpl) Activate(ctx context.Context, id string) error {
	w, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return errors.New("workflow not found")
	}

	if errs := Validate(w); len(errs) > 0 {
		return &ErrNotActivatable{Errors: errs}
	}

	w.Active = true
	if err := s.Repo.Update(ctx, id, w); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", id, map[string]common_models.Change{
		"active": {Old: false, New: true},
	})
	return nil
}

func (s *WorkflowServiceImpl) Deactivate(ctx context.Context, id string) error {
	w, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return errors.New("workflow not found")
	}

	w.Active = false
	if err := s.Repo.Update(ctx, id, w); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", id, map[string]common_models.Change{
		"active": {Old: true, New: false},
	})
	return nil
}

func (s *WorkflowServiceImpl) SetDefault(ctx context.Context, id string) error {
	w, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return errors.New("workflow not found")
	}
	if !w.Active {
		return errors.New("only an active workflow can be the default")
	}

	if err := s.Repo.SetDefault(ctx, id, w.Family); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", id, map[string]common_models.Change{
		"is_default": {Old: false, New: true},
	})
	return nil
}

func (s *WorkflowServiceImpl) DeleteWorkflow(ctx context.Context, id string) error {
	w, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if w == nil {
		return errors.New("workflow not found")
	}
	if w.IsDefault {
		return errors.New("the default workflow cannot be deleted")
	}

	running, err := s.Instances.CountRunning(ctx, id)
	if err != nil {
		return err
	}
	if running > 0 {
		return fmt.Errorf("workflow has %d in-flight instance(s)", running)
	}

	if err := s.Repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionWorkflow, "workflows", id, map[string]common_models.Change{
		"workflow": {Old: w.Name, New: "DELETED"},
	})
	return nil
}
