package costentry

import (
	"context"
	"testing"
)

// fakeEntryRepo records the last status written; ApplyWorkflowStatus only
// touches SetStatus.
type fakeEntryRepo struct {
	CostEntryRepository
	status CostEntryStatus
	set    bool
}

func (f *fakeEntryRepo) SetStatus(ctx context.Context, id string, status CostEntryStatus) error {
	f.status = status
	f.set = true
	return nil
}

func TestApplyWorkflowStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		workflow string
		want     CostEntryStatus
		written  bool
	}{
		{"running maps to in_review", "running", StatusInReview, true},
		{"approved maps to approved", "approved", StatusApproved, true},
		{"revision returns the cost to pending", "revision", StatusPending, true},
		{"rejected maps to rejected", "rejected", StatusRejected, true},
		{"cancelled leaves the entry alone", "cancelled", "", false},
		{"faulted leaves the entry alone", "faulted", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeEntryRepo{}
			svc := &CostEntryServiceImpl{Repo: repo}

			if err := svc.ApplyWorkflowStatus(context.Background(), "ce-1", tt.workflow); err != nil {
				t.Fatalf("apply %q: %v", tt.workflow, err)
			}
			if repo.set != tt.written {
				t.Fatalf("status written = %v, want %v", repo.set, tt.written)
			}
			if tt.written && repo.status != tt.want {
				t.Fatalf("status = %s, want %s", repo.status, tt.want)
			}
		})
	}
}

func TestApplyWorkflowStatusRejectsUnknown(t *testing.T) {
	svc := &CostEntryServiceImpl{Repo: &fakeEntryRepo{}}
	if err := svc.ApplyWorkflowStatus(context.Background(), "ce-1", "paused"); err == nil {
		t.Fatal("expected an error for an unknown workflow status")
	}
}
