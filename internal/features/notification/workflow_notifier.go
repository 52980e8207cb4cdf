package notification

import (
	"context"
	"fmt"

	"go-estimate/internal/features/instance"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// WorkflowNotifier translates instance transitions into user notifications.
// It satisfies the engine's Notifier port.
type WorkflowNotifier struct {
	Service NotificationService
	Logger  *zap.Logger
}

func NewWorkflowNotifier(service NotificationService, logger *zap.Logger) *WorkflowNotifier {
	return &WorkflowNotifier{Service: service, Logger: logger}
}

func (n *WorkflowNotifier) NotifyApprovers(ctx context.Context, inst *instance.WorkflowInstance, approverIDs []string) {
	title := fmt.Sprintf("Approval needed: %s", inst.StepName)
	message := fmt.Sprintf("A %s is waiting for your decision on step %q.", inst.RecordType, inst.StepName)
	link := "/instances/" + inst.ID.Hex()

	for _, id := range approverIDs {
		userID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		if err := n.Service.CreateNotification(ctx, userID, title, message, NotificationTypeApproval, link); err != nil {
			n.Logger.Warn("approver notification failed",
				zap.String("user_id", id),
				zap.String("instance_id", inst.ID.Hex()),
				zap.Error(err))
		}
	}
}

// NotifyConcluded tells everyone who decided on the instance how it ended.
func (n *WorkflowNotifier) NotifyConcluded(ctx context.Context, inst *instance.WorkflowInstance) {
	title := fmt.Sprintf("Workflow %s", inst.Status)
	message := fmt.Sprintf("The %s you reviewed concluded with status %s.", inst.RecordType, inst.Status)
	link := "/instances/" + inst.ID.Hex()

	notifType := NotificationTypeSuccess
	switch inst.Status {
	case instance.StatusRejected:
		notifType = NotificationTypeWarning
	case instance.StatusFaulted:
		notifType = NotificationTypeError
	}

	seen := make(map[string]bool)
	for _, d := range inst.Decisions {
		if seen[d.UserID] {
			continue
		}
		seen[d.UserID] = true

		userID, err := primitive.ObjectIDFromHex(d.UserID)
		if err != nil {
			continue
		}
		if err := n.Service.CreateNotification(ctx, userID, title, message, notifType, link); err != nil {
			n.Logger.Warn("conclusion notification failed",
				zap.String("user_id", d.UserID),
				zap.String("instance_id", inst.ID.Hex()),
				zap.Error(err))
		}
	}
}
