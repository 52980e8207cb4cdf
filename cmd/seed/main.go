package main

import (
	"context"
	"log"
	"time"

	common_models "go-estimate/internal/common/models"
	"go-estimate/internal/config"
	"go-estimate/internal/database"
	"go-estimate/internal/features/estimate"
	"go-estimate/internal/features/organization"
	"go-estimate/internal/features/role"
	"go-estimate/internal/features/user"
	"go-estimate/internal/features/workflow"
	"go-estimate/internal/logger"
	"go-estimate/pkg/rulechain"
	"go-estimate/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const demoOrgName = "Demo Construction Co"

func fullPermissions(resources ...string) map[string]map[string]common_models.ActionPermission {
	permissions := make(map[string]map[string]common_models.ActionPermission, len(resources))
	for _, resource := range resources {
		permissions[resource] = map[string]common_models.ActionPermission{
			"create": {Allowed: true},
			"read":   {Allowed: true},
			"update": {Allowed: true},
			"delete": {Allowed: true},
		}
	}
	return permissions
}

func readPermissions(resources ...string) map[string]map[string]common_models.ActionPermission {
	permissions := make(map[string]map[string]common_models.ActionPermission, len(resources))
	for _, resource := range resources {
		permissions[resource] = map[string]common_models.ActionPermission{
			"read": {Allowed: true},
		}
	}
	return permissions
}

// Seed runs the database seeding
func Seed(
	lc fx.Lifecycle,
	orgRepo organization.OrganizationRepository,
	roleRepo role.RoleRepository,
	userRepo user.UserRepository,
	workflowRepo workflow.WorkflowRepository,
	estimateRepo estimate.EstimateRepository,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				logger.Info("🌱 Starting Database Seeding...")

				slug := utils.Slugify(demoOrgName)
				if _, err := orgRepo.FindBySlug(ctx, slug); err == nil {
					logger.Info("Demo organization exists, skipping", zap.String("slug", slug))
					return
				}

				now := time.Now()
				org := common_models.Organization{
					Name:      demoOrgName,
					Slug:      slug,
					Plan:      "standard",
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := orgRepo.Create(ctx, &org); err != nil {
					logger.Fatal("Failed to create organization", zap.Error(err))
				}
				logger.Info("Organization created", zap.String("organization", demoOrgName))

				// Enforce tenant context for subsequent repos
				ctx = context.WithValue(ctx, common_models.TenantIDKey, org.ID.Hex())

				// 1. Roles
				roles := []role.Role{
					{
						Name:        "owner",
						Description: "Organization owner",
						CanApprove:  true,
						IsSystem:    true,
						Permissions: fullPermissions("estimates", "cost_entries", "workflows",
							"instances", "roles", "users", "webhooks", "audit_logs", "reports"),
					},
					{
						Name:        "project-manager",
						Description: "Reviews and approves project estimates",
						CanApprove:  true,
						Permissions: mergePermissions(
							fullPermissions("estimates", "cost_entries"),
							readPermissions("workflows", "instances", "users"),
						),
					},
					{
						Name:        "executive",
						Description: "Final sign-off on high-value work",
						CanApprove:  true,
						Permissions: readPermissions("estimates", "cost_entries", "workflows",
							"instances", "audit_logs", "reports"),
					},
					{
						Name:        "estimator",
						Description: "Drafts and submits estimates",
						Permissions: mergePermissions(
							fullPermissions("estimates", "cost_entries"),
							readPermissions("instances"),
						),
					},
				}

				roleIDs := make(map[string]primitive.ObjectID, len(roles))
				for i := range roles {
					r := &roles[i]
					r.CreatedAt = now
					r.UpdatedAt = now
					if err := roleRepo.Create(ctx, r); err != nil {
						logger.Fatal("Failed to create role", zap.String("role", r.Name), zap.Error(err))
					}
					roleIDs[r.Name] = r.ID
					logger.Info("Role created", zap.String("role", r.Name))
				}

				// 2. Users
				users := []struct {
					Username  string
					FirstName string
					LastName  string
					Roles     []string
				}{
					{"root", "Riley", "Owens", []string{"owner"}},
					{"pm.jordan", "Jordan", "Blake", []string{"project-manager"}},
					{"pm.casey", "Casey", "Nguyen", []string{"project-manager"}},
					{"exec.morgan", "Morgan", "Hale", []string{"executive"}},
					{"est.sam", "Sam", "Porter", []string{"estimator"}},
				}

				var ownerID primitive.ObjectID
				for _, u := range users {
					var ids []primitive.ObjectID
					for _, name := range u.Roles {
						ids = append(ids, roleIDs[name])
					}
					usr := common_models.User{
						Username:  u.Username,
						Password:  "password123",
						Email:     u.Username + "@demo-construction.test",
						FirstName: u.FirstName,
						LastName:  u.LastName,
						Status:    "active",
						Roles:     ids,
						TenantID:  org.ID,
						CreatedAt: now,
						UpdatedAt: now,
					}
					if err := userRepo.Create(ctx, &usr); err != nil {
						logger.Fatal("Failed to create user", zap.String("username", u.Username), zap.Error(err))
					}
					if u.Username == "root" {
						ownerID = usr.ID
					}
					logger.Info("User created", zap.String("username", u.Username))
				}

				org.OwnerID = ownerID
				if err := orgRepo.Update(ctx, org.ID.Hex(), &org); err != nil {
					logger.Error("Failed to assign organization owner", zap.Error(err))
				}

				// 3. Workflows. Approval steps reference roles by id.
				pmRole := roleIDs["project-manager"].Hex()
				execRole := roleIDs["executive"].Hex()
				workflows := []*workflow.Workflow{
					standardApprovalWorkflow(pmRole),
					largeProjectWorkflow(pmRole, execRole),
					costReviewWorkflow(execRole),
				}
				for _, wf := range workflows {
					wf.CreatedAt = now
					wf.UpdatedAt = now
					if err := workflowRepo.Create(ctx, wf); err != nil {
						logger.Fatal("Failed to create workflow", zap.String("workflow", wf.Name), zap.Error(err))
					}
					if wf.IsDefault {
						if err := workflowRepo.SetDefault(ctx, wf.ID.Hex(), wf.Family); err != nil {
							logger.Error("Failed to set default workflow", zap.Error(err))
						}
					}
					logger.Info("Workflow created", zap.String("workflow", wf.Name))
				}

				// 4. A draft estimate to play with
				est := &estimate.Estimate{
					ProjectName:    "Riverside Office Fit-Out",
					ClientName:     "Northbank Properties",
					ProjectType:    "commercial",
					ProjectValue:   185000,
					ProfitMargin:   12,
					DurationMonths: 6,
					Status:         estimate.StatusDraft,
					LineItems: []estimate.LineItem{
						{Description: "Framing crew", Category: "labor", Quantity: 320, UnitCost: 85},
						{Description: "Drywall and finishes", Category: "material", Quantity: 1, UnitCost: 46000},
						{Description: "Scissor lift rental", Category: "equipment", Quantity: 3, UnitCost: 2400},
					},
					CreatedAt: now,
					UpdatedAt: now,
				}
				est.Recalculate()
				if err := estimateRepo.Create(ctx, est); err != nil {
					logger.Fatal("Failed to create estimate", zap.Error(err))
				}
				logger.Info("Estimate created", zap.String("project", est.ProjectName))

				logger.Info("✅ Seeding Complete!")
			}()
			return nil
		},
	})
}

func mergePermissions(maps ...map[string]map[string]common_models.ActionPermission) map[string]map[string]common_models.ActionPermission {
	merged := make(map[string]map[string]common_models.ActionPermission)
	for _, m := range maps {
		for resource, actions := range m {
			if merged[resource] == nil {
				merged[resource] = make(map[string]common_models.ActionPermission)
			}
			for action, p := range actions {
				merged[resource][action] = p
			}
		}
	}
	return merged
}

// standardApprovalWorkflow is the tenant default: one project-manager
// approval, any single approval concludes.
func standardApprovalWorkflow(pmRole string) *workflow.Workflow {
	wf := workflow.NewWorkflow("Standard Approval", "Single PM sign-off for everyday estimates", workflow.FamilyApproval)
	wf.Active = true
	wf.IsDefault = true
	wf.Nodes = append(wf.Nodes,
		workflow.Node{ID: "pm-review", Kind: workflow.NodeApproval, Approval: &workflow.ApprovalPayload{
			StepName:      "PM Review",
			ApproverRoles: []string{pmRole},
		}},
		workflow.Node{ID: "done", Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: workflow.OutcomeApproved}},
		workflow.Node{ID: "declined", Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: workflow.OutcomeRejected}},
	)
	wf.Edges = []workflow.Edge{
		{Source: "start", Target: "pm-review"},
		{Source: "pm-review", Port: workflow.PortApproved, Target: "done"},
		{Source: "pm-review", Port: workflow.PortRejected, Target: "declined"},
	}
	return wf
}

// largeProjectWorkflow adds an executive tier for estimates over 100k.
func largeProjectWorkflow(pmRole, execRole string) *workflow.Workflow {
	wf := workflow.NewWorkflow("Large Project Review", "Two-tier review for high-value estimates", workflow.FamilyApproval)
	wf.Active = true
	wf.Priority = 0
	wf.SelectionRules = []rulechain.Rule{
		{Field: "project_value", Operator: rulechain.OperatorGreaterThan, Value: 100000},
	}
	wf.Nodes = append(wf.Nodes,
		workflow.Node{ID: "pm-review", Kind: workflow.NodeApproval, Approval: &workflow.ApprovalPayload{
			StepName:      "PM Review",
			ApproverRoles: []string{pmRole},
		}},
		workflow.Node{ID: "exec-review", Kind: workflow.NodeApproval, Approval: &workflow.ApprovalPayload{
			StepName:      "Executive Sign-Off",
			ApproverRoles: []string{execRole},
			RequireAll:    true,
		}},
		workflow.Node{ID: "done", Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: workflow.OutcomeApproved}},
		workflow.Node{ID: "declined", Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: workflow.OutcomeRejected}},
	)
	wf.Edges = []workflow.Edge{
		{Source: "start", Target: "pm-review"},
		{Source: "pm-review", Port: workflow.PortApproved, Target: "exec-review"},
		{Source: "pm-review", Port: workflow.PortRejected, Target: "declined"},
		{Source: "exec-review", Port: workflow.PortApproved, Target: "done"},
		{Source: "exec-review", Port: workflow.PortRejected, Target: "declined"},
	}
	return wf
}

// costReviewWorkflow triggers on cost entries of 10k and above.
func costReviewWorkflow(execRole string) *workflow.Workflow {
	wf := workflow.NewWorkflow("Major Cost Review", "Executive review of large cost entries", workflow.FamilyCostReview)
	wf.Active = true
	wf.Trigger = &workflow.TriggerConditions{MinAmount: 10000}
	wf.Nodes = append(wf.Nodes,
		workflow.Node{ID: "exec-review", Kind: workflow.NodeApproval, Approval: &workflow.ApprovalPayload{
			StepName:      "Cost Review",
			ApproverRoles: []string{execRole},
		}},
		workflow.Node{ID: "done", Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: workflow.OutcomeApproved}},
		workflow.Node{ID: "declined", Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: workflow.OutcomeRejected}},
	)
	wf.Edges = []workflow.Edge{
		{Source: "start", Target: "exec-review"},
		{Source: "exec-review", Port: workflow.PortApproved, Target: "done"},
		{Source: "exec-review", Port: workflow.PortRejected, Target: "declined"},
	}
	return wf
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			organization.NewOrganizationRepository,
			role.NewRoleRepository,
			user.NewUserRepository,
			workflow.NewWorkflowRepository,
			estimate.NewEstimateRepository,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}

	<-app.Done()
}
