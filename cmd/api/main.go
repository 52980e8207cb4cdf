package main

import (
	"context"
	"errors"
	"fmt"
	common_api "go-estimate/internal/common/api"
	"go-estimate/internal/config"
	"go-estimate/internal/database"
	"go-estimate/internal/features/audit"
	"go-estimate/internal/features/auth"
	"go-estimate/internal/features/costentry"
	"go-estimate/internal/features/estimate"
	"go-estimate/internal/features/instance"
	"go-estimate/internal/features/monitor"
	"go-estimate/internal/features/notification"
	"go-estimate/internal/features/organization"
	"go-estimate/internal/features/reporting"
	"go-estimate/internal/features/role"
	"go-estimate/internal/features/system"
	"go-estimate/internal/features/user"
	"go-estimate/internal/features/webhook"
	"go-estimate/internal/features/workflow"
	"go-estimate/internal/logger"
	"go-estimate/internal/middleware"
	"go-estimate/pkg/rulechain"
	"go-estimate/pkg/utils"
	"log"
	"time"

	_ "go-estimate/docs" // Import swagger docs

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Use custom CORS middleware
	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),    // Cast to Interface
		fx.ResultTags(`group:"routes"`), // Add to Group
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for _, route := range routes {
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created
func InitializeIndexes(lc fx.Lifecycle, workflowRepo workflow.WorkflowRepository, instanceRepo instance.InstanceRepository) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				if err := workflowRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure workflow indexes: %v", err)
				}
				if err := instanceRepo.EnsureIndexes(ctx); err != nil {
					log.Printf("Failed to ensure instance indexes: %v", err)
				}
			}()
			return nil
		},
	})
}

// recordSyncerHub routes instance lifecycle callbacks to the owning
// record service. It is provided empty and bound after the record
// services exist, which breaks the instance <-> estimate constructor
// cycle.
type recordSyncerHub struct {
	estimates estimate.EstimateService
	costs     costentry.CostEntryService
}

func (h *recordSyncerHub) SyncRecordStatus(ctx context.Context, recordType, recordID string, status instance.InstanceStatus) error {
	switch recordType {
	case "estimate":
		return h.estimates.ApplyWorkflowStatus(ctx, recordID, string(status))
	case "cost_entry":
		return h.costs.ApplyWorkflowStatus(ctx, recordID, string(status))
	default:
		return fmt.Errorf("unknown record type %q", recordType)
	}
}

// estimateWorkflowAdapter lets the estimate service start and cancel
// approval instances without importing the instance feature.
type estimateWorkflowAdapter struct {
	instances instance.InstanceService
}

func (a *estimateWorkflowAdapter) StartApproval(ctx context.Context, recordID string, rec rulechain.Snapshot) error {
	_, err := a.instances.StartForRecord(ctx, workflow.FamilyApproval, "estimate", recordID, rec)
	return err
}

func (a *estimateWorkflowAdapter) CancelForRecord(ctx context.Context, recordType, recordID, reason string) error {
	return a.instances.CancelForRecord(ctx, recordType, recordID, reason)
}

// costReviewAdapter starts cost-review instances for cost entries. A
// missing workflow is normal for small amounts, so the selector miss is
// translated to the entry service's sentinel.
type costReviewAdapter struct {
	instances instance.InstanceService
}

func (a *costReviewAdapter) StartCostReview(ctx context.Context, recordID string, rec rulechain.Snapshot) error {
	_, err := a.instances.StartForRecord(ctx, workflow.FamilyCostReview, "cost_entry", recordID, rec)
	if errors.Is(err, workflow.ErrNoApplicableWorkflow) {
		return costentry.ErrNoReview
	}
	return err
}

// fanoutEmitter delivers instance events to every outbound integration.
type fanoutEmitter struct {
	emitters []instance.EventEmitter
}

func (f *fanoutEmitter) EmitInstanceEvent(ctx context.Context, event string, inst *instance.WorkflowInstance) {
	for _, e := range f.emitters {
		e.EmitInstanceEvent(ctx, event, inst)
	}
}

// @title           Estimate Approval API
// @version         1.0
// @description     Approval workflow engine for estimation and project management.

// @contact.name    API Support
// @contact.email   support@swagger.io

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host            localhost:8080
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,
			reporting.NewReportingStore,

			// Initialize Repository
			audit.NewAuditRepository,
			organization.NewOrganizationRepository,
			user.NewUserRepository,
			role.NewRoleRepository,
			workflow.NewWorkflowRepository,
			instance.NewInstanceRepository,
			estimate.NewEstimateRepository,
			costentry.NewCostEntryRepository,
			notification.NewNotificationRepository,
			webhook.NewWebhookRepository,
			webhook.NewWebhookLogRepository,
			monitor.NewSweepLogRepository,

			notification.NewHub,

			audit.NewAuditService,
			auth.NewAuthService,
			role.NewRoleService,
			user.NewUserService,
			workflow.NewWorkflowSelector,
			workflow.NewWorkflowService,
			instance.NewEngine,
			instance.NewInstanceService,
			estimate.NewEstimateService,
			costentry.NewCostEntryService,
			notification.NewNotificationService,
			webhook.NewWebhookService,
			monitor.NewMonitorService,

			notification.NewWorkflowNotifier,
			webhook.NewInstanceEmitter,
			reporting.NewInstanceMirror,

			// Interface Adapters to break circular dependencies and satisfy Fx
			func(s role.RoleService) middleware.RoleService { return s },
			func(s role.RoleService) instance.ApproverResolver { return s },
			func(r user.UserRepository) audit.UserFinder { return r },
			func(r user.UserRepository) role.ActiveUserFinder { return r },
			func(s instance.InstanceService) workflow.InstanceCounter { return s },
			func(s instance.InstanceService) monitor.StalledSweeper { return s },
			func(s instance.InstanceService) estimate.WorkflowStarter {
				return &estimateWorkflowAdapter{instances: s}
			},
			func(s instance.InstanceService) costentry.ReviewStarter {
				return &costReviewAdapter{instances: s}
			},
			func(n *notification.WorkflowNotifier) instance.Notifier { return n },
			func(w *webhook.InstanceEmitter, m *reporting.InstanceMirror) instance.EventEmitter {
				return &fanoutEmitter{emitters: []instance.EventEmitter{w, m}}
			},
			func() *recordSyncerHub { return &recordSyncerHub{} },
			func(h *recordSyncerHub) instance.RecordSyncer { return h },

			// Initialize Controller
			auth.NewAuthController,
			role.NewRoleController,
			user.NewUserController,
			audit.NewAuditController,
			workflow.NewWorkflowController,
			instance.NewInstanceController,
			estimate.NewEstimateController,
			costentry.NewCostEntryController,
			notification.NewNotificationController,
			webhook.NewWebhookController,
			monitor.NewMonitorController,
			reporting.NewReportingController,
			system.NewWebSocketController,

			// Initialize API Routes
			AsRoute(auth.NewAuthApi),
			AsRoute(role.NewRoleApi),
			AsRoute(user.NewUserApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(workflow.NewWorkflowApi),
			AsRoute(instance.NewInstanceApi),
			AsRoute(estimate.NewEstimateApi),
			AsRoute(costentry.NewCostEntryApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(webhook.NewWebhookApi),
			AsRoute(monitor.NewMonitorApi),
			AsRoute(reporting.NewReportingApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewSwaggerApi),
			AsRoute(system.NewWebSocketApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			func(h *recordSyncerHub, es estimate.EstimateService, cs costentry.CostEntryService) {
				h.estimates = es
				h.costs = cs
			},
			func(lc fx.Lifecycle, monitorService monitor.MonitorService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return monitorService.StartScheduler()
					},
					OnStop: func(ctx context.Context) error {
						return monitorService.StopScheduler()
					},
				})
			},
			func(lc fx.Lifecycle, store *reporting.ReportingStore) {
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return store.Close()
					},
				})
			},
			InitializeIndexes,
		),
	)

	app.Run()
}
