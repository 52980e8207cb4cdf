package instance

import (
	"context"
	"errors"
	"fmt"

	"go-estimate/internal/common/models"
	"go-estimate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrConflict signals a lost optimistic-concurrency race: the instance
// changed between load and save. Callers reload and reapply.
var ErrConflict = errors.New("instance was modified concurrently")

type ListFilter struct {
	Status     InstanceStatus
	RecordType string
	RecordID   string
	Stalled    *bool
	Page       int64
	Limit      int64
}

type InstanceRepository interface {
	Create(ctx context.Context, inst *WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*WorkflowInstance, error)
	List(ctx context.Context, filter ListFilter) ([]WorkflowInstance, int64, error)
	ListRunningByRecord(ctx context.Context, recordType, recordID string) ([]WorkflowInstance, error)
	ListStalled(ctx context.Context) ([]WorkflowInstance, error)
	Update(ctx context.Context, inst *WorkflowInstance) error
	CountRunning(ctx context.Context, workflowID string) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type InstanceRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewInstanceRepository(mongodb *database.MongodbDB) InstanceRepository {
	return &InstanceRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_instances"),
	}
}

func tenantOID(ctx context.Context) (primitive.ObjectID, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return primitive.NilObjectID, fmt.Errorf("tenant context missing")
	}
	return primitive.ObjectIDFromHex(tenantID)
}

func (r *InstanceRepositoryImpl) Create(ctx context.Context, inst *WorkflowInstance) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	inst.TenantID = oid
	if inst.ID.IsZero() {
		inst.ID = primitive.NewObjectID()
	}

	_, err = r.Collection.InsertOne(ctx, inst)
	return err
}

func (r *InstanceRepositoryImpl) GetByID(ctx context.Context, id string) (*WorkflowInstance, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var inst WorkflowInstance
	err = r.Collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}).Decode(&inst)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &inst, nil
}

func (r *InstanceRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]WorkflowInstance, int64, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := bson.M{"tenant_id": oid}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.RecordType != "" {
		query["record_type"] = filter.RecordType
	}
	if filter.RecordID != "" {
		query["record_id"] = filter.RecordID
	}
	if filter.Stalled != nil {
		query["stalled"] = *filter.Stalled
	}

	total, err := r.Collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var instances []WorkflowInstance
	if err = cursor.All(ctx, &instances); err != nil {
		return nil, 0, err
	}
	return instances, total, nil
}

func (r *InstanceRepositoryImpl) ListRunningByRecord(ctx context.Context, recordType, recordID string) ([]WorkflowInstance, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := r.Collection.Find(ctx, bson.M{
		"tenant_id":   oid,
		"record_type": recordType,
		"record_id":   recordID,
		"status":      StatusRunning,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var instances []WorkflowInstance
	if err = cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// ListStalled is tenant-agnostic on purpose: the monitor sweep runs outside
// any request and covers every tenant in one pass.
func (r *InstanceRepositoryImpl) ListStalled(ctx context.Context) ([]WorkflowInstance, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{
		"status":  StatusRunning,
		"stalled": true,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var instances []WorkflowInstance
	if err = cursor.All(ctx, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// Update persists a transition with an optimistic version check. The filter
// pins the version the transition was computed from; a miss means another
// writer got there first and the caller must reload.
func (r *InstanceRepositoryImpl) Update(ctx context.Context, inst *WorkflowInstance) error {
	loadedVersion := inst.Version
	inst.Version++

	res, err := r.Collection.ReplaceOne(ctx,
		bson.M{"_id": inst.ID, "version": loadedVersion},
		inst,
	)
	if err != nil {
		inst.Version = loadedVersion
		return err
	}
	if res.MatchedCount == 0 {
		inst.Version = loadedVersion
		return ErrConflict
	}
	return nil
}

func (r *InstanceRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "record_type", Value: 1},
				{Key: "record_id", Value: 1},
			},
			Options: options.Index().SetName("idx_tenant_record"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "stalled", Value: 1},
			},
			Options: options.Index().SetName("idx_status_stalled"),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "workflow_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_tenant_workflow_status"),
		},
	}

	_, err := r.Collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *InstanceRepositoryImpl) CountRunning(ctx context.Context, workflowID string) (int64, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return 0, err
	}
	wfID, err := primitive.ObjectIDFromHex(workflowID)
	if err != nil {
		return 0, err
	}

	return r.Collection.CountDocuments(ctx, bson.M{
		"tenant_id":   oid,
		"workflow_id": wfID,
		"status":      StatusRunning,
	})
}
