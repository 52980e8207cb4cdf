package workflow

import (
	"context"
	"fmt"
	"time"

	"go-estimate/internal/common/models"
	"go-estimate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type WorkflowRepository interface {
	Create(ctx context.Context, w *Workflow) error
	GetByID(ctx context.Context, id string) (*Workflow, error)
	List(ctx context.Context, family Family) ([]Workflow, error)
	ListActiveByFamily(ctx context.Context, family Family) ([]Workflow, error)
	Update(ctx context.Context, id string, w *Workflow) error
	SetDefault(ctx context.Context, id string, family Family) error
	SoftDelete(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
}

type WorkflowRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewWorkflowRepository(mongodb *database.MongodbDB) WorkflowRepository {
	return &WorkflowRepositoryImpl{
		Collection: mongodb.DB.Collection("workflows"),
	}
}

func tenantOID(ctx context.Context) (primitive.ObjectID, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return primitive.NilObjectID, fmt.Errorf("tenant context missing")
	}
	return primitive.ObjectIDFromHex(tenantID)
}

func (r *WorkflowRepositoryImpl) Create(ctx context.Context, w *Workflow) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	w.TenantID = oid
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}

	_, err = r.Collection.InsertOne(ctx, w)
	return err
}

func (r *WorkflowRepositoryImpl) GetByID(ctx context.Context, id string) (*Workflow, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var w Workflow
	err = r.Collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": oid, "deleted": false}).Decode(&w)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *WorkflowRepositoryImpl) List(ctx context.Context, family Family) ([]Workflow, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"tenant_id": oid, "deleted": false}
	if family != "" {
		filter["family"] = family
	}

	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var workflows []Workflow
	if err = cursor.All(ctx, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (r *WorkflowRepositoryImpl) ListActiveByFamily(ctx context.Context, family Family) ([]Workflow, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := r.Collection.Find(ctx, bson.M{
		"tenant_id": oid,
		"family":    family,
		"active":    true,
		"deleted":   false,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var workflows []Workflow
	if err = cursor.All(ctx, &workflows); err != nil {
		return nil, err
	}
	return workflows, nil
}

func (r *WorkflowRepositoryImpl) Update(ctx context.Context, id string, w *Workflow) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"name":            w.Name,
			"description":     w.Description,
			"active":          w.Active,
			"priority":        w.Priority,
			"selection_rules": w.SelectionRules,
			"trigger":         w.Trigger,
			"nodes":           w.Nodes,
			"edges":           w.Edges,
			"updated_at":      time.Now(),
		},
	}

	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": objectID, "tenant_id": oid, "deleted": false}, update)
	return err
}

// SetDefault flips the default flag to the given workflow and clears it on
// every other workflow of the same family.
func (r *WorkflowRepositoryImpl) SetDefault(ctx context.Context, id string, family Family) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.Collection.UpdateMany(ctx,
		bson.M{"tenant_id": oid, "family": family, "is_default": true},
		bson.M{"$set": bson.M{"is_default": false, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}

	_, err = r.Collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "tenant_id": oid, "deleted": false},
		bson.M{"$set": bson.M{"is_default": true, "updated_at": time.Now()}},
	)
	return err
}

func (r *WorkflowRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "family", Value: 1},
				{Key: "active", Value: 1},
				{Key: "deleted", Value: 1},
			},
			Options: options.Index().SetName("idx_tenant_family_active"),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "is_default", Value: 1},
			},
			Options: options.Index().SetName("idx_tenant_default"),
		},
	}

	_, err := r.Collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *WorkflowRepositoryImpl) SoftDelete(ctx context.Context, id string) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = r.Collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "tenant_id": oid},
		bson.M{"$set": bson.M{"deleted": true, "deleted_at": now, "active": false, "updated_at": now}},
	)
	return err
}
