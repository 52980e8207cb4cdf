package costentry

import (
	"context"
	"fmt"

	"go-estimate/internal/common/models"
	"go-estimate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CostEntryRepository interface {
	Create(ctx context.Context, ce *CostEntry) error
	GetByID(ctx context.Context, id string) (*CostEntry, error)
	List(ctx context.Context, estimateID string, status CostEntryStatus, page, limit int64) ([]CostEntry, int64, error)
	SetStatus(ctx context.Context, id string, status CostEntryStatus) error
	Delete(ctx context.Context, id string) error
}

type CostEntryRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewCostEntryRepository(mongodb *database.MongodbDB) CostEntryRepository {
	return &CostEntryRepositoryImpl{
		Collection: mongodb.DB.Collection("cost_entries"),
	}
}

func tenantOID(ctx context.Context) (primitive.ObjectID, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return primitive.NilObjectID, fmt.Errorf("tenant context missing")
	}
	return primitive.ObjectIDFromHex(tenantID)
}

func (r *CostEntryRepositoryImpl) Create(ctx context.Context, ce *CostEntry) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	ce.TenantID = oid
	if ce.ID.IsZero() {
		ce.ID = primitive.NewObjectID()
	}

	_, err = r.Collection.InsertOne(ctx, ce)
	return err
}

func (r *CostEntryRepositoryImpl) GetByID(ctx context.Context, id string) (*CostEntry, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var ce CostEntry
	err = r.Collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}).Decode(&ce)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &ce, nil
}

func (r *CostEntryRepositoryImpl) List(ctx context.Context, estimateID string, status CostEntryStatus, page, limit int64) ([]CostEntry, int64, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := bson.M{"tenant_id": oid}
	if estimateID != "" {
		estOID, err := primitive.ObjectIDFromHex(estimateID)
		if err != nil {
			return nil, 0, err
		}
		query["estimate_id"] = estOID
	}
	if status != "" {
		query["status"] = status
	}

	total, err := r.Collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "incurred_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var entries []CostEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *CostEntryRepositoryImpl) SetStatus(ctx context.Context, id string, status CostEntryStatus) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.Collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "tenant_id": oid},
		bson.M{"$set": bson.M{"status": status}},
	)
	return err
}

func (r *CostEntryRepositoryImpl) Delete(ctx context.Context, id string) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}
	_, err = r.Collection.DeleteOne(ctx, bson.M{"_id": objectID, "tenant_id": oid})
	return err
}
