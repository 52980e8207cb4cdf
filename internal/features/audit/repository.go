package audit

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

type AuditRepository interface {
	Create(ctx context.Context, log models.AuditLog) error
	List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]models.AuditLog, error)
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	return &AuditRepositoryImpl{
		Collection: mongodb.DB.Collection("audit_logs"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, log models.AuditLog) error {
	if tenantID, ok := ctx.Value(models.TenantIDKey).(string); ok && tenantID != "" {
		if oid, err := primitive.ObjectIDFromHex(tenantID); err == nil {
			log.TenantID = oid
		}
	}
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *AuditRepositoryImpl) List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]models.AuditLog, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return nil, fmt.Errorf("tenant context missing")
	}
	oid, err := primitive.ObjectIDFromHex(tenantID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{"tenant_id": oid}
	for k, v := range filters {
		filter[k] = v
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []models.AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
