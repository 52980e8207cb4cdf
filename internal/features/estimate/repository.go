package estimate

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

type EstimateRepository interface {
	Create(ctx context.Context, est *Estimate) error
	GetByID(ctx context.Context, id string) (*Estimate, error)
	List(ctx context.Context, status EstimateStatus, page, limit int64) ([]Estimate, int64, error)
	Update(ctx context.Context, id string, est *Estimate) error
	SetStatus(ctx context.Context, id string, status EstimateStatus) error
	MarkSubmitted(ctx context.Context, id string, userID string) error
	Delete(ctx context.Context, id string) error
}

type EstimateRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewEstimateRepository(mongodb *database.MongodbDB) EstimateRepository {
	return &EstimateRepositoryImpl{
		Collection: mongodb.DB.Collection("estimates"),
	}
}

func tenantOID(ctx context.Context) (primitive.ObjectID, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return primitive.NilObjectID, fmt.Errorf("tenant context missing")
	}
	return primitive.ObjectIDFromHex(tenantID)
}

func (r *EstimateRepositoryImpl) Create(ctx context.Context, est *Estimate) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	est.TenantID = oid
	if est.ID.IsZero() {
		est.ID = primitive.NewObjectID()
	}

	_, err = r.Collection.InsertOne(ctx, est)
	return err
}

func (r *EstimateRepositoryImpl) GetByID(ctx context.Context, id string) (*Estimate, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var est Estimate
	err = r.Collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}).Decode(&est)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &est, nil
}

func (r *EstimateRepositoryImpl) List(ctx context.Context, status EstimateStatus, page, limit int64) ([]Estimate, int64, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := bson.M{"tenant_id": oid}
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
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var estimates []Estimate
	if err = cursor.All(ctx, &estimates); err != nil {
		return nil, 0, err
	}
	return estimates, total, nil
}

func (r *EstimateRepositoryImpl) Update(ctx context.Context, id string, est *Estimate) error {
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
			"project_name":        est.ProjectName,
			"client_name":         est.ClientName,
			"project_type":        est.ProjectType,
			"project_value":       est.ProjectValue,
			"profit_margin":       est.ProfitMargin,
			"duration_months":     est.DurationMonths,
			"line_items":          est.LineItems,
			"total_labor_cost":    est.TotalLaborCost,
			"total_material_cost": est.TotalMaterialCost,
			"calculated_value":    est.CalculatedValue,
			"updated_at":          est.UpdatedAt,
		},
	}

	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}, update)
	return err
}

func (r *EstimateRepositoryImpl) SetStatus(ctx context.Context, id string, status EstimateStatus) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{"status": status}}
	if status == StatusInReview {
		update["$currentDate"] = bson.M{"submitted_at": true}
	}

	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}, update)
	return err
}

func (r *EstimateRepositoryImpl) MarkSubmitted(ctx context.Context, id string, userID string) error {
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
		bson.M{"$set": bson.M{"submitted_by": userID}},
	)
	return err
}

func (r *EstimateRepositoryImpl) Delete(ctx context.Context, id string) error {
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
