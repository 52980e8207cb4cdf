package role

import (
	"context"
	"fmt"

	"go-estimate/internal/common/models"
	"go-estimate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]Role, error)
	List(ctx context.Context) ([]Role, error)
	Update(ctx context.Context, id string, role *Role) error
	Delete(ctx context.Context, id string) error
}

type RoleRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewRoleRepository(mongodb *database.MongodbDB) RoleRepository {
	return &RoleRepositoryImpl{
		Collection: mongodb.DB.Collection("roles"),
	}
}

func tenantOID(ctx context.Context) (primitive.ObjectID, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return primitive.NilObjectID, fmt.Errorf("tenant context missing")
	}
	return primitive.ObjectIDFromHex(tenantID)
}

func (r *RoleRepositoryImpl) Create(ctx context.Context, role *Role) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	role.TenantID = oid

	_, err = r.Collection.InsertOne(ctx, role)
	return err
}

func (r *RoleRepositoryImpl) FindByID(ctx context.Context, id string) (*Role, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var role Role
	err = r.Collection.FindOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}).Decode(&role)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepositoryImpl) FindByIDs(ctx context.Context, ids []string) ([]Role, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}

	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("invalid role id %q", id)
		}
		objectIDs = append(objectIDs, objectID)
	}

	cursor, err := r.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}, "tenant_id": oid})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var roles []Role
	if err = cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepositoryImpl) List(ctx context.Context) ([]Role, error) {
	oid, err := tenantOID(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := r.Collection.Find(ctx, bson.M{"tenant_id": oid})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var roles []Role
	if err = cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepositoryImpl) Update(ctx context.Context, id string, role *Role) error {
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
			"name":        role.Name,
			"description": role.Description,
			"can_approve": role.CanApprove,
			"permissions": role.Permissions,
			"updated_at":  role.UpdatedAt,
		},
	}

	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": objectID, "tenant_id": oid}, update)
	return err
}

func (r *RoleRepositoryImpl) Delete(ctx context.Context, id string) error {
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
