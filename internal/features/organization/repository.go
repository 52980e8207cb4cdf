package organization

import (
	"context"

	"go-estimate/internal/common/models"
	"go-estimate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	FindByID(ctx context.Context, id string) (*models.Organization, error)
	FindBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Update(ctx context.Context, id string, org *models.Organization) error
}

type OrganizationRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewOrganizationRepository(mongodb *database.MongodbDB) OrganizationRepository {
	return &OrganizationRepositoryImpl{
		Collection: mongodb.DB.Collection("organizations"),
	}
}

// Organizations are the tenants themselves, so lookups are not tenant-scoped.
func (r *OrganizationRepositoryImpl) Create(ctx context.Context, org *models.Organization) error {
	if org.ID.IsZero() {
		org.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, org)
	return err
}

func (r *OrganizationRepositoryImpl) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var org models.Organization
	err = r.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&org)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepositoryImpl) FindBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.Collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&org)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepositoryImpl) Update(ctx context.Context, id string, org *models.Organization) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"name":       org.Name,
			"updated_at": org.UpdatedAt,
		},
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	return err
}
