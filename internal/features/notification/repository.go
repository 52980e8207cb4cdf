package notification

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

type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error
}

type NotificationRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewNotificationRepository(mongodb *database.MongodbDB) NotificationRepository {
	return &NotificationRepositoryImpl{
		Collection: mongodb.DB.Collection("notifications"),
	}
}

func tenantOID(ctx context.Context) (primitive.ObjectID, error) {
	tenantID, ok := ctx.Value(models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return primitive.NilObjectID, fmt.Errorf("tenant context missing")
	}
	return primitive.ObjectIDFromHex(tenantID)
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, n *Notification) error {
	oid, err := tenantOID(ctx)
	if err != nil {
		return err
	}
	n.TenantID = oid
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	n.CreatedAt = time.Now()

	_, err = r.Collection.InsertOne(ctx, n)
	return err
}

func (r *NotificationRepositoryImpl) GetByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int64) ([]Notification, int64, error) {
	query := bson.M{"user_id": userID}

	total, err := r.Collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
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

	var notifications []Notification
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *NotificationRepositoryImpl) GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.Collection.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id, userID primitive.ObjectID) error {
	now := time.Now()
	_, err := r.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true, "read_at": now}},
	)
	return err
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error {
	now := time.Now()
	_, err := r.Collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true, "read_at": now}},
	)
	return err
}
