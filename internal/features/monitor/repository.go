package monitor

import (
	"context"

	"go-estimate/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SweepLogRepository interface {
	Create(ctx context.Context, log *SweepLog) error
	Recent(ctx context.Context, limit int64) ([]SweepLog, error)
}

type SweepLogRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewSweepLogRepository(mongodb *database.MongodbDB) SweepLogRepository {
	return &SweepLogRepositoryImpl{
		Collection: mongodb.DB.Collection("sweep_logs"),
	}
}

func (r *SweepLogRepositoryImpl) Create(ctx context.Context, log *SweepLog) error {
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *SweepLogRepositoryImpl) Recent(ctx context.Context, limit int64) ([]SweepLog, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []SweepLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
