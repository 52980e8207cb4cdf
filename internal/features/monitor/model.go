package monitor

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SweepLog records one pass of the stalled-instance sweep.
type SweepLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StartedAt  time.Time          `bson:"started_at" json:"started_at"`
	FinishedAt time.Time          `bson:"finished_at" json:"finished_at"`
	Unstalled  int                `bson:"unstalled" json:"unstalled"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	Trigger    string             `bson:"trigger" json:"trigger"` // schedule or manual
}
