package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"diagrammer/internal/domain/entity"
	"diagrammer/internal/domain/repository"
	"diagrammer/internal/infrastructure/metrics"
)

const (
	requestsCollection = "diagram_requests"
	countersCollection = "counters"
)

// MongoRequestRepo keeps integer ids compatible with the SQL stores by
// allocating them from a counters collection.
type MongoRequestRepo struct {
	col      *mongo.Collection
	counters *mongo.Collection
}

func NewMongoRequestRepo(ctx context.Context, db *mongo.Database) (repository.DiagramRequestRepository, error) {
	col := db.Collection(requestsCollection)

	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{bson.E{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{bson.E{Key: "status", Value: 1}}},
		{Keys: bson.D{bson.E{Key: "created_at", Value: -1}, bson.E{Key: "id", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return &MongoRequestRepo{
		col:      col,
		counters: db.Collection(countersCollection),
	}, nil
}

func (r *MongoRequestRepo) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": requestsCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

func (r *MongoRequestRepo) Create(ctx context.Context, req *entity.DiagramRequest) error {
	metrics.IncDBOp("create")

	id, err := r.nextID(ctx)
	if err != nil {
		metrics.IncError("mongo_request_repo", "next_id_error")
		return fmt.Errorf("allocate id: %w", err)
	}
	req.ID = id

	if _, err := r.col.InsertOne(ctx, req); err != nil {
		metrics.IncError("mongo_request_repo", "create_error")
		return err
	}
	return nil
}

func (r *MongoRequestRepo) GetByID(ctx context.Context, id int64) (*entity.DiagramRequest, error) {
	metrics.IncDBOp("get")

	var req entity.DiagramRequest
	err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		metrics.IncError("mongo_request_repo", "get_error")
		return nil, err
	}
	return &req, nil
}

func (r *MongoRequestRepo) List(ctx context.Context) ([]*entity.DiagramRequest, error) {
	metrics.IncDBOp("list")

	opts := options.Find().SetSort(bson.D{bson.E{Key: "created_at", Value: -1}, bson.E{Key: "id", Value: -1}})
	cur, err := r.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		metrics.IncError("mongo_request_repo", "list_error")
		return nil, err
	}
	defer func() {
		_ = cur.Close(ctx)
	}()

	reqs := make([]*entity.DiagramRequest, 0)
	for cur.Next(ctx) {
		var req entity.DiagramRequest
		if err := cur.Decode(&req); err != nil {
			metrics.IncError("mongo_request_repo", "list_decode_error")
			return nil, err
		}
		reqs = append(reqs, &req)
	}
	if err := cur.Err(); err != nil {
		metrics.IncError("mongo_request_repo", "list_cursor_error")
		return nil, err
	}
	return reqs, nil
}

func (r *MongoRequestRepo) Complete(ctx context.Context, id int64, diagramCode string) error {
	return r.finish(ctx, id, bson.M{
		"status":       entity.RequestStatusCompleted,
		"diagram_code": diagramCode,
	})
}

func (r *MongoRequestRepo) Fail(ctx context.Context, id int64, errorMessage string) error {
	return r.finish(ctx, id, bson.M{
		"status":        entity.RequestStatusFailed,
		"error_message": errorMessage,
	})
}

func (r *MongoRequestRepo) finish(ctx context.Context, id int64, set bson.M) error {
	metrics.IncDBOp("put")

	res, err := r.col.UpdateOne(ctx,
		bson.M{"id": id, "status": entity.RequestStatusPending},
		bson.M{"$set": set},
	)
	if err != nil {
		metrics.IncError("mongo_request_repo", "update_status_error")
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.col.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrInvalidTransition
}

func (r *MongoRequestRepo) CountByStatus(ctx context.Context, status entity.RequestStatus) (int, error) {
	metrics.IncDBOp("count")

	count, err := r.col.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		metrics.IncError("mongo_request_repo", "count_by_status_error")
		return 0, err
	}
	return int(count), nil
}
