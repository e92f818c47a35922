package repository

import (
	"context"

	"github.com/tieubaoca/context-curator/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type JournalRepo interface {
	Record(ctx context.Context, run types.CurationRun) error
	// Recent returns the newest runs first. An empty flow matches every flow.
	Recent(ctx context.Context, flow string, limit int64) ([]types.CurationRun, error)
}

type journalRepo struct {
	collection *mongo.Collection
}

func NewJournalRepo(collection *mongo.Collection) JournalRepo {
	return &journalRepo{
		collection: collection,
	}
}

func (r *journalRepo) Record(ctx context.Context, run types.CurationRun) error {
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

func (r *journalRepo) Recent(ctx context.Context, flow string, limit int64) ([]types.CurationRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, flowFilter(flow), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	runs := make([]types.CurationRun, 0)
	for cursor.Next(ctx) {
		var run types.CurationRun
		if err := cursor.Decode(&run); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, cursor.Err()
}

func flowFilter(flow string) bson.D {
	if flow == "" {
		return bson.D{}
	}
	return bson.D{{Key: "flow", Value: flow}}
}

// NopJournal discards runs. It stands in when the journal is disabled.
type NopJournal struct{}

func (NopJournal) Record(context.Context, types.CurationRun) error { return nil }

func (NopJournal) Recent(context.Context, string, int64) ([]types.CurationRun, error) {
	return []types.CurationRun{}, nil
}
