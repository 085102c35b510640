package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DemandRepository implements storage.DemandRepository using MongoDB
type DemandRepository struct {
	coll *mongo.Collection
}

// NewDemandRepository creates a demand repository over an existing collection
func NewDemandRepository(coll *mongo.Collection) *DemandRepository {
	return &DemandRepository{coll: coll}
}

// Store stores or replaces a demand
func (r *DemandRepository) Store(ctx context.Context, demand *domain.Demand) error {
	if demand == nil || demand.ID == "" {
		return domain.ErrInvalidInput
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"id": demand.ID}, demand, opts); err != nil {
		return fmt.Errorf("%w: failed to store demand: %v", domain.ErrDatabaseError, err)
	}
	return nil
}

// GetByID retrieves a demand by ID
func (r *DemandRepository) GetByID(ctx context.Context, id string) (*domain.Demand, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	var demand domain.Demand
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&demand)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrDemandNotFound
		}
		return nil, fmt.Errorf("%w: failed to get demand: %v", domain.ErrDatabaseError, err)
	}
	return &demand, nil
}

// ListByStatus returns demands in a status ordered by creation time
func (r *DemandRepository) ListByStatus(ctx context.Context, status domain.DemandStatus) ([]*domain.Demand, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list demands: %v", domain.ErrDatabaseError, err)
	}
	defer cursor.Close(ctx)

	var results []domain.Demand
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("%w: failed to decode demands: %v", domain.ErrDatabaseError, err)
	}

	demands := make([]*domain.Demand, len(results))
	for i := range results {
		demands[i] = &results[i]
	}
	return demands, nil
}

// Transition performs a conditional status update keyed on the current status
func (r *DemandRepository) Transition(ctx context.Context, id string, from, to domain.DemandStatus, resourceID string) error {
	set := bson.M{"status": to}
	if resourceID != "" {
		set["matched_resource_id"] = resourceID
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%w: failed to update demand: %v", domain.ErrDatabaseError, err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a missing demand from one in a different status
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: demand %s is not %s", domain.ErrInvalidStatus, id, from)
	}
	return nil
}

// Count returns the total number of demands
func (r *DemandRepository) Count(ctx context.Context) int64 {
	count, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0
	}
	return count
}
