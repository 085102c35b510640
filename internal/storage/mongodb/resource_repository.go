package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arnabghosh/compute-matcher/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ResourceRepository implements storage.ResourceRepository using MongoDB
type ResourceRepository struct {
	coll *mongo.Collection
}

// NewResourceRepository creates a resource repository over an existing collection
func NewResourceRepository(coll *mongo.Collection) *ResourceRepository {
	return &ResourceRepository{coll: coll}
}

// Store stores or replaces a resource
func (r *ResourceRepository) Store(ctx context.Context, resource *domain.Resource) error {
	if resource == nil || resource.ID == "" {
		return domain.ErrInvalidInput
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"id": resource.ID}, resource, opts); err != nil {
		return fmt.Errorf("%w: failed to store resource: %v", domain.ErrDatabaseError, err)
	}
	return nil
}

// GetByID retrieves a resource by ID
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	var resource domain.Resource
	err := r.coll.FindOne(ctx, bson.M{"id": id}).Decode(&resource)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, fmt.Errorf("%w: failed to get resource: %v", domain.ErrDatabaseError, err)
	}
	return &resource, nil
}

// List returns all resources ordered by ID
func (r *ResourceRepository) List(ctx context.Context) ([]*domain.Resource, error) {
	return r.find(ctx, bson.M{})
}

// ListAvailable returns active, non-busy resources ordered by ID
func (r *ResourceRepository) ListAvailable(ctx context.Context) ([]*domain.Resource, error) {
	return r.find(ctx, bson.M{"active": true, "busy": false})
}

func (r *ResourceRepository) find(ctx context.Context, filter bson.M) ([]*domain.Resource, error) {
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list resources: %v", domain.ErrDatabaseError, err)
	}
	defer cursor.Close(ctx)

	var results []domain.Resource
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("%w: failed to decode resources: %v", domain.ErrDatabaseError, err)
	}

	resources := make([]*domain.Resource, len(results))
	for i := range results {
		resources[i] = &results[i]
	}
	return resources, nil
}

// Reserve marks an available resource busy with a conditional update
func (r *ResourceRepository) Reserve(ctx context.Context, id string) error {
	result, err := r.coll.UpdateOne(ctx,
		bson.M{"id": id, "active": true, "busy": false},
		bson.M{"$set": bson.M{"busy": true}},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to reserve resource: %v", domain.ErrDatabaseError, err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: resource %s is not available", domain.ErrInvalidStatus, id)
	}
	return nil
}

// Release clears the busy flag
func (r *ResourceRepository) Release(ctx context.Context, id string) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"busy": false}})
	if err != nil {
		return fmt.Errorf("%w: failed to release resource: %v", domain.ErrDatabaseError, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

// Update reads the resource, applies change and $sets only the fields that
// differ. Busy is never written, so a concurrent Reserve survives.
func (r *ResourceRepository) Update(ctx context.Context, id string, change func(*domain.Resource) error) (*domain.Resource, error) {
	before, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	after := before.Clone()
	if err := change(after); err != nil {
		return nil, err
	}

	set := changedFields(before, after)
	if len(set) == 0 {
		return before, nil
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update resource: %v", domain.ErrDatabaseError, err)
	}
	if result.MatchedCount == 0 {
		return nil, domain.ErrResourceNotFound
	}
	return r.GetByID(ctx, id)
}

// changedFields lists the modified descriptive fields by bson name. ID and
// Busy are not included.
func changedFields(before, after *domain.Resource) bson.M {
	set := bson.M{}
	field := func(key string, changed bool, value interface{}) {
		if changed {
			set[key] = value
		}
	}
	field("provider_id", before.ProviderID != after.ProviderID, after.ProviderID)
	field("computation_power", before.ComputationPower != after.ComputationPower, after.ComputationPower)
	field("available_memory_gb", before.AvailableMemory != after.AvailableMemory, after.AvailableMemory)
	field("available_storage_gb", before.AvailableStorage != after.AvailableStorage, after.AvailableStorage)
	field("gpu_type", before.GPUType != after.GPUType, after.GPUType)
	field("gpu_memory_gb", before.GPUMemory != after.GPUMemory, after.GPUMemory)
	field("price_per_unit", before.PricePerUnit != after.PricePerUnit, after.PricePerUnit)
	field("location", before.Location != after.Location, after.Location)
	field("reputation", before.Reputation != after.Reputation, after.Reputation)
	field("energy_class", before.EnergyClass != after.EnergyClass, after.EnergyClass)
	field("active", before.Active != after.Active, after.Active)
	field("total_usage", before.TotalUsage != after.TotalUsage, after.TotalUsage)
	return set
}

// RecordOutcome applies the outcome server-side with an update pipeline, so
// concurrent outcomes on the same resource all count
func (r *ResourceRepository) RecordOutcome(ctx context.Context, id string, delta, maxReputation float64, used time.Duration) error {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"busy": false,
			"total_usage": bson.M{"$add": bson.A{
				bson.M{"$ifNull": bson.A{"$total_usage", int64(0)}},
				int64(used),
			}},
			"reputation": bson.M{"$max": bson.A{
				0.0,
				bson.M{"$min": bson.A{maxReputation, bson.M{"$add": bson.A{"$reputation", delta}}}},
			}},
		}}},
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("%w: failed to record outcome: %v", domain.ErrDatabaseError, err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

// Count returns the total number of resources
func (r *ResourceRepository) Count(ctx context.Context) int64 {
	count, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0
	}
	return count
}
