package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

const (
	LinksCollection = "product_links"
	JobsCollection  = "enrichment_jobs"
)

// MongoLinkStore implements LinkStore over the product_links collection.
type MongoLinkStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoLinkStore(db *mongo.Database) *MongoLinkStore {
	return &MongoLinkStore{coll: db.Collection(LinksCollection), now: time.Now}
}

func linkFilter(outfitID, itemName string) bson.M {
	return bson.M{"outfit_id": outfitID, "item_name": itemName}
}

func linkUpdate(outfitID, itemName string, owner models.Owner, links []models.ProductLink, now time.Time) bson.M {
	if links == nil {
		links = []models.ProductLink{}
	}
	return bson.M{
		"$set": bson.M{
			"outfit_id":  outfitID,
			"item_name":  itemName,
			"session_id": owner.SessionIDPtr(),
			"user_id":    owner.UserIDPtr(),
			"links":      links,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
}

// ownerFilter returns nil when the owner is anonymous.
func ownerFilter(owner models.Owner) bson.M {
	switch {
	case owner.UserID != "":
		return bson.M{"user_id": owner.UserID}
	case owner.SessionID != "":
		return bson.M{"session_id": owner.SessionID}
	}
	return nil
}

func (s *MongoLinkStore) UpsertItemLinks(ctx context.Context, outfitID, itemName string, owner models.Owner, links []models.ProductLink) error {
	filter := linkFilter(outfitID, itemName)
	update := linkUpdate(outfitID, itemName, owner, links, s.now().UTC())
	opts := options.Update().SetUpsert(true)

	_, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// two first-time upserts raced on the unique index; the loser now matches
		_, err = s.coll.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("upsert links for %s/%s: %w", outfitID, itemName, err)
	}
	return nil
}

func (s *MongoLinkStore) GetByOutfitIDs(ctx context.Context, ids []string) ([]models.OutfitProducts, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.OutfitProducts{}, nil
	}
	records, err := s.find(ctx, bson.M{"outfit_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return models.OrderByIDs(models.GroupRecords(records), ids), nil
}

func (s *MongoLinkStore) GetByOwner(ctx context.Context, owner models.Owner) ([]models.OutfitProducts, error) {
	filter := ownerFilter(owner)
	if filter == nil {
		return []models.OutfitProducts{}, nil
	}
	records, err := s.find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return models.GroupRecords(records), nil
}

func (s *MongoLinkStore) find(ctx context.Context, filter bson.M) ([]models.LinkRecord, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("find link records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.LinkRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode link records: %w", err)
	}
	return records, nil
}

func linkIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "outfit_id", Value: 1}, {Key: "item_name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("outfit_item_unique"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "session_id", Value: 1}},
			Options: options.Index().SetName("owner"),
		},
	}
}

// EnsureIndexes is meant to run once at startup.
func (s *MongoLinkStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.coll.Indexes().CreateMany(ctx, linkIndexes()); err != nil {
		return fmt.Errorf("create link indexes: %w", err)
	}
	return nil
}

// MongoJobStore implements JobStore over the enrichment_jobs collection.
type MongoJobStore struct {
	coll *mongo.Collection
}

func NewMongoJobStore(db *mongo.Database) *MongoJobStore {
	return &MongoJobStore{coll: db.Collection(JobsCollection)}
}

func (s *MongoJobStore) CreateJob(ctx context.Context, job models.EnrichmentJob) error {
	if _, err := s.coll.InsertOne(ctx, job); err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *MongoJobStore) UpdateJob(ctx context.Context, job models.EnrichmentJob) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": job.ID}, job)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoJobStore) GetJob(ctx context.Context, id string) (models.EnrichmentJob, error) {
	var job models.EnrichmentJob
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.EnrichmentJob{}, ErrNotFound
	}
	if err != nil {
		return models.EnrichmentJob{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}
