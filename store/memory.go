package store

import (
	"context"
	"sync"
	"time"

	"github.com/raushankrgupta/fitly-shop-links/models"
)

type linkKey struct {
	outfitID string
	itemName string
}

// MemoryStore is an in-process LinkStore and JobStore. Records keep insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[linkKey]*models.LinkRecord
	order   []linkKey
	jobs    map[string]models.EnrichmentJob
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[linkKey]*models.LinkRecord),
		jobs:    make(map[string]models.EnrichmentJob),
		now:     time.Now,
	}
}

func (s *MemoryStore) UpsertItemLinks(ctx context.Context, outfitID, itemName string, owner models.Owner, links []models.ProductLink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]models.ProductLink, len(links))
	copy(stored, links)
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	key := linkKey{outfitID, itemName}
	rec, ok := s.records[key]
	if !ok {
		rec = &models.LinkRecord{OutfitID: outfitID, ItemName: itemName, CreatedAt: now}
		s.records[key] = rec
		s.order = append(s.order, key)
	}
	rec.UserID = owner.UserIDPtr()
	rec.SessionID = owner.SessionIDPtr()
	rec.Links = stored
	rec.UpdatedAt = now
	return nil
}

func (s *MemoryStore) GetByOutfitIDs(ctx context.Context, ids []string) ([]models.OutfitProducts, error) {
	ids = uniqueIDs(ids)
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	records := s.collect(func(r *models.LinkRecord) bool { return want[r.OutfitID] })
	return models.OrderByIDs(models.GroupRecords(records), ids), nil
}

func (s *MemoryStore) GetByOwner(ctx context.Context, owner models.Owner) ([]models.OutfitProducts, error) {
	var match func(r *models.LinkRecord) bool
	switch {
	case owner.UserID != "":
		match = func(r *models.LinkRecord) bool { return r.UserID != nil && *r.UserID == owner.UserID }
	case owner.SessionID != "":
		match = func(r *models.LinkRecord) bool { return r.SessionID != nil && *r.SessionID == owner.SessionID }
	default:
		return []models.OutfitProducts{}, nil
	}
	return models.GroupRecords(s.collect(match)), nil
}

// Record returns a copy of one stored record.
func (s *MemoryStore) Record(outfitID, itemName string) (models.LinkRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[linkKey{outfitID, itemName}]
	if !ok {
		return models.LinkRecord{}, false
	}
	return *rec, true
}

// Len is the number of stored link records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) EnsureIndexes(context.Context) error { return nil }

func (s *MemoryStore) collect(match func(*models.LinkRecord) bool) []models.LinkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LinkRecord
	for _, key := range s.order {
		rec := s.records[key]
		if match(rec) {
			out = append(out, *rec)
		}
	}
	return out
}

func (s *MemoryStore) CreateJob(ctx context.Context, job models.EnrichmentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, job models.EnrichmentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (models.EnrichmentJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.EnrichmentJob{}, ErrNotFound
	}
	return job, nil
}
